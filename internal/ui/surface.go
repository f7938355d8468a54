package ui

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/sonroyaalmerol/feedplay/internal/player"
)

// FrameCounter is a surface that only counts what it is shown. Present is
// called from the engine's presenter goroutine.
type FrameCounter struct {
	frames atomic.Int64

	mu    sync.Mutex
	size  image.Point
	scale player.ScaleType
}

func (f *FrameCounter) Present(frame image.Image, scale player.ScaleType) {
	f.frames.Add(1)
	f.mu.Lock()
	if frame != nil {
		f.size = frame.Bounds().Size()
	}
	f.scale = scale
	f.mu.Unlock()
}

func (f *FrameCounter) Frames() int64 { return f.frames.Load() }

// Last returns the size and scale of the most recent frame.
func (f *FrameCounter) Last() (image.Point, player.ScaleType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, f.scale
}

// RowSlot is the render slot of one terminal row.
type RowSlot struct {
	counter *FrameCounter

	SurfaceVisible bool
	Loading        bool
}

func NewRowSlot() *RowSlot {
	return &RowSlot{counter: &FrameCounter{}}
}

func (s *RowSlot) Surface() player.Surface  { return s.counter }
func (s *RowSlot) Counter() *FrameCounter   { return s.counter }
func (s *RowSlot) ShowSurface(visible bool) { s.SurfaceVisible = visible }
func (s *RowSlot) ShowLoading(visible bool) { s.Loading = visible }
