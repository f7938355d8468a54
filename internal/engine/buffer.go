package engine

import (
	"image"
	"sync"
	"time"
)

type frameBuffer struct {
	mu       sync.Mutex
	frames   []bufferedFrame
	maxSize  int
	readPos  int
	writePos int
	closed   bool
	eos      bool
	gen      int
	notEmpty *sync.Cond
}

type bufferedFrame struct {
	img image.Image
	pts time.Duration
	gen int // seek generation the frame was decoded in
}

// newFrameBuffer holds up to capacity frames.
func newFrameBuffer(capacity int) *frameBuffer {
	fb := &frameBuffer{
		frames:  make([]bufferedFrame, capacity+1),
		maxSize: capacity + 1,
	}
	fb.notEmpty = sync.NewCond(&fb.mu)
	return fb
}

func (fb *frameBuffer) usedLocked() int {
	return (fb.writePos - fb.readPos + fb.maxSize) % fb.maxSize
}

// Push never blocks; it reports false when the buffer is full, closed,
// or the frame belongs to an older seek generation.
func (fb *frameBuffer) Push(f bufferedFrame) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed || fb.eos || f.gen != fb.gen {
		return false
	}
	if fb.usedLocked() >= fb.maxSize-1 {
		return false
	}

	fb.frames[fb.writePos] = f
	fb.writePos = (fb.writePos + 1) % fb.maxSize
	fb.notEmpty.Signal()
	return true
}

// Pop blocks until a frame is available. It returns false once the buffer
// is closed, or drained after end of stream.
func (fb *frameBuffer) Pop() (bufferedFrame, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for {
		if fb.closed {
			return bufferedFrame{}, false
		}

		if fb.usedLocked() > 0 {
			f := fb.frames[fb.readPos]
			fb.frames[fb.readPos] = bufferedFrame{}
			fb.readPos = (fb.readPos + 1) % fb.maxSize
			return f, true
		}

		if fb.eos {
			return bufferedFrame{}, false
		}

		fb.notEmpty.Wait()
	}
}

func (fb *frameBuffer) BufferedCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.usedLocked()
}

// Percent is the fill level, 100 once the whole stream has been decoded.
func (fb *frameBuffer) Percent() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.eos {
		return 100
	}
	return fb.usedLocked() * 100 / (fb.maxSize - 1)
}

// Flush drops buffered frames and starts seek generation gen.
func (fb *frameBuffer) Flush(gen int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.frames {
		fb.frames[i] = bufferedFrame{}
	}
	fb.readPos = 0
	fb.writePos = 0
	fb.eos = false
	fb.gen = gen
}

func (fb *frameBuffer) MarkEOS() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.eos = true
	fb.notEmpty.Broadcast()
}

func (fb *frameBuffer) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.closed = true
	fb.notEmpty.Broadcast()
}
