package player

import (
	"context"
	"image"
	"time"
)

// Source identifies a playable resource. The empty Source means none.
type Source string

// PlaybackState is the state of one widget.
type PlaybackState int

const (
	StateError PlaybackState = iota - 1
	StateNormal
	StatePreparing
	StatePlaying
	StatePaused
	StateComplete
)

func (s PlaybackState) String() string {
	switch s {
	case StateError:
		return "Error"
	case StateNormal:
		return "Normal"
	case StatePreparing:
		return "Preparing"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

type ScaleType int

const (
	CenterCrop ScaleType = iota
	FitCenter
)

func (s ScaleType) String() string {
	if s == FitCenter {
		return "fit-center"
	}
	return "center-crop"
}

// Surface is the render target a widget lends to the engine.
type Surface interface {
	Present(frame image.Image, scale ScaleType)
}

// Slot is the visual container of one list row.
type Slot interface {
	Surface() Surface
	ShowSurface(visible bool)
	ShowLoading(visible bool)
}

// ProgressStore persists the last playback offset per source.
// GetProgress returns 0 for sources never saved.
type ProgressStore interface {
	GetProgress(ctx context.Context, key string) (time.Duration, error)
	SetProgress(ctx context.Context, key string, pos time.Duration) error
}

// Host exposes the best-effort platform capabilities used while playing.
type Host interface {
	RequestAudioFocus() bool
	AbandonAudioFocus()
	SetKeepAwake(on bool)
}

type FocusChange int

const (
	FocusGain FocusChange = iota
	FocusLoss
	FocusLossTransient
	FocusLossTransientCanDuck
)

func (f FocusChange) String() string {
	switch f {
	case FocusGain:
		return "gain"
	case FocusLoss:
		return "loss"
	case FocusLossTransient:
		return "loss-transient"
	case FocusLossTransientCanDuck:
		return "loss-transient-can-duck"
	default:
		return "unknown"
	}
}

type nopHost struct{}

func (nopHost) RequestAudioFocus() bool { return false }
func (nopHost) AbandonAudioFocus()      {}
func (nopHost) SetKeepAwake(bool)       {}
