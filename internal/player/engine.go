package player

import "time"

type EventKind int

const (
	EventPrepared EventKind = iota
	EventBuffering
	EventCompleted
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPrepared:
		return "prepared"
	case EventBuffering:
		return "buffering"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is an asynchronous notification from the engine. Session is the
// token of the bind that produced it.
type Event struct {
	Session uint64
	Kind    EventKind
	Percent int
	Err     error
}

// BindRequest describes one decode session. Events may be called from any
// goroutine, including after the session was released.
type BindRequest struct {
	Session uint64
	Source  Source
	Surface Surface
	Scale   ScaleType
	Events  func(Event)
}

// Engine is the single decode/render session shared by every widget.
// All calls return immediately; outcomes arrive as events.
type Engine interface {
	Bind(req BindRequest)
	Start()
	Pause()
	SeekTo(pos time.Duration)
	CurrentPosition() time.Duration
	BoundSource() Source
	// Release tears down the session and detaches its surface.
	Release()
}
