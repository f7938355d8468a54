package player

import (
	"log/slog"
	"weak"
)

// Coordinator owns the single engine session and decides which widget may
// use it. All methods must run on the dispatcher goroutine; engine events
// and focus changes are posted there before they touch any state.
type Coordinator struct {
	engine   Engine
	store    ProgressStore
	host     Host
	dispatch Dispatcher

	// owner never keeps a recycled widget alive.
	owner   weak.Pointer[Widget]
	session uint64 // live bind token, 0 when nothing is bound
	seq     uint64
}

func NewCoordinator(engine Engine, store ProgressStore, host Host, dispatch Dispatcher) *Coordinator {
	if host == nil {
		host = nopHost{}
	}
	return &Coordinator{
		engine:   engine,
		store:    store,
		host:     host,
		dispatch: dispatch,
	}
}

// NewWidget creates a widget for one list row.
func (c *Coordinator) NewWidget(slot Slot) *Widget {
	return &Widget{c: c, slot: slot, state: StateNormal}
}

// Current returns the widget that owns the engine, or nil.
func (c *Coordinator) Current() *Widget {
	return c.owner.Value()
}

// RequestOwnership makes w the owner. A different previous owner is
// released, and its progress saved, before this returns.
func (c *Coordinator) RequestOwnership(w *Widget) {
	if w == nil {
		return
	}
	prev := c.Current()
	if prev == w {
		return
	}
	if prev != nil {
		slog.Debug("evicting current owner", "source", prev.source, "next", w.source)
		prev.release()
	} else {
		c.dropOrphanedSession()
	}
	c.owner = weak.Make(w)
}

// ReleaseAll releases the owner, if any, and clears ownership.
func (c *Coordinator) ReleaseAll() {
	if prev := c.Current(); prev != nil {
		prev.release()
	} else {
		c.dropOrphanedSession()
	}
	c.owner = weak.Pointer[Widget]{}
}

// Close releases everything. The coordinator stays usable.
func (c *Coordinator) Close() {
	c.ReleaseAll()
}

// AudioFocusChanged may be called from any goroutine.
func (c *Coordinator) AudioFocusChanged(change FocusChange) {
	if !c.dispatch.Post(func() { c.onAudioFocusChange(change) }) {
		slog.Debug("audio focus change dropped", "change", change)
	}
}

func (c *Coordinator) onAudioFocusChange(change FocusChange) {
	slog.Info("audio focus changed", "change", change)
	switch change {
	case FocusLoss:
		c.ReleaseAll()
	case FocusLossTransient:
		if w := c.Current(); w != nil && w.state == StatePlaying {
			w.Pause()
		}
	}
}

// dropOrphanedSession ends a session whose owner was collected without
// being torn down.
func (c *Coordinator) dropOrphanedSession() {
	if c.session == 0 {
		return
	}
	slog.Warn("releasing session of a collected widget", "session", c.session)
	c.engine.Release()
	c.host.AbandonAudioFocus()
	c.host.SetKeepAwake(false)
	c.session = 0
}

func (c *Coordinator) bind(w *Widget) uint64 {
	c.seq++
	c.session = c.seq
	c.engine.Bind(BindRequest{
		Session: c.session,
		Source:  w.source,
		Surface: w.slot.Surface(),
		Scale:   w.scale,
		Events:  c.deliver,
	})
	return c.session
}

func (c *Coordinator) endSession() {
	c.engine.Release()
	c.host.AbandonAudioFocus()
	c.host.SetKeepAwake(false)
	c.session = 0
}

// deliver runs on engine goroutines.
func (c *Coordinator) deliver(ev Event) {
	if !c.dispatch.Post(func() { c.handle(ev) }) {
		slog.Debug("engine event dropped", "session", ev.Session, "kind", ev.Kind)
	}
}

func (c *Coordinator) handle(ev Event) {
	if ev.Session == 0 || ev.Session != c.session {
		slog.Debug("discarding stale engine event", "session", ev.Session, "live", c.session, "kind", ev.Kind)
		return
	}
	w := c.Current()
	if w == nil {
		slog.Debug("discarding engine event without owner", "session", ev.Session, "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case EventPrepared:
		w.onPrepared()
	case EventBuffering:
		w.onBufferingUpdate(ev.Percent)
	case EventCompleted:
		w.onCompletion()
	case EventError:
		w.onError(ev.Err)
	}
}
