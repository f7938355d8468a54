package player

import (
	"context"
	"log/slog"
	"time"
)

const storeTimeout = 2 * time.Second

// Widget is the playback state machine of one list row. It must only be
// used on the dispatcher goroutine.
type Widget struct {
	c     *Coordinator
	slot  Slot
	scale ScaleType

	source Source
	state  PlaybackState
	torn   bool

	onStateChange func(PlaybackState)
	onBuffering   func(percent int)
}

func (w *Widget) Source() Source       { return w.source }
func (w *Widget) State() PlaybackState { return w.state }

// IsCurrent reports whether w owns the engine.
func (w *Widget) IsCurrent() bool {
	return w.c.Current() == w
}

// SetScaleType applies from the next Start.
func (w *Widget) SetScaleType(scale ScaleType) {
	w.scale = scale
}

// SetOnStateChange registers fn and immediately replays the current state to it.
func (w *Widget) SetOnStateChange(fn func(PlaybackState)) {
	w.onStateChange = fn
	if fn != nil {
		fn(w.state)
	}
}

func (w *Widget) SetOnBufferingUpdate(fn func(percent int)) {
	w.onBuffering = fn
}

// AssignSource binds the row to src and resets it to Normal. Assigning
// the source the widget is already playing is a no-op.
func (w *Widget) AssignSource(src Source) {
	if w.torn {
		return
	}
	if src == "" {
		slog.Warn("ignoring source assignment", "err", ErrInvalidSource)
		return
	}
	if w.IsCurrent() {
		if w.c.engine.BoundSource() == src {
			return
		}
		// the row was recycled while still owning the engine
		w.c.ReleaseAll()
	}
	w.source = src
	w.setState(StateNormal)
}

// Start takes over the engine and begins preparing the source.
func (w *Widget) Start() {
	if w.torn {
		return
	}
	if w.source == "" {
		slog.Warn("start without source", "err", ErrInvalidSource)
		return
	}

	w.c.RequestOwnership(w)
	if w.c.session != 0 {
		w.release()
	}

	w.slot.ShowSurface(true)
	if !w.c.host.RequestAudioFocus() {
		slog.Debug("audio focus not granted", "source", w.source)
	}
	w.c.host.SetKeepAwake(true)

	session := w.c.bind(w)
	slog.Info("preparing", "source", w.source, "session", session)

	w.slot.ShowLoading(true)
	w.setState(StatePreparing)
}

// Pause pauses playback. Ignored unless Playing.
func (w *Widget) Pause() {
	if w.torn || w.state != StatePlaying || !w.IsCurrent() {
		return
	}
	w.c.engine.Pause()
	w.slot.ShowLoading(false)
	w.setState(StatePaused)
}

// Resume continues playback. Ignored unless Paused.
func (w *Widget) Resume() {
	if w.torn || w.state != StatePaused || !w.IsCurrent() {
		return
	}
	w.play()
}

// Teardown is called when the row is destroyed. A widget that still owns
// the engine gives it up first. The widget ignores all calls afterwards.
func (w *Widget) Teardown() {
	if w.torn {
		return
	}
	if w.IsCurrent() {
		w.c.ReleaseAll()
	}
	w.torn = true
	w.onStateChange = nil
	w.onBuffering = nil
}

func (w *Widget) onPrepared() {
	if w.state != StatePreparing {
		return
	}
	pos := w.savedProgress()
	if pos > 0 {
		slog.Debug("resuming from saved progress", "source", w.source, "position", pos)
		w.c.engine.SeekTo(pos)
	}
	w.play()
}

func (w *Widget) play() {
	w.c.engine.Start()
	w.slot.ShowLoading(false)
	w.setState(StatePlaying)
}

func (w *Widget) onBufferingUpdate(percent int) {
	if w.state != StatePreparing && w.state != StatePlaying {
		return
	}
	if w.onBuffering != nil {
		w.onBuffering(percent)
	}
}

func (w *Widget) onError(err error) {
	slog.Error("playback failed", "source", w.source, "err", err)
	w.c.endSession()
	w.slot.ShowLoading(false)
	w.setState(StateError)
}

func (w *Widget) onCompletion() {
	w.c.endSession()
	w.saveProgress(0)
	w.slot.ShowLoading(false)
	w.setState(StateComplete)
}

// release persists the position of a started video and gives every
// borrowed resource back. Used on eviction, teardown and focus loss.
func (w *Widget) release() {
	if w.state == StatePaused || w.state == StatePlaying {
		w.saveProgress(w.c.engine.CurrentPosition())
	}
	w.c.endSession()
	w.slot.ShowSurface(false)
	w.slot.ShowLoading(false)
	w.c.host.AbandonAudioFocus()
	w.c.host.SetKeepAwake(false)
	w.setState(StateNormal)
}

func (w *Widget) setState(s PlaybackState) {
	w.state = s
	if w.onStateChange != nil {
		w.onStateChange(s)
	}
}

func (w *Widget) savedProgress() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	pos, err := w.c.store.GetProgress(ctx, string(w.source))
	if err != nil {
		slog.Warn("read saved progress", "source", w.source, "err", err)
		return 0
	}
	return pos
}

func (w *Widget) saveProgress(pos time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := w.c.store.SetProgress(ctx, string(w.source), pos); err != nil {
		slog.Warn("save progress", "source", w.source, "position", pos, "err", err)
	}
}
