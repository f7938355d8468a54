package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

type manualDispatcher struct {
	queue  []func()
	closed bool
}

func (d *manualDispatcher) Post(fn func()) bool {
	if d.closed || fn == nil {
		return false
	}
	d.queue = append(d.queue, fn)
	return true
}

func (d *manualDispatcher) drain() {
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue = d.queue[1:]
		fn()
	}
}

type fakeEngine struct {
	journal  *[]string
	requests []BindRequest
	bound    Source
	position time.Duration
	seeks    []time.Duration
	starts   int
	pauses   int
	releases int
}

func (e *fakeEngine) note(format string, args ...any) {
	if e.journal != nil {
		*e.journal = append(*e.journal, fmt.Sprintf(format, args...))
	}
}

func (e *fakeEngine) Bind(req BindRequest) {
	e.requests = append(e.requests, req)
	e.bound = req.Source
	e.note("engine:bind:%s", req.Source)
}

func (e *fakeEngine) Start()                         { e.starts++ }
func (e *fakeEngine) Pause()                         { e.pauses++ }
func (e *fakeEngine) SeekTo(pos time.Duration)       { e.seeks = append(e.seeks, pos) }
func (e *fakeEngine) CurrentPosition() time.Duration { return e.position }
func (e *fakeEngine) BoundSource() Source            { return e.bound }

func (e *fakeEngine) Release() {
	e.releases++
	e.bound = ""
	e.note("engine:release")
}

func (e *fakeEngine) last() BindRequest {
	return e.requests[len(e.requests)-1]
}

// emit sends an event for the most recent bind, the way a decoder
// goroutine would.
func (e *fakeEngine) emit(kind EventKind) {
	e.emitFor(e.last(), kind)
}

func (e *fakeEngine) emitFor(req BindRequest, kind EventKind) {
	ev := Event{Session: req.Session, Kind: kind}
	if kind == EventError {
		ev.Err = errors.New("decoder exploded")
	}
	req.Events(ev)
}

type memStore struct {
	saved map[string]time.Duration
	sets  int
	fail  bool
}

func newMemStore() *memStore {
	return &memStore{saved: map[string]time.Duration{}}
}

func (s *memStore) GetProgress(_ context.Context, key string) (time.Duration, error) {
	if s.fail {
		return 0, errors.New("store offline")
	}
	return s.saved[key], nil
}

func (s *memStore) SetProgress(_ context.Context, key string, pos time.Duration) error {
	if s.fail {
		return errors.New("store offline")
	}
	s.sets++
	s.saved[key] = pos
	return nil
}

type fakeSurface struct{ frames int }

func (s *fakeSurface) Present(image.Image, ScaleType) { s.frames++ }

type fakeSlot struct {
	surface       *fakeSurface
	surfaceShown  bool
	loadingShown  bool
	loadingToggle int
}

func newFakeSlot() *fakeSlot {
	return &fakeSlot{surface: &fakeSurface{}}
}

func (s *fakeSlot) Surface() Surface   { return s.surface }
func (s *fakeSlot) ShowSurface(v bool) { s.surfaceShown = v }
func (s *fakeSlot) ShowLoading(v bool) { s.loadingShown = v; s.loadingToggle++ }

type fakeHost struct {
	focusHeld bool
	awake     bool
	requests  int
	abandons  int
}

func (h *fakeHost) RequestAudioFocus() bool { h.requests++; h.focusHeld = true; return true }
func (h *fakeHost) AbandonAudioFocus()      { h.abandons++; h.focusHeld = false }
func (h *fakeHost) SetKeepAwake(on bool)    { h.awake = on }

type rig struct {
	engine   *fakeEngine
	store    *memStore
	host     *fakeHost
	dispatch *manualDispatcher
	coord    *Coordinator
	journal  []string
}

func newRig() *rig {
	r := &rig{
		store:    newMemStore(),
		host:     &fakeHost{},
		dispatch: &manualDispatcher{},
	}
	r.engine = &fakeEngine{journal: &r.journal}
	r.coord = NewCoordinator(r.engine, r.store, r.host, r.dispatch)
	return r
}

// widget creates a widget whose transitions are written to the journal.
func (r *rig) widget(name string, src Source) (*Widget, *fakeSlot) {
	slot := newFakeSlot()
	w := r.coord.NewWidget(slot)
	w.SetOnStateChange(func(s PlaybackState) {
		r.journal = append(r.journal, name+":"+s.String())
	})
	if src != "" {
		w.AssignSource(src)
	}
	return w, slot
}

// play starts w and delivers the prepared event.
func (r *rig) play(w *Widget) {
	w.Start()
	r.engine.emit(EventPrepared)
	r.dispatch.drain()
}

func indexOf(list []string, item string) int {
	for i, s := range list {
		if s == item {
			return i
		}
	}
	return -1
}

func lastIndexOf(list []string, item string) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == item {
			return i
		}
	}
	return -1
}
