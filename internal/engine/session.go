package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/feedplay/internal/player"
)

type session struct {
	req    player.BindRequest
	ctx    context.Context
	cancel context.CancelFunc

	frames         *frameBuffer
	gate           *gate
	seekCh         chan time.Duration
	reportInterval time.Duration

	mu      sync.Mutex
	dec     Decoder // owned by the producer once running
	running bool
	closed  bool
	startAt time.Duration

	// held by the presenter around each Present
	presentMu sync.Mutex

	position  atomic.Int64
	failOnce  sync.Once
	closeOnce sync.Once
}

func newSession(req player.BindRequest, bufferFrames int, reportInterval time.Duration) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		req:            req,
		ctx:            ctx,
		cancel:         cancel,
		frames:         newFrameBuffer(bufferFrames),
		gate:           newGate(),
		seekCh:         make(chan time.Duration, 1),
		reportInterval: reportInterval,
	}
}

func (s *session) emit(ev player.Event) {
	ev.Session = s.req.Session
	if s.req.Events != nil {
		s.req.Events(ev)
	}
}

// fail reports err once, unless the session was already stopped.
func (s *session) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.failOnce.Do(func() {
		slog.Warn("engine session failed", "source", s.req.Source, "session", s.req.Session, "err", err)
		s.emit(player.Event{Kind: player.EventError, Err: err})
	})
}

func (s *session) attach(dec Decoder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.dec = dec
	return true
}

func (s *session) closeDecoder(dec Decoder) {
	s.closeOnce.Do(dec.Close)
}

func (s *session) play() {
	s.mu.Lock()
	if s.closed || s.dec == nil {
		s.mu.Unlock()
		slog.Debug("start ignored, session not prepared", "session", s.req.Session)
		return
	}
	s.gate.Set(true)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	dec := s.dec
	start := s.startAt
	s.mu.Unlock()

	go s.produce(dec, start)
	go s.report()
	go s.consume()
}

func (s *session) seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.position.Store(int64(pos))
	if !s.running {
		s.startAt = pos
		return
	}
	// keep only the latest request
	select {
	case <-s.seekCh:
	default:
	}
	s.seekCh <- pos
}

// stop cancels the session. Once it returns no frame reaches the surface;
// it waits for an in-flight Present but never for event delivery.
func (s *session) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	running := s.running
	dec := s.dec
	s.mu.Unlock()

	s.cancel()
	s.frames.Close()

	if !running {
		if dec != nil {
			s.closeDecoder(dec)
		}
		return
	}
	// wait out a Present that passed its ctx check before cancel
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
}

func (s *session) produce(dec Decoder, start time.Duration) {
	defer s.closeDecoder(dec)

	if start > 0 {
		if err := dec.Seek(start); err != nil {
			slog.Warn("initial seek failed", "source", s.req.Source, "position", start, "err", err)
		}
	}

	gen := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case pos := <-s.seekCh:
			if err := dec.Seek(pos); err != nil {
				slog.Warn("seek failed", "source", s.req.Source, "position", pos, "err", err)
			}
			gen++
			s.frames.Flush(gen)
			continue
		default:
		}

		img, pts, err := dec.Next(s.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.closeDecoder(dec)
				s.frames.MarkEOS()
				return
			}
			s.fail(fmt.Errorf("decode: %w", err))
			return
		}

		f := bufferedFrame{img: img, pts: pts, gen: gen}
		for !s.frames.Push(f) {
			if len(s.seekCh) > 0 {
				break
			}
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (s *session) consume() {
	var (
		wall0    time.Time
		media0   time.Duration
		gen      = -1
		anchored bool
	)
	waitOpen := func() bool {
		if s.gate.IsOpen() {
			return true
		}
		anchored = false
		select {
		case <-s.ctx.Done():
			return false
		case <-s.gate.Wait():
			return true
		}
	}

	for {
		if !waitOpen() {
			return
		}

		f, ok := s.frames.Pop()
		if !ok {
			if s.ctx.Err() == nil {
				slog.Debug("playback completed", "source", s.req.Source, "session", s.req.Session)
				s.emit(player.Event{Kind: player.EventCompleted})
			}
			return
		}

		if !anchored || f.gen != gen {
			wall0 = time.Now()
			media0 = f.pts
			gen = f.gen
			anchored = true
		}
		if d := time.Until(wall0.Add(f.pts - media0)); d > 0 {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(d):
			}
		}
		if !waitOpen() {
			return
		}
		if !s.present(f) {
			return
		}
		if !anchored {
			// resumed after a pause; restart the clock from this frame
			wall0 = time.Now()
			media0 = f.pts
			anchored = true
		}
	}
}

func (s *session) present(f bufferedFrame) bool {
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.req.Surface.Present(f.img, s.req.Scale)
	s.position.Store(int64(f.pts))
	return true
}

// report forwards the buffer fill level whenever it changes.
func (s *session) report() {
	ticker := time.NewTicker(s.reportInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			p := s.frames.Percent()
			if p == last {
				continue
			}
			last = p
			s.emit(player.Event{Kind: player.EventBuffering, Percent: p})
			if p == 100 && s.frames.BufferedCount() == 0 {
				return
			}
		}
	}
}
