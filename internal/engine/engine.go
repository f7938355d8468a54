// Package engine runs the single decode/render session behind every list
// row. It resolves a source, decodes it ahead into a bounded buffer and
// presents frames to the bound surface at their presentation time.
package engine

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/feedplay/internal/config"
	"github.com/sonroyaalmerol/feedplay/internal/player"
)

// Decoder yields decoded frames in presentation order. Next returns
// io.EOF after the last frame.
type Decoder interface {
	Next(ctx context.Context) (image.Image, time.Duration, error)
	Seek(pos time.Duration) error
	Close()
}

type Opener func(ctx context.Context, url string) (Decoder, error)

// Resolver turns a source into something the Opener can read.
type Resolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

type Engine struct {
	open           Opener
	resolver       Resolver
	bufferFrames   int
	reportInterval time.Duration

	mu   sync.Mutex
	sess *session
}

var _ player.Engine = (*Engine)(nil)

func New(cfg *config.Config, open Opener, resolver Resolver) *Engine {
	return &Engine{
		open:           open,
		resolver:       resolver,
		bufferFrames:   cfg.BufferFrames,
		reportInterval: cfg.BufferReportInterval,
	}
}

func (e *Engine) current() *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Bind replaces any live session and starts preparing req.Source.
func (e *Engine) Bind(req player.BindRequest) {
	s := newSession(req, e.bufferFrames, e.reportInterval)

	e.mu.Lock()
	old := e.sess
	e.sess = s
	e.mu.Unlock()

	if old != nil {
		old.stop()
	}
	go e.prepare(s)
}

func (e *Engine) prepare(s *session) {
	src := string(s.req.Source)
	url := src
	if e.resolver != nil {
		resolved, err := e.resolver.Resolve(s.ctx, src)
		if err != nil {
			s.fail(err)
			return
		}
		url = resolved
	}

	dec, err := e.open(s.ctx, url)
	if err != nil {
		s.fail(err)
		return
	}

	if !s.attach(dec) {
		dec.Close()
		return
	}
	slog.Debug("session prepared", "source", src, "session", s.req.Session)
	s.emit(player.Event{Kind: player.EventPrepared})
}

func (e *Engine) Start() {
	if s := e.current(); s != nil {
		s.play()
	}
}

func (e *Engine) Pause() {
	if s := e.current(); s != nil {
		s.gate.Set(false)
	}
}

func (e *Engine) SeekTo(pos time.Duration) {
	if s := e.current(); s != nil {
		s.seek(pos)
	}
}

func (e *Engine) CurrentPosition() time.Duration {
	if s := e.current(); s != nil {
		return time.Duration(s.position.Load())
	}
	return 0
}

func (e *Engine) BoundSource() player.Source {
	if s := e.current(); s != nil {
		return s.req.Source
	}
	return ""
}

func (e *Engine) Release() {
	e.mu.Lock()
	s := e.sess
	e.sess = nil
	e.mu.Unlock()

	if s != nil {
		s.stop()
	}
}
