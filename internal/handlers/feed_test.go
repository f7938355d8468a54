package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sonroyaalmerol/feedplay/internal/player"
	"github.com/sonroyaalmerol/feedplay/internal/repository"
	. "github.com/smartystreets/goconvey/convey"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// eventually polls until the output contains want.
func (b *lockedBuffer) eventually(want string) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// instantEngine prepares every bind right away and reports a fixed position.
type instantEngine struct {
	mu    sync.Mutex
	bound player.Source
}

func (e *instantEngine) Bind(req player.BindRequest) {
	e.mu.Lock()
	e.bound = req.Source
	e.mu.Unlock()
	go req.Events(player.Event{Session: req.Session, Kind: player.EventPrepared})
}
func (e *instantEngine) Start()                         {}
func (e *instantEngine) Pause()                         {}
func (e *instantEngine) SeekTo(time.Duration)           {}
func (e *instantEngine) CurrentPosition() time.Duration { return 42 * time.Second }
func (e *instantEngine) BoundSource() player.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bound
}
func (e *instantEngine) Release() {
	e.mu.Lock()
	e.bound = ""
	e.mu.Unlock()
}

type memHistory struct {
	mu  sync.Mutex
	pos map[string]time.Duration
}

func (m *memHistory) GetProgress(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos[key], nil
}

func (m *memHistory) SetProgress(_ context.Context, key string, pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos[key] = pos
	return nil
}

func (m *memHistory) ListProgress(context.Context) ([]repository.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Progress
	for k, v := range m.pos {
		out = append(out, repository.Progress{Source: k, Position: v, UpdatedAt: time.Unix(0, 0)})
	}
	return out, nil
}

func TestFeed(t *testing.T) {
	Convey("Given a feed of two rows", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		loop := player.NewLooper(0)
		go loop.Run(ctx)

		store := &memHistory{pos: map[string]time.Duration{}}
		host := NewTerminalHost()
		coord := player.NewCoordinator(&instantEngine{}, store, host, loop)
		out := &lockedBuffer{}
		feed := NewFeed(coord, loop, store, store, []player.Source{"a.mp4", "b.mp4"}, out)
		So(loop.Call(ctx, feed.bindRows), ShouldBeNil)

		exec := func(line string) error {
			_, err := feed.Exec(ctx, line)
			return err
		}
		currentSource := func() player.Source {
			var src player.Source
			_ = loop.Call(ctx, func() {
				if w := coord.Current(); w != nil {
					src = w.Source()
				}
			})
			return src
		}

		Convey("Playing a row reaches Playing and holds focus", func() {
			So(exec("play 1"), ShouldBeNil)
			So(out.eventually("> 1 ▶ Playing"), ShouldBeTrue)
			So(currentSource(), ShouldEqual, player.Source("a.mp4"))
			So(host.Focused(), ShouldBeTrue)
			So(host.KeepAwake(), ShouldBeTrue)

			Convey("pause and resume act on the playing row", func() {
				So(exec("pause"), ShouldBeNil)
				So(out.eventually("1 ⏸ Paused"), ShouldBeTrue)
				So(exec("resume"), ShouldBeNil)
				So(strings.Count(out.String(), "1 ▶ Playing"), ShouldEqual, 2)
			})

			Convey("playing another row evicts the first and saves its position", func() {
				So(exec("play 2"), ShouldBeNil)
				So(out.eventually("> 2 ▶ Playing"), ShouldBeTrue)
				So(out.String(), ShouldContainSubstring, "1 · Normal")
				pos, _ := store.GetProgress(ctx, "a.mp4")
				So(pos, ShouldEqual, 42*time.Second)

				So(exec("list"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "resume@0:42")

				So(exec("history"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "0:42")
			})

			Convey("recycling the playing row releases playback", func() {
				So(exec("recycle 1"), ShouldBeNil)
				So(currentSource(), ShouldEqual, player.Source(""))
				So(host.Focused(), ShouldBeFalse)
			})

			Convey("a permanent focus loss releases playback", func() {
				So(exec("focus loss"), ShouldBeNil)
				So(out.eventually("1 · Normal"), ShouldBeTrue)
				So(currentSource(), ShouldEqual, player.Source(""))
			})

			Convey("a duckable focus loss keeps playing", func() {
				So(exec("focus duck"), ShouldBeNil)
				So(exec("list"), ShouldBeNil)
				So(currentSource(), ShouldEqual, player.Source("a.mp4"))
			})

			Convey("leave releases playback", func() {
				So(exec("leave"), ShouldBeNil)
				So(currentSource(), ShouldEqual, player.Source(""))
			})
		})

		Convey("Bad commands are reported", func() {
			So(errors.Is(exec("play 9"), errBadRow), ShouldBeTrue)
			So(errors.Is(exec("play x"), errBadRow), ShouldBeTrue)
			So(errors.Is(exec("pause"), errNothingPlaying), ShouldBeTrue)
			So(errors.Is(exec("rewind"), errUnknownCommand), ShouldBeTrue)
			So(exec("focus sideways"), ShouldNotBeNil)
			So(exec(""), ShouldBeNil)
		})

		Convey("quit stops the feed", func() {
			quit, err := feed.Exec(ctx, "quit")
			So(err, ShouldBeNil)
			So(quit, ShouldBeTrue)
		})
	})
}

// startLooper runs a looper that outlives the feed's context.
func startLooper(t *testing.T) *player.Looper {
	loopCtx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)
	loop := player.NewLooper(0)
	go loop.Run(loopCtx)
	return loop
}

func TestFeedRun(t *testing.T) {
	Convey("Run executes commands until quit and releases playback", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		loop := startLooper(t)

		host := NewTerminalHost()
		store := &memHistory{pos: map[string]time.Duration{}}
		coord := player.NewCoordinator(&instantEngine{}, store, host, loop)
		out := &lockedBuffer{}
		feed := NewFeed(coord, loop, store, nil, []player.Source{"a.mp4"}, out)

		err := feed.Run(ctx, strings.NewReader("play 1\nhistory\nquit\nplay 1\n"))
		So(err, ShouldBeNil)
		So(out.String(), ShouldContainSubstring, "commands:")
		So(out.String(), ShouldContainSubstring, errNoHistory.Error())
		So(host.Focused(), ShouldBeFalse)
		So(coord.Current(), ShouldBeNil)
	})
}

func TestFeedRunCancelled(t *testing.T) {
	Convey("Cancelling a running feed saves the playing row and frees the engine", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		loop := startLooper(t)
		host := NewTerminalHost()
		eng := &instantEngine{}
		store := &memHistory{pos: map[string]time.Duration{}}
		coord := player.NewCoordinator(eng, store, host, loop)
		out := &lockedBuffer{}
		feed := NewFeed(coord, loop, store, store, []player.Source{"a.mp4", "b.mp4"}, out)

		pr, pw := io.Pipe()
		defer pw.Close()
		done := make(chan error, 1)
		go func() { done <- feed.Run(ctx, pr) }()

		_, err := io.WriteString(pw, "play 1\n")
		So(err, ShouldBeNil)
		So(out.eventually("> 1 ▶ Playing"), ShouldBeTrue)

		cancel()
		select {
		case err := <-done:
			So(err, ShouldBeNil)
		case <-time.After(3 * time.Second):
			t.Fatal("Run did not return after cancel")
		}

		pos, _ := store.GetProgress(context.Background(), "a.mp4")
		So(pos, ShouldEqual, 42*time.Second)
		So(eng.BoundSource(), ShouldEqual, player.Source(""))
		So(host.Focused(), ShouldBeFalse)
		So(host.KeepAwake(), ShouldBeFalse)
	})
}
