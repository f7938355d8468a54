package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/feedplay/internal/player"
	"github.com/sonroyaalmerol/feedplay/internal/repository"
	"github.com/sonroyaalmerol/feedplay/internal/ui"
)

const helpText = `commands:
  list              show every row
  play N            start row N
  pause | resume    control the playing row
  recycle N         tear row N down and bind a fresh widget
  leave             release playback
  focus loss|transient|duck|gain
  history           saved positions
  quit`

const shutdownTimeout = 5 * time.Second

var (
	errUnknownCommand = errors.New("unknown command")
	errBadRow         = errors.New("no such row")
	errNothingPlaying = errors.New("nothing is playing")
	errNoHistory      = errors.New("history needs the sqlite progress backend")
)

// History lists saved progress, newest first.
type History interface {
	ListProgress(ctx context.Context) ([]repository.Progress, error)
}

type row struct {
	index     int
	source    player.Source
	slot      *ui.RowSlot
	widget    *player.Widget
	buffering int
}

// Feed is a terminal list of video rows sharing one coordinator. Row
// state is only touched on the looper goroutine.
type Feed struct {
	coord   *player.Coordinator
	loop    *player.Looper
	store   player.ProgressStore
	history History
	sources []player.Source

	outMu sync.Mutex
	out   io.Writer

	rows []*row
}

func NewFeed(coord *player.Coordinator, loop *player.Looper, store player.ProgressStore, history History, sources []player.Source, out io.Writer) *Feed {
	return &Feed{
		coord:   coord,
		loop:    loop,
		store:   store,
		history: history,
		sources: sources,
		out:     out,
	}
}

func (f *Feed) printf(format string, args ...any) {
	f.outMu.Lock()
	defer f.outMu.Unlock()
	fmt.Fprintf(f.out, format+"\n", args...)
}

// Run binds the rows and executes commands read from in until quit, end of
// input or ctx is done. Playback is released on the way out, so the looper
// must outlive ctx.
func (f *Feed) Run(ctx context.Context, in io.Reader) error {
	if err := f.loop.Call(ctx, f.bindRows); err != nil {
		return err
	}
	defer f.shutdown(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	f.printf("%s", helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := f.Exec(ctx, line)
			if err != nil {
				f.printf("error: %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// shutdown releases playback on the looper, saving the playing row's
// position even when ctx has already been cancelled.
func (f *Feed) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := f.loop.Call(ctx, f.coord.Close); err != nil {
		slog.Error("failed to release playback on exit", "err", err)
	}
}

func (f *Feed) bindRows() {
	f.rows = lo.Map(f.sources, func(src player.Source, i int) *row {
		r := &row{index: i + 1, source: src}
		f.attach(r)
		return r
	})
}

// attach gives r a fresh slot and widget, the way a recycled list cell
// gets a new view holder.
func (f *Feed) attach(r *row) {
	r.slot = ui.NewRowSlot()
	r.buffering = -1
	r.widget = f.coord.NewWidget(r.slot)
	r.widget.AssignSource(r.source)
	r.widget.SetOnBufferingUpdate(func(percent int) {
		r.buffering = percent
	})
	first := true
	r.widget.SetOnStateChange(func(s player.PlaybackState) {
		if first {
			first = false
			return
		}
		f.printf("%s", f.status(r))
	})
}

func (f *Feed) status(r *row) string {
	return ui.StatusLine(ui.RowStatus{
		Index:     r.index,
		Source:    r.source,
		State:     r.widget.State(),
		Current:   r.widget.IsCurrent(),
		Buffering: r.buffering,
		Frames:    r.slot.Counter().Frames(),
	})
}

// Exec runs one command line. It reports true when the feed should stop.
func (f *Feed) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		f.printf("%s", helpText)
		return false, nil
	case "focus":
		change, err := parseFocus(args)
		if err != nil {
			return false, err
		}
		f.coord.AudioFocusChanged(change)
		return false, nil
	case "history":
		return false, f.cmdHistory(ctx)
	}

	var err error
	callErr := f.loop.Call(ctx, func() {
		switch cmd {
		case "list", "ls":
			f.cmdList(ctx)
		case "play":
			err = f.withRow(args, func(r *row) { r.widget.Start() })
		case "pause":
			err = f.withCurrent(func(r *row) { r.widget.Pause() })
		case "resume":
			err = f.withCurrent(func(r *row) { r.widget.Resume() })
		case "recycle":
			err = f.withRow(args, f.recycle)
		case "leave":
			f.coord.ReleaseAll()
		default:
			err = fmt.Errorf("%w: %s", errUnknownCommand, cmd)
		}
	})
	if callErr != nil {
		return true, callErr
	}
	return false, err
}

func (f *Feed) withRow(args []string, fn func(r *row)) error {
	if len(args) != 1 {
		return errBadRow
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(f.rows) {
		return fmt.Errorf("%w: %s", errBadRow, args[0])
	}
	fn(f.rows[n-1])
	return nil
}

func (f *Feed) withCurrent(fn func(r *row)) error {
	r, ok := lo.Find(f.rows, func(r *row) bool { return r.widget.IsCurrent() })
	if !ok {
		return errNothingPlaying
	}
	fn(r)
	return nil
}

func (f *Feed) recycle(r *row) {
	slog.Debug("recycling row", "row", r.index, "source", r.source)
	r.widget.Teardown()
	f.attach(r)
	f.printf("%s", f.status(r))
}

func (f *Feed) cmdList(ctx context.Context) {
	for _, r := range f.rows {
		st := ui.RowStatus{
			Index:     r.index,
			Source:    r.source,
			State:     r.widget.State(),
			Current:   r.widget.IsCurrent(),
			Buffering: r.buffering,
			Frames:    r.slot.Counter().Frames(),
		}
		if pos, err := f.store.GetProgress(ctx, string(r.source)); err == nil {
			st.Saved = pos
		}
		f.printf("%s", ui.StatusLine(st))
	}
}

func (f *Feed) cmdHistory(ctx context.Context) error {
	if f.history == nil {
		return errNoHistory
	}
	entries, err := f.history.ListProgress(ctx)
	if err != nil {
		return err
	}
	entries = lo.Filter(entries, func(p repository.Progress, _ int) bool { return p.Position > 0 })
	if len(entries) == 0 {
		f.printf("no saved positions")
		return nil
	}
	for _, p := range entries {
		f.printf("%s", ui.HistoryLine(p.Source, p.Position, p.UpdatedAt))
	}
	return nil
}

func parseFocus(args []string) (player.FocusChange, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: focus loss|transient|duck|gain")
	}
	switch strings.ToLower(args[0]) {
	case "loss":
		return player.FocusLoss, nil
	case "transient":
		return player.FocusLossTransient, nil
	case "duck":
		return player.FocusLossTransientCanDuck, nil
	case "gain":
		return player.FocusGain, nil
	}
	return 0, fmt.Errorf("unknown focus change %q", args[0])
}
