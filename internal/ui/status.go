package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/sonroyaalmerol/feedplay/internal/player"
	"github.com/sonroyaalmerol/feedplay/internal/utils"
)

const barWidth = 20

// RowStatus is what a feed row shows.
type RowStatus struct {
	Index     int
	Source    player.Source
	State     player.PlaybackState
	Current   bool
	Buffering int // -1 when unknown
	Frames    int64
	Saved     time.Duration
}

func stateIcon(s player.PlaybackState) string {
	switch s {
	case player.StatePreparing:
		return "…"
	case player.StatePlaying:
		return "▶"
	case player.StatePaused:
		return "⏸"
	case player.StateComplete:
		return "✔"
	case player.StateError:
		return "✖"
	default:
		return "·"
	}
}

// StatusLine renders one row, e.g.
//
//	> 2 ▶ Playing    [##########----------]  50%  frames=120  clip.mp4
func StatusLine(r RowStatus) string {
	var b strings.Builder
	if r.Current {
		b.WriteString("> ")
	} else {
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "%d %s %-9s", r.Index, stateIcon(r.State), r.State)

	if r.Buffering >= 0 {
		fmt.Fprintf(&b, " %s %3d%%", ProgressBar(barWidth, float64(r.Buffering)/100), r.Buffering)
	}
	if r.Frames > 0 {
		fmt.Fprintf(&b, "  frames=%d", r.Frames)
	}
	if r.Saved > 0 {
		fmt.Fprintf(&b, "  resume@%s", utils.PrettyDuration(r.Saved))
	}
	fmt.Fprintf(&b, "  %s", Shorten(string(r.Source), 60))
	return b.String()
}

// Shorten cuts s to at most n runes, marking the cut with an ellipsis.
func Shorten(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(rs[:n-1]) + "…"
}

// HistoryLine renders a saved progress entry.
func HistoryLine(source string, pos time.Duration, updated time.Time) string {
	return fmt.Sprintf("%8s  %s  %s", utils.PrettyDuration(pos), updated.Format(time.DateTime), Shorten(source, 60))
}
