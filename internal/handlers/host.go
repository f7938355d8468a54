package handlers

import (
	"log/slog"
	"sync/atomic"
)

// TerminalHost stands in for the platform: focus is always granted and
// keep-awake is only recorded.
type TerminalHost struct {
	focused atomic.Bool
	awake   atomic.Bool
}

func NewTerminalHost() *TerminalHost { return &TerminalHost{} }

func (h *TerminalHost) RequestAudioFocus() bool {
	if !h.focused.Swap(true) {
		slog.Debug("audio focus granted")
	}
	return true
}

func (h *TerminalHost) AbandonAudioFocus() {
	if h.focused.Swap(false) {
		slog.Debug("audio focus abandoned")
	}
}

func (h *TerminalHost) SetKeepAwake(on bool) {
	if h.awake.Swap(on) != on {
		slog.Debug("keep awake", "on", on)
	}
}

func (h *TerminalHost) Focused() bool   { return h.focused.Load() }
func (h *TerminalHost) KeepAwake() bool { return h.awake.Load() }
