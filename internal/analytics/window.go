// Package analytics computes time-windowed community activity metrics from
// two message snapshots: the current window and the one before it.
package analytics

import (
	"fmt"
	"time"
)

// Preset names a window length offered to operators.
type Preset string

const (
	Preset7Days  Preset = "7days"
	Preset30Days Preset = "30days"
	Preset90Days Preset = "90days"
	PresetAll    Preset = "all"
)

// allTimeStart bounds the "all" preset.
var allTimeStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Window is the current analytics period [Start, End) and the preceding
// period [PreviousStart, Start). End doubles as "now" for the trailing
// daily histogram.
type Window struct {
	PreviousStart time.Time `json:"previousStart"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// ParsePreset validates a preset name. Empty selects 30 days.
func ParsePreset(raw string) (Preset, error) {
	switch Preset(raw) {
	case "":
		return Preset30Days, nil
	case Preset7Days, Preset30Days, Preset90Days, PresetAll:
		return Preset(raw), nil
	default:
		return "", fmt.Errorf("unknown range %q", raw)
	}
}

// WindowFor resolves a preset against now. The "all" preset has an empty
// previous window, so its growth rates are always zero.
func WindowFor(preset Preset, now time.Time) Window {
	days := 0
	switch preset {
	case Preset7Days:
		days = 7
	case Preset30Days:
		days = 30
	case Preset90Days:
		days = 90
	}
	if days == 0 {
		return Window{PreviousStart: allTimeStart, Start: allTimeStart, End: now}
	}
	return Window{
		PreviousStart: now.AddDate(0, 0, -2*days),
		Start:         now.AddDate(0, 0, -days),
		End:           now,
	}
}

// Contains reports whether t falls in the current period.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ContainsPrevious reports whether t falls in the previous period.
func (w Window) ContainsPrevious(t time.Time) bool {
	return !t.Before(w.PreviousStart) && t.Before(w.Start)
}
