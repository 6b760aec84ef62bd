package schedule

import (
	"fmt"
	"strings"
	"time"

	"cronboard/internal/tz"
)

// Kind describes the normalized kind of a schedule string.
type Kind int

const (
	// KindInvalid marks a schedule that was loaded from storage but no longer
	// parses. It never resolves to a next run; the task stays visible so the
	// operator can fix it.
	KindInvalid Kind = iota
	KindPreset
	KindCron
)

// Preset is a fixed recurrence keyword requiring no further parsing.
type Preset string

const (
	PresetDaily   Preset = "daily"
	PresetWeekly  Preset = "weekly"
	PresetMonthly Preset = "monthly"

	// PresetASAP and PresetNextHeartbeat mean "run as soon as a worker polls";
	// they are always due and never project future calendar runs.
	PresetASAP          Preset = "asap"
	PresetNextHeartbeat Preset = "next-heartbeat"
)

// Spec is a parsed schedule: either a preset or a compiled cron expression.
//
// Parse once at the boundary and keep the Spec on the task; resolution never
// re-parses. The zero value is invalid.
type Spec struct {
	raw    string
	kind   Kind
	preset Preset
	cron   cronExpr
}

// Parse parses a schedule string.
//
// Accepted forms:
//   - preset keyword: "daily", "weekly", "monthly", "asap", "next-heartbeat"
//   - cron expression: "minute hour day-of-month month day-of-week",
//     fields supporting "*", single values, comma lists, ranges, and "*/n"
//     steps; day-of-week 0-6 with 0=Sunday.
//
// Numeric values outside a field's legal range are rejected here rather than
// silently matching nothing at resolution time.
func Parse(raw string) (*Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("schedule required")
	}

	switch Preset(strings.ToLower(s)) {
	case PresetDaily, PresetWeekly, PresetMonthly, PresetASAP, PresetNextHeartbeat:
		return &Spec{raw: s, kind: KindPreset, preset: Preset(strings.ToLower(s))}, nil
	}

	ce, err := parseCron(s)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q (use a preset like 'daily' or a 5-field cron expression): %w", raw, err)
	}
	return &Spec{raw: s, kind: KindCron, cron: ce}, nil
}

func (s *Spec) String() string {
	if s == nil {
		return ""
	}
	return s.raw
}

func (s *Spec) Kind() Kind {
	if s == nil {
		return KindInvalid
	}
	return s.kind
}

func (s *Spec) Preset() Preset {
	if s == nil || s.kind != KindPreset {
		return ""
	}
	return s.preset
}

func (s *Spec) Valid() bool { return s != nil && s.kind != KindInvalid }

// Immediate reports whether the schedule means "run as soon as possible".
func (s *Spec) Immediate() bool {
	if s == nil || s.kind != KindPreset {
		return false
	}
	return s.preset == PresetASAP || s.preset == PresetNextHeartbeat
}

// Next computes the next run instant after now, evaluated against loc's wall
// clock. Immediate presets return now itself. ok is false when the schedule
// is invalid or the cron scan exhausts its bounded horizon.
func (s *Spec) Next(now time.Time, loc *time.Location) (time.Time, bool) {
	if s == nil || loc == nil {
		return time.Time{}, false
	}
	switch s.kind {
	case KindPreset:
		return nextPreset(s.preset, now, loc)
	case KindCron:
		return s.cron.next(now, loc)
	default:
		return time.Time{}, false
	}
}

func nextPreset(p Preset, now time.Time, loc *time.Location) (time.Time, bool) {
	switch p {
	case PresetDaily:
		return tz.Midnight(now, loc, 1), true
	case PresetWeekly:
		return tz.Midnight(now, loc, 7), true
	case PresetMonthly:
		// Local midnight on the 1st of the next local month.
		parts := tz.Decompose(now, loc)
		return tz.At(loc, parts.Year, parts.Month+1, 1, 0, 0), true
	case PresetASAP, PresetNextHeartbeat:
		// Due immediately; the queue treats these as always eligible anyway.
		return now, true
	default:
		return time.Time{}, false
	}
}

// MarshalText serializes the Spec back to its source string, so tasks
// round-trip schedules through JSON storage unchanged.
func (s *Spec) MarshalText() ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return []byte(s.raw), nil
}

// UnmarshalText parses a stored schedule string. A string that no longer
// parses is kept verbatim with KindInvalid instead of failing the whole
// collection load; such a schedule never resolves.
func (s *Spec) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		*s = Spec{raw: strings.TrimSpace(string(b)), kind: KindInvalid}
		return nil
	}
	*s = *parsed
	return nil
}
