// Package tz resolves IANA timezone identifiers and converts between absolute
// instants and local wall-clock fields.
//
// Every schedule computation in this repo goes through this package so that
// "09:00" always means 09:00 on the wall clock of the configured zone,
// including across DST transitions.
package tz

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	cacheMu sync.RWMutex
	cache   = map[string]*time.Location{}
)

// Load resolves an IANA timezone identifier (e.g. "Asia/Jakarta").
// Results are cached per identifier; an empty identifier means UTC.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}

	cacheMu.RLock()
	loc, ok := cache[name]
	cacheMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("tz: unknown timezone %q: %w", name, err)
	}

	cacheMu.Lock()
	cache[name] = loc
	cacheMu.Unlock()
	return loc, nil
}

// LoadOrUTC resolves name, falling back to UTC when it does not resolve.
// Callers that must surface bad identifiers should use Load directly.
func LoadOrUTC(name string) *time.Location {
	loc, err := Load(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Parts is the local calendar decomposition of an instant.
type Parts struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int

	Weekday time.Weekday
}

// Decompose returns the local calendar fields of t in loc.
func Decompose(t time.Time, loc *time.Location) Parts {
	lt := t.In(loc)
	return Parts{
		Year:    lt.Year(),
		Month:   lt.Month(),
		Day:     lt.Day(),
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Second:  lt.Second(),
		Weekday: lt.Weekday(),
	}
}

// DateString formats the local calendar date of t in loc as YYYY-MM-DD.
func DateString(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// At returns the absolute instant corresponding to the given local wall-clock
// reading in loc. Out-of-range values (day 32, month 13, ...) normalize the
// usual Go way, which is exactly what the schedule math relies on for
// month/year rollover.
//
// The conversion guesses an offset and refines: build the reading as if it
// were UTC, shift by loc's offset at that guess, and re-check. A reading
// inside a DST gap keeps the first guess's offset, so a nonexistent reading
// like 02:30 on a US spring-forward day maps past the jump rather than
// before it. Ambiguous readings in a fall-back overlap resolve to the
// earlier occurrence.
func At(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	guess := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	_, off := guess.In(loc).Zone()
	t := guess.Add(-time.Duration(off) * time.Second)

	if _, off2 := t.In(loc).Zone(); off2 != off {
		// The offset changed between the guess and the candidate, so the
		// reading sits near a transition. Re-shift with the candidate's
		// offset and keep it only if it still shows the requested clock.
		refined := guess.Add(-time.Duration(off2) * time.Second)
		if sameClock(refined.In(loc), guess) {
			return refined
		}
	}
	return t
}

func sameClock(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute()
}

// Midnight returns local midnight of the calendar day holding t, shifted by
// addDays local days.
func Midnight(t time.Time, loc *time.Location, addDays int) time.Time {
	p := Decompose(t, loc)
	return At(loc, p.Year, p.Month, p.Day+addDays, 0, 0)
}
