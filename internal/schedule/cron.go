package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxScanMinutes bounds the minute-by-minute search to roughly one year.
// Expressions that never match within the bound resolve to "no next run".
const maxScanMinutes = 366 * 24 * 60

// cronExpr is a compiled 5-field cron expression. Each field is a bitmask of
// allowed values (bit v set means value v matches).
type cronExpr struct {
	minute uint64 // 0-59
	hour   uint64 // 0-23
	dom    uint64 // 1-31
	month  uint64 // 1-12
	dow    uint64 // 0-6, 0=Sunday
}

func parseCron(raw string) (cronExpr, error) {
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return cronExpr{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}

	var (
		ce  cronExpr
		err error
	)
	if ce.minute, err = parseField(fields[0], 0, 59); err != nil {
		return cronExpr{}, fmt.Errorf("minute: %w", err)
	}
	if ce.hour, err = parseField(fields[1], 0, 23); err != nil {
		return cronExpr{}, fmt.Errorf("hour: %w", err)
	}
	if ce.dom, err = parseField(fields[2], 1, 31); err != nil {
		return cronExpr{}, fmt.Errorf("day-of-month: %w", err)
	}
	if ce.month, err = parseField(fields[3], 1, 12); err != nil {
		return cronExpr{}, fmt.Errorf("month: %w", err)
	}
	if ce.dow, err = parseField(fields[4], 0, 6); err != nil {
		return cronExpr{}, fmt.Errorf("day-of-week: %w", err)
	}
	return ce, nil
}

// parseField compiles one field: "*", "*/n", single values, "a-b" ranges,
// and comma lists of the latter two.
func parseField(expr string, lo, hi int) (uint64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "*" {
		return rangeMask(lo, hi), nil
	}

	if rest, ok := strings.CutPrefix(expr, "*/"); ok {
		step, err := strconv.Atoi(rest)
		if err != nil || step <= 0 {
			return 0, fmt.Errorf("invalid step %q", expr)
		}
		var m uint64
		for v := lo; v <= hi; v += step {
			m |= 1 << uint(v)
		}
		return m, nil
	}

	var m uint64
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, fmt.Errorf("empty element in %q", expr)
		}
		if a, b, ok := strings.Cut(part, "-"); ok {
			from, err := parseValue(a, lo, hi)
			if err != nil {
				return 0, err
			}
			to, err := parseValue(b, lo, hi)
			if err != nil {
				return 0, err
			}
			if from > to {
				return 0, fmt.Errorf("descending range %q", part)
			}
			m |= rangeMask(from, to)
			continue
		}
		v, err := parseValue(part, lo, hi)
		if err != nil {
			return 0, err
		}
		m |= 1 << uint(v)
	}
	return m, nil
}

func parseValue(s string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, lo, hi)
	}
	return v, nil
}

func rangeMask(lo, hi int) uint64 {
	var m uint64
	for v := lo; v <= hi; v++ {
		m |= 1 << uint(v)
	}
	return m
}

func bit(mask uint64, v int) bool { return mask&(1<<uint(v)) != 0 }

// next scans minute-by-minute starting at the next whole minute after now,
// matching candidates against loc's wall-clock fields. All five fields must
// match (day-of-month AND day-of-week, unlike classic crontab OR semantics).
func (c cronExpr) next(now time.Time, loc *time.Location) (time.Time, bool) {
	t := now.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < maxScanMinutes; i++ {
		if c.matches(t.In(loc)) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}

func (c cronExpr) matches(lt time.Time) bool {
	return bit(c.minute, lt.Minute()) &&
		bit(c.hour, lt.Hour()) &&
		bit(c.dom, lt.Day()) &&
		bit(c.month, int(lt.Month())) &&
		bit(c.dow, int(lt.Weekday()))
}
