package schedule

import "time"

// maxProjected caps the number of instants enumerated per projection,
// regardless of horizon. Very frequent expressions over a long horizon will
// under-report rather than spin; calendar views only need the near future.
const maxProjected = 200

// Project enumerates upcoming run instants within horizonDays of now,
// ascending and strictly before now+horizon. Each found instant re-seeds the
// search; Next is strictly-after, so the walk advances. The result is
// materialized eagerly so callers can index into it for calendar rendering.
//
// Immediate presets (asap, next-heartbeat) have no calendar and project to nil.
func Project(s *Spec, now time.Time, loc *time.Location, horizonDays int) []time.Time {
	if s == nil || loc == nil || horizonDays <= 0 || s.Immediate() {
		return nil
	}

	limit := now.AddDate(0, 0, horizonDays)
	var runs []time.Time
	cur := now
	for len(runs) < maxProjected {
		t, ok := s.Next(cur, loc)
		if !ok || !t.Before(limit) {
			break
		}
		runs = append(runs, t)
		cur = t
	}
	return runs
}
