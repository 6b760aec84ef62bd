package board

import (
	"math"
	"sort"
	"time"
)

// Tasks without an explicit order sort after every ordered task.
const orderSentinel = math.MaxInt

// Capacity is the concurrency budget at a point in time.
//
// Active counts tasks that are in-progress AND picked up; a task waiting for
// pickup does not occupy a slot, and an active task is never also eligible,
// so nothing is double-counted.
type Capacity struct {
	MaxConcurrent int `json:"maxConcurrent"`
	Active        int `json:"active"`
	Remaining     int `json:"remaining"`
}

// ComputeCapacity derives remaining slots: max(0, maxConcurrent - active).
func ComputeCapacity(tasks []*Task, maxConcurrent int) Capacity {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	active := 0
	for _, t := range tasks {
		if t.State() == StateClaimed {
			active++
		}
	}
	remaining := maxConcurrent - active
	if remaining < 0 {
		remaining = 0
	}
	return Capacity{MaxConcurrent: maxConcurrent, Active: active, Remaining: remaining}
}

// Eligible filters the collection down to work a worker may pick up right
// now, ordered by ascending order (missing order last) then createdAt.
func Eligible(tasks []*Task, now time.Time) []*Task {
	var out []*Task
	for _, t := range tasks {
		if eligible(t, now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := orderOf(out[i]), orderOf(out[j])
		if oi != oj {
			return oi < oj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func eligible(t *Task, now time.Time) bool {
	// An immediate "run now" waiting for a worker.
	if t.State() == StatePending {
		return true
	}
	if t.Status != StatusTodo {
		return false
	}
	// Unscheduled todo work is always up for grabs.
	if t.Schedule == nil {
		return true
	}
	// A paused schedule excludes the task even past its due time.
	if !t.ScheduleEnabled {
		return false
	}
	if t.Schedule.Immediate() {
		return true
	}
	// Unresolvable schedules leave ScheduledAt nil: visible but never due.
	return t.ScheduledAt != nil && !t.ScheduledAt.After(now)
}

func orderOf(t *Task) int {
	if t.Order == nil {
		return orderSentinel
	}
	return *t.Order
}
