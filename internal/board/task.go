package board

import (
	"time"

	"cronboard/internal/schedule"
)

// Status is the stored column of a task.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusArchived:
		return true
	default:
		return false
	}
}

// State is the effective lifecycle state, derived from status plus the
// pickup flag. It exists so eligibility and transition checks read as state
// names instead of field combinations.
type State string

const (
	StateBacklog State = "backlog"
	StateTodo    State = "todo"
	// StatePending: marked in-progress (user hit "run") but no worker has
	// claimed it yet.
	StatePending State = "pending"
	// StateClaimed: in-progress and picked up by a worker; occupies a
	// capacity slot.
	StateClaimed  State = "claimed"
	StateDone     State = "done"
	StateArchived State = "archived"
)

// RunRecord captures one past execution of a recurring task.
type RunRecord struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Task is the unit of work tracked by the board.
//
// Schedule round-trips through JSON as its source string (see
// schedule.Spec); a nil Schedule means a one-off task.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Channel     string   `json:"channel,omitempty"`

	Status Status `json:"status"`
	// Order positions the task within its status column; nil sorts last.
	Order *int `json:"order,omitempty"`

	Schedule        *schedule.Spec `json:"schedule,omitempty"`
	ScheduleEnabled bool           `json:"scheduleEnabled,omitempty"`
	ScheduledAt     *time.Time     `json:"scheduledAt,omitempty"`

	PickedUp   bool   `json:"pickedUp,omitempty"`
	SubagentID string `json:"subagentId,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`

	RunHistory []RunRecord `json:"runHistory,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// State derives the effective lifecycle state.
func (t *Task) State() State {
	switch t.Status {
	case StatusInProgress:
		if t.PickedUp {
			return StateClaimed
		}
		return StatePending
	case StatusBacklog:
		return StateBacklog
	case StatusTodo:
		return StateTodo
	case StatusDone:
		return StateDone
	case StatusArchived:
		return StateArchived
	default:
		return State(t.Status)
	}
}

// Recurring reports whether the task loops on completion: it has a valid,
// enabled schedule.
func (t *Task) Recurring() bool {
	return t.Schedule.Valid() && t.ScheduleEnabled
}

// Clone returns a deep copy. The service hands out clones only, so callers
// can never mutate the collection behind the lock.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Skills = append([]string(nil), t.Skills...)
	cp.Order = cloneIntPtr(t.Order)
	cp.ScheduledAt = cloneTimePtr(t.ScheduledAt)
	cp.StartedAt = cloneTimePtr(t.StartedAt)
	cp.CompletedAt = cloneTimePtr(t.CompletedAt)
	cp.ArchivedAt = cloneTimePtr(t.ArchivedAt)
	if t.RunHistory != nil {
		cp.RunHistory = make([]RunRecord, len(t.RunHistory))
		for i, r := range t.RunHistory {
			r.StartedAt = cloneTimePtr(r.StartedAt)
			r.CompletedAt = cloneTimePtr(r.CompletedAt)
			cp.RunHistory[i] = r
		}
	}
	return &cp
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
