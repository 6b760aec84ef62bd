package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cronboard/internal/schedule"
	logx "cronboard/pkg/logx"
)

// Default error texts for worker status reports that arrive without a message.
const (
	defaultFailureMessage = "task failed"
	defaultTimeoutMessage = "task execution timed out"
)

// CreateParams describes a new task. Status defaults to backlog; a non-empty
// Schedule makes the task recurring and enabled.
type CreateParams struct {
	Title       string
	Description string
	Priority    string
	Skills      []string
	Channel     string
	Status      Status
	Order       *int
	Schedule    string
}

// UpdateParams is a field patch; nil pointers leave fields untouched.
// Schedule: nil = unchanged, empty string = clear (task becomes one-off).
// Attaching a schedule to a done task moves it back to todo.
type UpdateParams struct {
	Title       *string
	Description *string
	Priority    *string
	Skills      *[]string
	Channel     *string
	Status      *Status
	Order       *int
	Schedule    *string
}

func (s *Service) Create(ctx context.Context, actor string, p CreateParams) (*Task, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, Invalidf("title is required")
	}
	status := p.Status
	if status == "" {
		status = StatusBacklog
	}
	if !status.Valid() || status == StatusArchived {
		return nil, Invalidf("invalid status %q", p.Status)
	}
	if err := s.validateChannel(p.Channel); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := &Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Priority:    p.Priority,
		Skills:      append([]string(nil), p.Skills...),
		Channel:     p.Channel,
		Status:      status,
		Order:       cloneIntPtr(p.Order),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if strings.TrimSpace(p.Schedule) != "" {
		spec, err := schedule.Parse(p.Schedule)
		if err != nil {
			return nil, Invalidf("schedule: %v", err)
		}
		t.Schedule = spec
		t.ScheduleEnabled = true
		s.resolveNextRun(ctx, t, now)
	}

	tasks := append(s.loadTasks(ctx), t)
	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.create", fmt.Sprintf("id=%s title=%q", t.ID, t.Title))
	s.publish(tasks)
	return t.Clone(), nil
}

func (s *Service) Update(ctx context.Context, actor, id string, p UpdateParams) (*Task, error) {
	if p.Channel != nil {
		if err := s.validateChannel(*p.Channel); err != nil {
			return nil, err
		}
	}
	if p.Status != nil {
		if !p.Status.Valid() || *p.Status == StatusArchived {
			return nil, Invalidf("invalid status %q", *p.Status)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Status == StatusArchived {
		return nil, Invalidf("task %s is archived", id)
	}

	now := s.now()
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, Invalidf("title is required")
		}
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Skills != nil {
		t.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.Channel != nil {
		t.Channel = *p.Channel
	}
	if p.Order != nil {
		t.Order = cloneIntPtr(p.Order)
	}

	if p.Status != nil && *p.Status != t.Status {
		t.Status = *p.Status
		if t.Status != StatusInProgress {
			// pickedUp=true is only meaningful while in-progress.
			t.PickedUp = false
			t.SubagentID = ""
		}
		if t.Status == StatusDone {
			if t.CompletedAt == nil {
				t.CompletedAt = &now
			}
		} else {
			t.CompletedAt = nil
		}
	}

	if p.Schedule != nil {
		if strings.TrimSpace(*p.Schedule) == "" {
			t.Schedule = nil
			t.ScheduleEnabled = false
			t.ScheduledAt = nil
		} else {
			spec, err := schedule.Parse(*p.Schedule)
			if err != nil {
				return nil, Invalidf("schedule: %v", err)
			}
			t.Schedule = spec
			t.ScheduleEnabled = true
			s.resolveNextRun(ctx, t, now)
			if t.Status == StatusDone {
				// An enabled schedule puts a finished task back in
				// rotation; done tasks never requeue on their own.
				t.Status = StatusTodo
				t.CompletedAt = nil
				t.StartedAt = nil
			}
		}
	}

	t.UpdatedAt = now
	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.update", "id="+t.ID)
	s.publish(tasks)
	return t.Clone(), nil
}

// Run marks a backlog/todo task in-progress for immediate execution. The
// task then waits in the queue for a worker pickup.
func (s *Service) Run(ctx context.Context, actor, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Status != StatusBacklog && t.Status != StatusTodo {
		return nil, Invalidf("cannot run task in status %q", t.Status)
	}

	now := s.now()
	t.Status = StatusInProgress
	t.PickedUp = false
	t.StartedAt = &now
	t.UpdatedAt = now

	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.run", "id="+t.ID)
	s.publish(tasks)
	return t.Clone(), nil
}

// Pickup claims a task for a worker. Valid from backlog/todo, or from an
// in-progress task not yet claimed (a "run now" waiting for a worker).
func (s *Service) Pickup(ctx context.Context, actor, id, subagentID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	switch t.State() {
	case StateBacklog, StateTodo, StatePending:
	case StateClaimed:
		return nil, Invalidf("task %s is already picked up", id)
	default:
		return nil, Invalidf("cannot pick up task in status %q", t.Status)
	}

	now := s.now()
	t.Status = StatusInProgress
	t.PickedUp = true
	t.SubagentID = subagentID
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now

	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.pickup", fmt.Sprintf("id=%s subagent=%s", t.ID, subagentID))
	s.publish(tasks)
	return t.Clone(), nil
}

// Complete finishes the current execution attempt.
//
// One-off tasks (and paused recurring ones) land in done, terminally; calling
// Complete again just refreshes the result. Enabled recurring tasks append a
// run record, get a fresh scheduledAt, and loop back to todo.
func (s *Service) Complete(ctx context.Context, actor, id, result, errMsg string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Status == StatusArchived {
		return nil, Invalidf("task %s is archived", id)
	}

	now := s.now()
	if t.Recurring() {
		rec := RunRecord{
			StartedAt:   cloneTimePtr(t.StartedAt),
			CompletedAt: &now,
			Result:      result,
			Error:       errMsg,
		}
		t.RunHistory = append(t.RunHistory, rec)
		if lim := s.cfg.HistoryLimit; lim > 0 && len(t.RunHistory) > lim {
			t.RunHistory = t.RunHistory[len(t.RunHistory)-lim:]
		}

		t.Status = StatusTodo
		s.resolveNextRun(ctx, t, now)
		t.StartedAt = nil
		t.CompletedAt = nil
	} else {
		t.Status = StatusDone
		t.CompletedAt = &now
	}
	t.Result = result
	t.Error = errMsg
	t.PickedUp = false
	t.SubagentID = ""
	t.UpdatedAt = now

	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.complete", fmt.Sprintf("id=%s recurring=%t err=%t", t.ID, t.Recurring(), errMsg != ""))
	s.publish(tasks)
	return t.Clone(), nil
}

// ReportStatus is the executor-facing progress entry point.
// "running" only logs; completed/failed/timeout all route through Complete.
func (s *Service) ReportStatus(ctx context.Context, actor, id, status, message string) (*Task, error) {
	switch status {
	case "running":
		s.log.Info("task running", logx.String("id", id), logx.String("detail", message))
		return s.Get(ctx, id)
	case "completed":
		return s.Complete(ctx, actor, id, message, "")
	case "failed":
		if message == "" {
			message = defaultFailureMessage
		}
		return s.Complete(ctx, actor, id, "", message)
	case "timeout":
		if message == "" {
			message = defaultTimeoutMessage
		}
		return s.Complete(ctx, actor, id, "", message)
	default:
		return nil, Invalidf("unknown status %q", status)
	}
}

// Pause disables a recurring schedule without touching scheduledAt; the task
// drops out of the queue even past its due time.
func (s *Service) Pause(ctx context.Context, actor, id string) (*Task, error) {
	return s.setScheduleEnabled(ctx, actor, id, false)
}

// Resume re-enables a paused schedule.
func (s *Service) Resume(ctx context.Context, actor, id string) (*Task, error) {
	return s.setScheduleEnabled(ctx, actor, id, true)
}

func (s *Service) setScheduleEnabled(ctx context.Context, actor, id string, enabled bool) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Status == StatusArchived {
		return nil, Invalidf("task %s is archived", id)
	}
	if t.Schedule == nil {
		return nil, Invalidf("task %s has no schedule", id)
	}

	t.ScheduleEnabled = enabled
	t.UpdatedAt = s.now()

	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	action := "task.pause"
	if enabled {
		action = "task.resume"
	}
	s.audit(ctx, actor, action, "id="+t.ID)
	s.publish(tasks)
	return t.Clone(), nil
}

// Archive soft-deletes a task: it disappears from default listings and the
// queue but stays retrievable with includeArchived. There is no un-archive.
func (s *Service) Archive(ctx context.Context, actor, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	t := findTask(tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}

	s.archiveLocked(t)
	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "task.archive", "id="+t.ID)
	s.publish(tasks)
	return t.Clone(), nil
}

// ArchiveMany archives all given ids in one cycle. Any unknown id fails the
// whole batch before anything is written.
func (s *Service) ArchiveMany(ctx context.Context, actor string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	picked := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t := findTask(tasks, id)
		if t == nil {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		picked = append(picked, t)
	}

	n := 0
	for _, t := range picked {
		if t.Status == StatusArchived {
			continue
		}
		s.archiveLocked(t)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.saveTasks(ctx, tasks); err != nil {
		return 0, err
	}
	s.audit(ctx, actor, "task.archive_bulk", fmt.Sprintf("count=%d", n))
	s.publish(tasks)
	return n, nil
}

func (s *Service) archiveLocked(t *Task) {
	now := s.now()
	t.Status = StatusArchived
	t.PickedUp = false
	t.SubagentID = ""
	t.ArchivedAt = &now
	t.UpdatedAt = now
}

// resolveNextRun recomputes scheduledAt from the task's schedule. An
// unresolvable schedule leaves it nil, which keeps the task out of the queue
// until rescheduled; that state is visible, not an error.
func (s *Service) resolveNextRun(ctx context.Context, t *Task, now time.Time) {
	next, ok := t.Schedule.Next(now, s.location(ctx))
	if !ok {
		t.ScheduledAt = nil
		s.log.Warn("schedule has no next run",
			logx.String("id", t.ID), logx.String("schedule", t.Schedule.String()))
		return
	}
	t.ScheduledAt = &next
}

func (s *Service) validateChannel(channel string) error {
	if channel == "" || s.channels == nil {
		return nil
	}
	known := s.channels.KnownChannelIDs()
	if _, ok := known[channel]; !ok {
		return Invalidf("unknown channel %q", channel)
	}
	return nil
}
