package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cronboard/internal/eventbus"
	"cronboard/internal/schedule"
	"cronboard/internal/tz"
	logx "cronboard/pkg/logx"
)

// Settings is the store-backed runtime record.
type Settings struct {
	MaxConcurrent int    `json:"maxConcurrent"`
	Timezone      string `json:"timezone"`
}

// Activity is one audit record per mutating operation.
type Activity struct {
	At      time.Time `json:"at"`
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Details string    `json:"details,omitempty"`
}

// Store is the persistence boundary: whole-collection read/replace for tasks
// and settings, append-only for activity.
type Store interface {
	LoadTasks(ctx context.Context) ([]*Task, error)
	SaveTasks(ctx context.Context, tasks []*Task) error

	// LoadSettings returns (nil, nil) when no settings record exists yet.
	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	AppendActivity(ctx context.Context, a Activity) error
}

// ChannelProvider supplies the set of known routing channels for validating
// Task.Channel.
type ChannelProvider interface {
	KnownChannelIDs() map[string]struct{}
}

// Config carries board defaults; the store-backed Settings record overrides
// MaxConcurrent/Timezone when present.
type Config struct {
	DefaultTimezone      string
	DefaultMaxConcurrent int

	// HistoryLimit caps runHistory per task; 0 keeps it unbounded.
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxConcurrent < 1 {
		c.DefaultMaxConcurrent = 1
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "UTC"
	}
	return c
}

// Service is the task lifecycle controller and queue arbiter.
//
// Every mutating operation is a single read-modify-write cycle over the whole
// task collection, serialized by mu. Storage read failures degrade to an
// empty collection (logged); write failures abort the operation.
type Service struct {
	mu sync.Mutex

	log      logx.Logger
	cfg      Config
	store    Store
	bus      eventbus.Bus
	channels ChannelProvider

	now func() time.Time
}

func NewService(cfg Config, store Store, bus eventbus.Bus, channels ChannelProvider, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		cfg:      cfg.withDefaults(),
		store:    store,
		bus:      bus,
		channels: channels,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ApplyConfig swaps the board defaults, typically on config hot reload. The
// store-backed settings record still wins where present.
func (s *Service) ApplyConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// ---- collection + settings access (callers hold mu) ----

func (s *Service) loadTasks(ctx context.Context) []*Task {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		// Read-path degradation: treat an unreadable store as empty, loudly.
		s.log.Warn("task load failed; treating store as empty", logx.Err(err))
		return nil
	}
	return tasks
}

func (s *Service) saveTasks(ctx context.Context, tasks []*Task) error {
	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (s *Service) effectiveSettings(ctx context.Context) Settings {
	def := Settings{
		MaxConcurrent: s.cfg.DefaultMaxConcurrent,
		Timezone:      s.cfg.DefaultTimezone,
	}
	rec, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.log.Warn("settings load failed; using defaults", logx.Err(err))
		return def
	}
	if rec == nil {
		return def
	}
	out := *rec
	if out.MaxConcurrent < 1 {
		out.MaxConcurrent = def.MaxConcurrent
	}
	if out.Timezone == "" {
		out.Timezone = def.Timezone
	}
	return out
}

func (s *Service) location(ctx context.Context) *time.Location {
	return tz.LoadOrUTC(s.effectiveSettings(ctx).Timezone)
}

// ---- post-write side effects ----

func (s *Service) audit(ctx context.Context, actor, action, details string) {
	a := Activity{At: s.now(), Actor: actor, Action: action, Details: details}
	if err := s.store.AppendActivity(ctx, a); err != nil {
		// Best-effort: the operation already succeeded.
		s.log.Warn("activity append failed", logx.String("action", action), logx.Err(err))
	}
}

func (s *Service) publish(tasks []*Task) {
	if s.bus == nil {
		return
	}
	live := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != StatusArchived {
			live = append(live, t.Clone())
		}
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTasksChanged, Data: live})
}

// ---- read operations ----

// List returns the collection (clones). Archived tasks are excluded unless
// includeArchived is set.
func (s *Service) List(ctx context.Context, includeArchived bool) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Task
	for _, t := range s.loadTasks(ctx) {
		if !includeArchived && t.Status == StatusArchived {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// Get returns a task by id, archived included.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := findTask(s.loadTasks(ctx), id)
	if t == nil {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// QueueResult is one poll of the pull queue.
type QueueResult struct {
	Tasks    []*Task  `json:"tasks"`
	Capacity Capacity `json:"capacity"`
}

// Queue computes currently-eligible work. With limited=true the list is cut
// to the remaining capacity slots.
func (s *Service) Queue(ctx context.Context, limited bool) QueueResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	set := s.effectiveSettings(ctx)

	capacity := ComputeCapacity(tasks, set.MaxConcurrent)
	elig := Eligible(tasks, s.now())
	if limited && len(elig) > capacity.Remaining {
		elig = elig[:capacity.Remaining]
	}

	out := make([]*Task, len(elig))
	for i, t := range elig {
		out[i] = t.Clone()
	}
	return QueueResult{Tasks: out, Capacity: capacity}
}

// ProjectedRun is one upcoming run instant with its calendar date in the
// board's timezone.
type ProjectedRun struct {
	At   time.Time `json:"at"`
	Date string    `json:"date"`
}

// FutureRuns projects upcoming run instants for a scheduled task within the
// horizon. One-off tasks project to an empty sequence.
func (s *Service) FutureRuns(ctx context.Context, id string, horizonDays int) ([]ProjectedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := findTask(s.loadTasks(ctx), id)
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Schedule == nil {
		return nil, nil
	}
	loc := s.location(ctx)
	instants := schedule.Project(t.Schedule, s.now(), loc, horizonDays)
	runs := make([]ProjectedRun, 0, len(instants))
	for _, at := range instants {
		runs = append(runs, ProjectedRun{At: at, Date: tz.DateString(at, loc)})
	}
	return runs, nil
}

// ---- settings operations ----

func (s *Service) Settings(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, actor string, set Settings) (Settings, error) {
	if set.MaxConcurrent < 1 {
		return Settings{}, Invalidf("maxConcurrent must be >= 1, got %d", set.MaxConcurrent)
	}
	if _, err := tz.Load(set.Timezone); err != nil {
		return Settings{}, Invalidf("unknown timezone %q", set.Timezone)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveSettings(ctx, set); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.audit(ctx, actor, "settings.update",
		fmt.Sprintf("maxConcurrent=%d timezone=%s", set.MaxConcurrent, set.Timezone))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeSettingsChanged, Data: set})
	}
	return set, nil
}

func findTask(tasks []*Task, id string) *Task {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
