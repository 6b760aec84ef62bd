package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "cronboard/pkg/logx"
)

// memStore is an in-memory Store for tests, with switchable failure modes.
type memStore struct {
	mu       sync.Mutex
	tasks    []*Task
	settings *Settings
	activity []Activity

	failLoadTasks bool
	failSaveTasks bool
}

func (m *memStore) LoadTasks(context.Context) ([]*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoadTasks {
		return nil, errors.New("load failure injected")
	}
	out := make([]*Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *memStore) SaveTasks(_ context.Context, tasks []*Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveTasks {
		return errors.New("save failure injected")
	}
	m.tasks = make([]*Task, len(tasks))
	copy(m.tasks, tasks)
	return nil
}

func (m *memStore) LoadSettings(context.Context) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memStore) SaveSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *memStore) AppendActivity(_ context.Context, a Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, a)
	return nil
}

func (m *memStore) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.activity))
	for i, a := range m.activity {
		out[i] = a.Action
	}
	return out
}

type fixedChannels map[string]struct{}

func (f fixedChannels) KnownChannelIDs() map[string]struct{} { return f }

var testNow = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg Config) (*Service, *memStore) {
	t.Helper()
	st := &memStore{}
	svc := NewService(cfg, st, nil, nil, logx.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, st
}
