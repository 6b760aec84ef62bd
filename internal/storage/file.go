package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cronboard/internal/board"
	logx "cronboard/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.tasks.json     (whole-collection snapshot)
//   - <prefix>.settings.json  (settings record)
//   - <prefix>.activity.jsonl (append-only JSON Lines)
//
// Snapshots are replaced atomically (tmp + rename) so a crash mid-write never
// truncates the collection.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	tasksPath    string
	settingsPath string
	activityFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".activity.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		tasksPath:    prefix + ".tasks.json",
		settingsPath: prefix + ".settings.json",
		activityFile: af,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityFile != nil {
		err := s.activityFile.Close()
		s.activityFile = nil
		return err
	}
	return nil
}

func (s *fileStore) LoadTasks(ctx context.Context) ([]*board.Task, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.tasksPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tasks []*board.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *fileStore) SaveTasks(ctx context.Context, tasks []*board.Task) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if tasks == nil {
		tasks = []*board.Task{}
	}
	b, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(s.tasksPath, b)
}

func (s *fileStore) LoadSettings(ctx context.Context) (*board.Settings, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.settingsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var set board.Settings
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *fileStore) SaveSettings(ctx context.Context, set board.Settings) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(s.settingsPath, b)
}

func (s *fileStore) AppendActivity(ctx context.Context, a board.Activity) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityFile == nil {
		return errors.New("activity log closed")
	}
	return json.NewEncoder(s.activityFile).Encode(a)
}

// replaceFile writes b to path atomically via tmp + rename.
func replaceFile(path string, b []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
