package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronboard/internal/board"
	logx "cronboard/pkg/logx"
)

type memStore struct {
	mu       sync.Mutex
	tasks    []*board.Task
	settings *board.Settings
	activity []board.Activity
}

func (m *memStore) LoadTasks(context.Context) ([]*board.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*board.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *memStore) SaveTasks(_ context.Context, tasks []*board.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make([]*board.Task, len(tasks))
	copy(m.tasks, tasks)
	return nil
}

func (m *memStore) LoadSettings(context.Context) (*board.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memStore) SaveSettings(_ context.Context, s board.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *memStore) AppendActivity(_ context.Context, a board.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, a)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *board.Service) {
	t.Helper()
	b := board.NewService(board.Config{DefaultMaxConcurrent: 2}, &memStore{}, nil, nil, logx.Nop())
	s := New(Config{}, b, logx.Nop())
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts, b
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	b, err := readAll(resp)
	require.NoError(t, err)
	return resp, b
}

func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	return buf.Bytes(), err
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestTaskEndpoints(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	// create
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title":    "nightly build",
		"status":   "todo",
		"schedule": "daily",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created board.Task
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	assert.True(t, created.ScheduleEnabled)

	// get
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched board.Task
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "nightly build", fetched.Title)

	// list
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []*board.Task
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	// patch
	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/tasks/"+created.ID, map[string]any{
		"title": "nightly build v2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// archive via delete, then hidden from the default list
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/tasks?include_archived=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = nil
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)
}

func TestValidationAndNotFound(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	t.Run("missing title", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{"description": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad status value", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{"title": "x", "status": "later"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/tasks", bytes.NewBufferString("{"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown task id", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/tasks/ghost", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var er errorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		assert.NotEmpty(t, er.Error)
	})

	t.Run("unknown report status", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/tasks/nope/status", map[string]any{"status": "sleeping"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	})
}

func TestWorkerFlow(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	mkTask := func(title string) board.Task {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
			"title":  title,
			"status": "todo",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var tk board.Task
		require.NoError(t, json.Unmarshal(body, &tk))
		return tk
	}

	a := mkTask("a")
	b := mkTask("b")
	c := mkTask("c")

	// queue starts with all three eligible, capped at maxConcurrent=2
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var q struct {
		Tasks    []*board.Task  `json:"tasks"`
		Capacity board.Capacity `json:"capacity"`
	}
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Len(t, q.Tasks, 2)
	assert.Equal(t, 2, q.Capacity.Remaining)

	// pickup two
	for _, tk := range []board.Task{a, b} {
		resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/tasks/"+tk.ID+"/pickup", map[string]any{
			"subagentId": "agent-" + tk.ID[:4],
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	// queue drains to zero remaining even though c is still eligible
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Empty(t, q.Tasks)
	assert.Zero(t, q.Capacity.Remaining)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/queue?all=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &q))
	require.Len(t, q.Tasks, 1)
	assert.Equal(t, c.ID, q.Tasks[0].ID)

	// complete one, freeing a slot
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/tasks/"+a.ID+"/complete", map[string]any{
		"result": "ok",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var done board.Task
	require.NoError(t, json.Unmarshal(body, &done))
	assert.Equal(t, board.StatusDone, done.Status)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Len(t, q.Tasks, 1)
	assert.Equal(t, 1, q.Capacity.Remaining)

	// status report routes through the lifecycle
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/tasks/"+b.ID+"/status", map[string]any{
		"status": "failed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var failed board.Task
	require.NoError(t, json.Unmarshal(body, &failed))
	assert.Equal(t, "task failed", failed.Error)
}

func TestSettingsEndpoints(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set board.Settings
	require.NoError(t, json.Unmarshal(body, &set))
	assert.Equal(t, 2, set.MaxConcurrent)

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/settings", map[string]any{
		"maxConcurrent": 5,
		"timezone":      "Asia/Jakarta",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &set))
	assert.Equal(t, 5, set.MaxConcurrent)
	assert.Equal(t, "Asia/Jakarta", set.Timezone)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/settings", map[string]any{
		"maxConcurrent": 0,
		"timezone":      "UTC",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFutureRunsEndpoint(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title":    "daily report",
		"schedule": "daily",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tk board.Task
	require.NoError(t, json.Unmarshal(body, &tk))

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/tasks/%s/runs?days=7", ts.URL, tk.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []board.ProjectedRun
	require.NoError(t, json.Unmarshal(body, &runs))
	require.NotEmpty(t, runs)
	assert.Equal(t, runs[0].At.UTC().Format("2006-01-02"), runs[0].Date)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/tasks/"+tk.ID+"/runs?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
