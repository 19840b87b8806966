package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/queue"
)

// fakeStore records lifecycle rows in memory.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]*database.ScrapeJob
	updates []database.JobStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*database.ScrapeJob)}
}

func (s *fakeStore) InsertJob(ctx context.Context, job *database.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	copied.CreatedAt = time.Now()
	s.rows[job.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, id string, status database.JobStatus, result json.RawMessage, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return errors.New("not found")
	}
	row.Status = status
	if result != nil {
		row.Result = result
	}
	row.ErrorMessage.String = errMsg
	row.ErrorMessage.Valid = errMsg != ""
	s.updates = append(s.updates, status)
	return nil
}

func (s *fakeStore) JobByID(ctx context.Context, id string) (*database.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *row
	return &copied, nil
}

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(context.Background(), id)
		require.NoError(t, err)
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never finished")
	return nil
}

func TestManagerRunsJob(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		if task.URL == "https://shop.example/broken" {
			return nil, errors.New("boom")
		}
		return json.Marshal(map[string]string{"url": task.URL})
	})

	m := NewManager(Config{ConcurrentPages: 2}, runner, nil, nil)
	job, err := m.Submit(context.Background(), queue.ModeVariants, []string{
		"https://shop.example/a",
		"https://shop.example/broken",
		"https://shop.example/b",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 3, done.Completed)
	assert.Equal(t, 1, done.Failed)

	require.Len(t, done.Results, 3)
	assert.Equal(t, "https://shop.example/a", done.Results[0].URL)
	assert.Empty(t, done.Results[0].Error)
	assert.Equal(t, "boom", done.Results[1].Error)
	assert.Nil(t, done.Results[1].Data)
}

func TestManagerAllFailed(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		return nil, errors.New("blocked")
	})

	m := NewManager(Config{ConcurrentPages: 1, MaxRetries: 1}, runner, nil, nil)
	job, err := m.Submit(context.Background(), queue.ModeImages, []string{"https://shop.example/a"})
	require.NoError(t, err)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Equal(t, "all urls failed", done.Error)
}

func TestManagerRetries(t *testing.T) {
	attempts := 0
	runner := RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return json.RawMessage(`{}`), nil
	})

	m := NewManager(Config{ConcurrentPages: 1, MaxRetries: 3}, runner, nil, nil)
	job, err := m.Submit(context.Background(), queue.ModePrice, []string{"https://shop.example/a"})
	require.NoError(t, err)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 3, attempts)
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil)
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManagerPersistsLifecycle(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		return json.RawMessage(`{"ok":true}`), nil
	})

	store := newFakeStore()
	m := NewManager(Config{ConcurrentPages: 1}, runner, store, nil)
	job, err := m.Submit(context.Background(), queue.ModeVariants, []string{"https://shop.example/a"})
	require.NoError(t, err)
	waitForJob(t, m, job.ID)

	store.mu.Lock()
	defer store.mu.Unlock()
	row, ok := store.rows[job.ID]
	require.True(t, ok)
	assert.Equal(t, database.JobCompleted, row.Status)
	assert.NotEmpty(t, row.Result)
	assert.Equal(t, []database.JobStatus{database.JobRunning, database.JobCompleted}, store.updates)
}

func TestManagerGetFallsBackToStore(t *testing.T) {
	store := newFakeStore()
	payload, _ := json.Marshal([]URLResult{
		{URL: "https://shop.example/a", Data: json.RawMessage(`{}`)},
		{URL: "https://shop.example/b", Error: "boom"},
	})
	store.rows["old-job"] = &database.ScrapeJob{
		ID:     "old-job",
		Mode:   "variants",
		URLs:   []string{"https://shop.example/a", "https://shop.example/b"},
		Status: database.JobCompleted,
		Result: payload,
	}

	m := NewManager(Config{}, nil, store, nil)
	job, err := m.Get(context.Background(), "old-job")
	require.NoError(t, err)
	assert.Equal(t, queue.ModeVariants, job.Mode)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 2, job.Completed)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.Results, 2)
	assert.Equal(t, "boom", job.Results[1].Error)

	_, err = m.Get(context.Background(), "never-existed")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManagerList(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	m := NewManager(Config{ConcurrentPages: 1}, runner, nil, nil)
	first, err := m.Submit(context.Background(), queue.ModeVariants, []string{"https://shop.example/a"})
	require.NoError(t, err)
	waitForJob(t, m, first.ID)

	second, err := m.Submit(context.Background(), queue.ModeVariants, []string{"https://shop.example/b"})
	require.NoError(t, err)
	waitForJob(t, m, second.ID)

	jobs := m.List()
	require.Len(t, jobs, 2)
}
