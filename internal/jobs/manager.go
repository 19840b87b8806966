package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/events"
	"github.com/razoraze123/dolibar/internal/queue"
	"github.com/razoraze123/dolibar/internal/ratelimit"
)

var ErrJobNotFound = errors.New("job not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Runner executes one scrape task and returns its JSON result. The manager
// stays agnostic of what a mode actually does.
type Runner interface {
	Run(ctx context.Context, task *queue.Task) (json.RawMessage, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task *queue.Task) (json.RawMessage, error)

func (f RunnerFunc) Run(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
	return f(ctx, task)
}

// URLResult is the outcome for one URL of a job.
type URLResult struct {
	URL    string          `json:"url"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	TookMS int64           `json:"took_ms"`
}

// Job is one batch of URLs scraped in a single mode.
type Job struct {
	ID          string      `json:"id"`
	Mode        queue.Mode  `json:"mode"`
	URLs        []string    `json:"urls"`
	Status      Status      `json:"status"`
	Completed   int         `json:"completed"`
	Failed      int         `json:"failed"`
	Results     []URLResult `json:"results,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type Config struct {
	// ConcurrentPages bounds how many URLs of one job run at once.
	ConcurrentPages int
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
	MaxRetries      int
}

// Store persists job lifecycle rows. *database.DB satisfies it.
type Store interface {
	InsertJob(ctx context.Context, job *database.ScrapeJob) error
	UpdateJobStatus(ctx context.Context, id string, status database.JobStatus, result json.RawMessage, errMsg string) error
	JobByID(ctx context.Context, id string) (*database.ScrapeJob, error)
}

// Manager tracks jobs in memory, runs them through a Runner with bounded
// parallelism, and mirrors lifecycle changes to postgres and the event
// stream when those are configured.
type Manager struct {
	cfg       Config
	runner    Runner
	db        Store
	publisher *events.Publisher
	limiter   ratelimit.Limiter
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(cfg Config, runner Runner, db Store, publisher *events.Publisher) *Manager {
	if cfg.ConcurrentPages < 1 {
		cfg.ConcurrentPages = 1
	}
	return &Manager{
		cfg:       cfg,
		runner:    runner,
		db:        db,
		publisher: publisher,
		limiter:   ratelimit.NewJitteredLimiter(cfg.RateLimitMin, cfg.RateLimitMax),
		logger:    slog.Default().With("component", "job_manager"),
		jobs:      make(map[string]*Job),
	}
}

// Submit registers a job and starts it in the background.
func (m *Manager) Submit(ctx context.Context, mode queue.Mode, urls []string) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Mode:      mode,
		URLs:      urls,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if m.db != nil {
		record := &database.ScrapeJob{
			ID:     job.ID,
			Mode:   string(mode),
			URLs:   urls,
			Status: database.JobPending,
		}
		if err := m.db.InsertJob(ctx, record); err != nil {
			m.logger.Warn("job persistence failed", "job_id", job.ID, "error", err)
		}
	}

	m.logger.Info("job submitted", "job_id", job.ID, "mode", mode, "urls", len(urls))
	go m.run(context.WithoutCancel(ctx), job.ID)
	return m.snapshot(job.ID), nil
}

// Get returns a copy of the job. Jobs from an earlier process run are
// served from the database when one is configured.
func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	if job := m.snapshot(id); job != nil {
		return job, nil
	}
	if m.db != nil {
		if record, err := m.db.JobByID(ctx, id); err == nil {
			return jobFromRecord(record), nil
		}
	}
	return nil, ErrJobNotFound
}

func jobFromRecord(record *database.ScrapeJob) *Job {
	job := &Job{
		ID:        record.ID,
		Mode:      queue.Mode(record.Mode),
		URLs:      record.URLs,
		Status:    Status(record.Status),
		CreatedAt: record.CreatedAt,
		Error:     record.ErrorMessage.String,
	}
	if len(record.Result) > 0 && json.Unmarshal(record.Result, &job.Results) == nil {
		for _, r := range job.Results {
			job.Completed++
			if r.Error != "" {
				job.Failed++
			}
		}
	}
	return job
}

// List returns all known jobs, newest first.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, m.snapshot(id))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (m *Manager) run(ctx context.Context, id string) {
	m.transition(ctx, id, StatusRunning, "")
	m.publisher.Publish(ctx, events.Event{EventType: events.EventJobStarted, JobID: id})

	job := m.snapshot(id)
	results := make([]URLResult, len(job.URLs))

	sem := make(chan struct{}, m.cfg.ConcurrentPages)
	var wg sync.WaitGroup
	for i, url := range job.URLs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = m.runOne(ctx, job, url)
			m.recordProgress(id, results[i])
		}(i, url)
	}
	wg.Wait()

	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	status := StatusCompleted
	errMsg := ""
	if failed == len(results) && len(results) > 0 {
		status = StatusFailed
		errMsg = "all urls failed"
	}

	m.mu.Lock()
	m.jobs[id].Results = results
	m.mu.Unlock()
	m.transition(ctx, id, status, errMsg)

	m.publisher.Publish(ctx, events.Event{
		EventType: events.EventJobFinished,
		JobID:     id,
		Error:     errMsg,
	})
	m.logger.Info("job finished", "job_id", id, "status", status, "failed", failed)
}

func (m *Manager) runOne(ctx context.Context, job *Job, url string) URLResult {
	started := time.Now()
	result := URLResult{URL: url}

	task := &queue.Task{
		ID:        uuid.New().String(),
		URL:       url,
		Mode:      job.Mode,
		CreatedAt: time.Now(),
	}

	var data json.RawMessage
	var err error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if err = m.limiter.Wait(ctx); err != nil {
			break
		}
		if data, err = m.runner.Run(ctx, task); err == nil {
			break
		}
		task.Retries++
		m.logger.Warn("task attempt failed", "job_id", job.ID, "url", url, "attempt", attempt+1, "error", err)
	}

	result.TookMS = time.Since(started).Milliseconds()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Data = data
		m.publisher.Publish(ctx, events.Event{
			EventType: events.EventProductScraped,
			JobID:     job.ID,
			URL:       url,
		})
	}
	return result
}

func (m *Manager) recordProgress(id string, result URLResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.Completed++
	if result.Error != "" {
		job.Failed++
	}
}

func (m *Manager) transition(ctx context.Context, id string, status Status, errMsg string) {
	now := time.Now()

	m.mu.Lock()
	job, ok := m.jobs[id]
	if ok {
		job.Status = status
		job.Error = errMsg
		switch status {
		case StatusRunning:
			job.StartedAt = &now
		case StatusCompleted, StatusFailed:
			job.CompletedAt = &now
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.db != nil {
		var payload json.RawMessage
		if status == StatusCompleted {
			payload, _ = json.Marshal(m.snapshot(id).Results)
		}
		if err := m.db.UpdateJobStatus(ctx, id, database.JobStatus(status), payload, errMsg); err != nil {
			m.logger.Warn("job status persistence failed", "job_id", id, "error", err)
		}
	}
}

// snapshot copies a job under the read lock so callers never share the
// mutable struct.
func (m *Manager) snapshot(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	copied.URLs = append([]string(nil), job.URLs...)
	copied.Results = append([]URLResult(nil), job.Results...)
	return &copied
}
