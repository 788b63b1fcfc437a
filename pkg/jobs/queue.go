package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a tracked job.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ErrQueueStopped is returned by Enqueue when the queue is not accepting work.
var ErrQueueStopped = errors.New("queue not running")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The job fails on the attempt
// that returned it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Record is the observable state of a job.
type Record struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Status     Status      `json:"status"`
	Attempts   int         `json:"attempts"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// Handler processes a job and returns its result.
type Handler func(context.Context, Job) (interface{}, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	// MaxRetries is the number of re-runs after the first failed attempt.
	MaxRetries int
	RetryDelay time.Duration
	// Retention bounds how long finished records stay visible.
	Retention time.Duration
	// OnFinish receives the record once per job, after its final outcome.
	OnFinish func(Record)
	Logger   *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	retention  time.Duration
	onFinish   func(Record)
	logger     *zap.Logger
	now        func() time.Time

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	records map[string]*Record
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		retention:  cfg.Retention,
		onFinish:   cfg.OnFinish,
		logger:     cfg.Logger,
		now:        func() time.Time { return time.Now().UTC() },
		jobs:       make(chan Job, cfg.BufferSize),
		records:    make(map[string]*Record),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue and returns its tracked record.
func (q *Queue) Enqueue(job Job) (Record, error) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return Record{}, fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	}
	ctx := q.ctx
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = q.now()
	}
	q.pruneLocked()
	rec := &Record{ID: job.ID, Type: job.Type, Status: StatusQueued, EnqueuedAt: job.Enqueued}
	q.records[job.ID] = rec
	snapshot := *rec
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.finish(job.ID, nil, ctx.Err())
		return Record{}, fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	case q.jobs <- job:
		return snapshot, nil
	}
}

// Get returns a copy of the job record.
func (q *Queue) Get(id string) (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(workerID, job)
		}
	}
}

func (q *Queue) run(workerID int, job Job) {
	q.markRunning(job.ID)
	result, err := q.handler(q.ctx, job)
	if err == nil {
		q.finish(job.ID, result, nil)
		return
	}
	q.handleFailure(workerID, job, err)
}

func (q *Queue) handleFailure(workerID int, job Job, err error) {
	if IsPermanent(err) {
		q.logger.Sugar().Warnw("job failed permanently", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
		q.finish(job.ID, nil, err)
		return
	}
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
		q.finish(job.ID, nil, err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)
	q.setStatus(job.ID, StatusQueued)

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.finish(j.ID, nil, q.ctx.Err())
		case <-timer.C:
			select {
			case q.jobs <- j:
			case <-q.ctx.Done():
				q.finish(j.ID, nil, q.ctx.Err())
			}
		}
	}(job)
}

func (q *Queue) markRunning(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return
	}
	now := q.now()
	rec.Status = StatusRunning
	rec.Attempts++
	rec.StartedAt = &now
}

func (q *Queue) setStatus(id string, status Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec, ok := q.records[id]; ok {
		rec.Status = status
	}
}

// finish settles a job once; later calls for the same job are ignored.
func (q *Queue) finish(id string, result interface{}, err error) {
	q.mu.Lock()
	rec, ok := q.records[id]
	if !ok || rec.FinishedAt != nil {
		q.mu.Unlock()
		return
	}
	now := q.now()
	rec.FinishedAt = &now
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	} else {
		rec.Status = StatusSucceeded
		rec.Result = result
		rec.Error = ""
	}
	snapshot := *rec
	q.mu.Unlock()

	if q.onFinish != nil {
		q.onFinish(snapshot)
	}
}

func (q *Queue) pruneLocked() {
	cutoff := q.now().Add(-q.retention)
	for id, rec := range q.records {
		if rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(q.records, id)
		}
	}
}
