package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
)

// Status is the runner's view of an execution.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is an execution tracked by the Runner.
type Job struct {
	Execution   Execution     `json:"execution"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
	Error       string        `json:"error,omitempty"`

	cancel context.CancelFunc
}

// ErrRunnerFull is returned by Submit when the backlog is at capacity.
var ErrRunnerFull = ferrors.NewError(ferrors.CategoryWorkflow, "workflow runner is full").Retryable().Build()

// Runner executes submitted executions on a bounded worker pool.
type Runner struct {
	orchestrator *Orchestrator
	jobs         chan *Job
	workers      int
	maxSize      int
	recorder     metrics.Recorder

	mu          sync.RWMutex
	active      map[string]*Job
	history     []*Job
	historySize int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a runner with room for maxSize waiting executions.
func NewRunner(o *Orchestrator, maxSize, workers int, recorder metrics.Recorder) *Runner {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	if o == nil {
		panic("NewRunner: orchestrator is required")
	}
	return &Runner{
		orchestrator: o,
		jobs:         make(chan *Job, maxSize),
		workers:      workers,
		maxSize:      maxSize,
		recorder:     metrics.OrNoop(recorder),
		active:       make(map[string]*Job),
		historySize:  50,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	slog.Info("Starting workflow runner", "workers", r.workers, "max_size", r.maxSize)
	for i := range r.workers {
		r.wg.Add(1)
		go r.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running executions and waits for workers to exit. Cancelled
// executions still report completion.
func (r *Runner) Stop(_ context.Context) {
	r.stopOnce.Do(func() { close(r.stopChan) })

	r.mu.Lock()
	for _, job := range r.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// Submit queues exec and returns its id. An empty id is assigned.
func (r *Runner) Submit(exec Execution) (string, error) {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	if exec.Request.InstanceID == "" {
		return "", ferrors.ValidationError("instance id is required").
			WithContext("execution_id", exec.ID).
			Build()
	}
	job := &Job{Execution: exec, Status: StatusQueued, CreatedAt: time.Now()}

	select {
	case r.jobs <- job:
		return exec.ID, nil
	default:
		return "", ErrRunnerFull
	}
}

// IsActive reports whether the execution is running in this process.
func (r *Runner) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[id]
	return ok
}

// Snapshot returns a copy of a job (active first, then history).
func (r *Runner) Snapshot(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if j, ok := r.active[id]; ok {
		return snapshot(j), true
	}
	for _, j := range r.history {
		if j.Execution.ID == id {
			return snapshot(j), true
		}
	}
	return Job{}, false
}

func snapshot(j *Job) Job {
	cp := *j
	cp.cancel = nil
	return cp
}

func (r *Runner) worker(ctx context.Context, workerID string) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case job := <-r.jobs:
			if job != nil {
				r.process(ctx, job, workerID)
			}
		}
	}
}

func (r *Runner) process(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	r.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &start
	job.Status = StatusRunning
	r.active[job.Execution.ID] = job
	r.recorder.SetRunningExecutions(len(r.active))
	r.mu.Unlock()

	slog.Debug("Execution picked up", logfields.ExecutionID(job.Execution.ID), "worker", workerID)
	res := r.orchestrator.Run(jobCtx, job.Execution)

	end := time.Now()
	r.mu.Lock()
	job.CompletedAt = &end
	job.Duration = end.Sub(start)
	job.Outcome = res.Outcome
	job.Status = StatusSucceeded
	if res.Err != nil {
		job.Status = StatusFailed
		job.Error = res.Err.Error()
	}
	delete(r.active, job.Execution.ID)
	r.addToHistory(job)
	r.recorder.SetRunningExecutions(len(r.active))
	r.mu.Unlock()
}

func (r *Runner) addToHistory(job *Job) {
	r.history = append(r.history, job)
	if len(r.history) > r.historySize {
		copy(r.history, r.history[len(r.history)-r.historySize:])
		r.history = r.history[:r.historySize]
	}
}
