package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"atelier/pkg/logger"
)

// Job represents a periodic background task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// RunRecorder observes finished job runs; *metrics.Metrics satisfies it
type RunRecorder interface {
	ObserveJob(job, outcome string, took time.Duration)
}

// Run outcomes reported to the recorder
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomePanicked = "panicked"
)

const defaultInterval = time.Minute

// Manager runs the registered jobs on their intervals until stopped.
// A failing or panicking run is logged and counted; the job keeps its schedule.
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	recorder RunRecorder
	jobs     []Job
	started  bool

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewManager creates a job manager bound to parent; recorder may be nil
func NewManager(parent context.Context, recorder RunRecorder) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		recorder: recorder,
	}
}

// Register adds a job. Jobs registered after Start are ignored.
func (m *Manager) Register(job Job) {
	if job == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		logger.WarnCtx(m.ctx, "job %s registered after start, ignoring", job.Name())
		return
	}
	m.jobs = append(m.jobs, job)
}

// Start launches every registered job; each runs once immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	for _, job := range jobs {
		m.wg.Add(1)
		go m.loop(job)
	}
	logger.InfoCtx(m.ctx, "started %d background job(s)", len(jobs))
}

// Stop signals all jobs to stop.
func (m *Manager) Stop() {
	m.cancel()
}

// Wait blocks until all jobs exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loop(job Job) {
	defer m.wg.Done()

	interval := job.Interval()
	if interval <= 0 {
		interval = defaultInterval
	}

	m.execute(job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.execute(job)
		}
	}
}

// execute performs one run and reports how it went
func (m *Manager) execute(job Job) {
	if m.ctx.Err() != nil {
		return
	}

	start := time.Now()
	outcome := OutcomeOK
	err := m.runSafely(job)
	took := time.Since(start)

	switch {
	case err == nil:
		logger.DebugCtx(m.ctx, "background job %s finished in %v", job.Name(), took)
	case isPanic(err):
		outcome = OutcomePanicked
		logger.ErrorCtx(m.ctx, "background job %s panicked after %v: %v", job.Name(), took, err)
	default:
		outcome = OutcomeFailed
		logger.WarnCtx(m.ctx, "background job %s failed after %v: %v", job.Name(), took, err)
	}

	if m.recorder != nil {
		m.recorder.ObserveJob(job.Name(), outcome, took)
	}
}

type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func isPanic(err error) bool {
	_, ok := err.(*panicError)
	return ok
}

func (m *Manager) runSafely(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return job.Run(m.ctx)
}
