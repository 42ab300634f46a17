// Package scheduler drives all periodic work from one in-process cron
// runner. Jobs are named, individually disableable, and mutually
// exclusive with themselves: a tick that arrives while the previous run
// is still going is counted and skipped, never queued.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is one unit of scheduled work. The context is cancelled when
// the scheduler stops.
type JobFunc func(ctx context.Context) error

// JobStatus is a point-in-time view of one job for the status endpoint.
type JobStatus struct {
	Name      string    `json:"name"`
	Spec      string    `json:"spec"`
	Running   bool      `json:"running"`
	Runs      uint64    `json:"runs"`
	Failures  uint64    `json:"failures"`
	Skips     uint64    `json:"skips"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

type job struct {
	name string
	spec string
	fn   JobFunc

	mu       sync.Mutex // held for the duration of a run
	running  atomic.Bool
	runs     atomic.Uint64
	failures atomic.Uint64
	skips    atomic.Uint64

	stateMu   sync.Mutex
	lastRun   time.Time
	lastError string
}

// Scheduler wraps a cron runner with named jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger

	// Observer, when set before Start, receives every completed run.
	Observer func(job string, seconds float64, err error)

	mu     sync.Mutex
	jobs   []*job
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a stopped scheduler. Cron specs use the standard 5-field
// format plus @every descriptors.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DiscardLogger)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a named job. Registration after Start is not supported.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	j := &job{name: name, spec: spec, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.run(j) }); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
	return nil
}

// run executes one tick of a job, skipping if the previous tick is still
// in flight.
func (s *Scheduler) run(j *job) {
	if !j.mu.TryLock() {
		j.skips.Add(1)
		s.logger.Printf("scheduler: job %s still running, tick skipped (%d total)", j.name, j.skips.Load())
		return
	}
	defer j.mu.Unlock()

	j.running.Store(true)
	defer j.running.Store(false)

	start := time.Now()
	err := j.fn(s.ctx)
	j.runs.Add(1)
	if s.Observer != nil {
		s.Observer(j.name, time.Since(start).Seconds(), err)
	}

	j.stateMu.Lock()
	j.lastRun = start
	if err != nil {
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.stateMu.Unlock()

	if err != nil {
		j.failures.Add(1)
		s.logger.Printf("scheduler: job %s failed after %s: %v", j.name, time.Since(start).Round(time.Millisecond), err)
	}
}

// RunNow fires one job immediately, outside its cron schedule, honoring
// the same mutual exclusion. Used at startup for jobs that must prime
// state before the first tick.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == name {
			go s.run(j)
			return true
		}
	}
	return false
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Printf("scheduler: started with %d jobs", len(s.jobs))
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()

	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()
	for _, j := range jobs {
		j.mu.Lock() // barrier: joins any run started before Stop
		j.mu.Unlock()
	}
	s.logger.Printf("scheduler: stopped")
}

// Status reports all jobs in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.stateMu.Lock()
		status := JobStatus{
			Name:      j.name,
			Spec:      j.spec,
			Running:   j.running.Load(),
			Runs:      j.runs.Load(),
			Failures:  j.failures.Load(),
			Skips:     j.skips.Load(),
			LastRun:   j.lastRun,
			LastError: j.lastError,
		}
		j.stateMu.Unlock()
		out = append(out, status)
	}
	return out
}
