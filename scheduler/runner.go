package scheduler

import (
	"context"
	"log"
	"sync/atomic"
)

// Job is a named batch job a Runner can execute.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner serializes executions of one job: while a run is in flight, further
// triggers are dropped rather than queued, so cron fires and manual commands
// can never overlap.
type Runner struct {
	job     Job
	running atomic.Bool
}

func NewRunner(job Job) *Runner {
	return &Runner{job: job}
}

func (r *Runner) Name() string { return r.job.Name() }

// Running reports whether a run is currently in flight.
func (r *Runner) Running() bool { return r.running.Load() }

// Trigger starts a run unless one is already in flight. Returns false when
// the trigger was dropped.
func (r *Runner) Trigger(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		log.Printf("[%s] already running, trigger ignored", r.job.Name())
		return false
	}

	go func() {
		defer r.running.Store(false)
		if err := r.job.Run(ctx); err != nil {
			log.Printf("[%s] run failed: %v", r.job.Name(), err)
		}
	}()
	return true
}

// RunBlocking executes the job in the calling goroutine under the same
// overlap guard. Used for one-shot CLI invocations.
func (r *Runner) RunBlocking(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		log.Printf("[%s] already running, skipped", r.job.Name())
		return nil
	}
	defer r.running.Store(false)
	return r.job.Run(ctx)
}
