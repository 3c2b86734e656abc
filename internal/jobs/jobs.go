// Package jobs runs the engine's periodic background work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one periodic task. Run must be safe to repeat.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner ticks every registered job on its own interval. Runs of the same
// job never overlap.
type Runner struct {
	jobs   []Job
	logger *zap.SugaredLogger
}

// NewRunner creates a runner for jobs.
func NewRunner(logger *zap.SugaredLogger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, logger: logger}
}

// Names returns the registered job names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start runs every job until ctx is done and waits for in-flight runs.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		if j.Interval <= 0 {
			r.logger.Warnw("job disabled", "job", j.Name)
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.loop(ctx, j)
		}(j)
	}
	r.logger.Infow("background jobs started", "jobs", r.Names())
	wg.Wait()
	r.logger.Infow("background jobs stopped")
}

func (r *Runner) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.execute(ctx, j)
		}
	}
}

// RunOnce executes the named job immediately.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, j := range r.jobs {
		if j.Name == name {
			return r.execute(ctx, j)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (r *Runner) execute(ctx context.Context, j Job) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, rec)
		}
		if err != nil {
			r.logger.Errorw("job failed", "job", j.Name, "duration", time.Since(start), "error", err)
			return
		}
		r.logger.Infow("job completed", "job", j.Name, "duration", time.Since(start))
	}()
	return j.Run(ctx)
}
