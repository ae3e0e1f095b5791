// Package scheduler runs named background jobs on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/metrics"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

const defaultJobTimeout = 10 * time.Minute

// Job is a unit of periodic work. A zero Interval registers the job for
// on-demand runs only.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type entry struct {
	job Job
	mu  sync.Mutex
}

// Runner owns a set of jobs. At most one run of a job is active at a time.
type Runner struct {
	logger *zap.Logger
	jobs   map[string]*entry
	wg     sync.WaitGroup
}

func NewRunner(logger *zap.Logger, jobs ...Job) *Runner {
	r := &Runner{logger: logger, jobs: make(map[string]*entry, len(jobs))}
	for _, j := range jobs {
		if j.Timeout <= 0 {
			j.Timeout = defaultJobTimeout
		}
		r.jobs[j.Name] = &entry{job: j}
	}
	return r
}

// Names lists the registered jobs in sorted order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches one ticker goroutine per periodic job. They exit when ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for _, e := range r.jobs {
		if e.job.Interval <= 0 {
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, e)
	}
}

// Wait blocks until every goroutine started by Start has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, e *entry) {
	defer r.wg.Done()
	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()

	r.logger.Info("Scheduled job registered",
		zap.String("job", e.job.Name),
		zap.Duration("interval", e.job.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.run(ctx, e); err != nil && !errors.Is(err, ErrJobRunning) {
				r.logger.Error("Scheduled job failed", zap.String("job", e.job.Name), zap.Error(err))
			}
		}
	}
}

// RunNow runs the named job once and returns its error.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	e, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return r.run(ctx, e)
}

func (r *Runner) run(parent context.Context, e *entry) (err error) {
	if !e.mu.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, e.job.Name)
	}
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, e.job.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", e.job.Name, rec)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.JobRuns.WithLabelValues(e.job.Name, status).Inc()
		metrics.JobDuration.WithLabelValues(e.job.Name).Observe(time.Since(start).Seconds())
		r.logger.Info("Job finished",
			zap.String("job", e.job.Name),
			zap.String("status", status),
			zap.Duration("took", time.Since(start)))
	}()

	return e.job.Run(ctx)
}
