package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/adapsys/enclave/logging"
)

// JobFailure reports the terminal error of a recurring job.
type JobFailure struct {
	Job string
	Err error
}

// Job is a handle to one recurring background execution. A job runs until it
// is cancelled or its action returns an error; an erroring job is never
// restarted.
type Job struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Name returns the job's identifier.
func (j *Job) Name() string { return j.name }

// Cancel stops the job's loop. It is safe to call multiple times.
func (j *Job) Cancel() { j.cancel() }

// Done is closed once the job's loop has exited.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the action error that terminated the job, or nil if the job is
// still running or was cancelled.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// Runner starts recurring jobs. Each job runs its action, waits the given
// interval after the action returns, and repeats; there is no drift
// correction, no overlap prevention, no jitter and no catch-up.
type Runner struct {
	logger   logging.Logger
	failures chan JobFailure

	mu   sync.Mutex
	jobs []*Job
	wg   sync.WaitGroup
}

// Options configure a Runner.
type Options struct {
	// Logger receives job lifecycle messages. Defaults to NoOpLogger.
	Logger logging.Logger
	// FailureBuffer sizes the Failures channel. When the buffer is full,
	// further failures are logged and dropped rather than blocking job loops.
	FailureBuffer int
}

// NewRunner constructs a Runner with optional overrides.
func NewRunner(optFns ...func(o *Options)) *Runner {
	opts := Options{Logger: logging.NoOpLogger{}, FailureBuffer: 16}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		logger:   opts.Logger,
		failures: make(chan JobFailure, opts.FailureBuffer),
	}
}

// Failures exposes terminal job errors. Consuming it is optional.
func (r *Runner) Failures() <-chan JobFailure { return r.failures }

// Every starts a recurring job bound to ctx. The action runs once
// immediately, then again interval after each completion. The returned Job
// can be cancelled independently of ctx; an action error terminates the job
// and is surfaced on Failures.
func (r *Runner) Every(ctx context.Context, name string, interval time.Duration, action func(context.Context) error) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{name: name, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx, job, interval, action)

	r.logger.Debug("job started", "job", name, "interval", interval)
	return job
}

func (r *Runner) loop(ctx context.Context, job *Job, interval time.Duration, action func(context.Context) error) {
	defer r.wg.Done()
	defer close(job.done)

	timer := time.NewTimer(0) // first run is immediate
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("job cancelled", "job", job.name)
			return
		case <-timer.C:
		}

		if err := action(ctx); err != nil {
			job.setErr(err)
			r.report(JobFailure{Job: job.name, Err: err})
			return
		}

		// Intervals count from completion, so a slow action simply delays
		// the next run; there is no catch-up.
		timer.Reset(interval)
	}
}

func (r *Runner) report(f JobFailure) {
	select {
	case r.failures <- f:
	default:
		r.logger.Warn("job failure dropped, failures channel full", "job", f.Job, "error", f.Err)
	}
	r.logger.Error("job terminated", "job", f.Job, "error", f.Err)
}

// Stop cancels every job and waits for their loops to exit. Jobs that already
// terminated on error are unaffected.
func (r *Runner) Stop() {
	r.mu.Lock()
	jobs := make([]*Job, len(r.jobs))
	copy(jobs, r.jobs)
	r.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
	r.wg.Wait()
}
