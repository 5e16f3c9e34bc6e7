package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Objective evaluates one parameter set. It must honor ctx so that a timed
// out job stops at its next step boundary.
type Objective func(ctx context.Context, params ParameterSet) (Evaluation, error)

type SchedulerConfig struct {
	// Workers bounds concurrency. Zero means one per CPU.
	Workers int
	// JobTimeout is the wall-clock budget of a job. Zero disables it.
	JobTimeout time.Duration
	Metrics    *Metrics
}

// Scheduler runs queued jobs on a bounded worker pool. Run waits for every
// dispatched job before returning.
type Scheduler struct {
	workers int
	timeout time.Duration
	metrics *Metrics

	mu    sync.Mutex
	queue []*Job
	// onDone is called after each job reaches a terminal state.
	onDone func(*Job)
}

func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers %d", ErrConfiguration, cfg.Workers)
	}
	if cfg.JobTimeout < 0 {
		return nil, fmt.Errorf("%w: job timeout %s", ErrConfiguration, cfg.JobTimeout)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{workers: workers, timeout: cfg.JobTimeout, metrics: cfg.Metrics}, nil
}

func (s *Scheduler) Workers() int {
	return s.workers
}

// Submit queues a job for params.
func (s *Scheduler) Submit(params ParameterSet) *Job {
	j := newJob(params)
	s.mu.Lock()
	s.queue = append(s.queue, j)
	s.mu.Unlock()
	return j
}

// Jobs lists submitted jobs in submission order.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, len(s.queue))
	copy(out, s.queue)
	return out
}

// Run dispatches every queued job and returns once all have finished. A
// failing job never stops its siblings. If ctx ends, jobs not yet started
// are cancelled and running ones finish on their own terms.
func (s *Scheduler) Run(ctx context.Context, objective Objective) error {
	s.mu.Lock()
	jobs := s.queue
	s.mu.Unlock()

	work := make(chan *Job)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for _, j := range jobs {
			if j.State() != JobQueued {
				continue
			}
			select {
			case work <- j:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for range min(s.workers, max(len(jobs), 1)) {
		g.Go(func() error {
			for j := range work {
				s.execute(ctx, j, objective)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, j := range jobs {
		if j.Cancel() || j.State() == JobCancelled {
			s.metrics.cancelled()
			s.done(j)
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

type outcome struct {
	eval Evaluation
	err  error
}

// execute runs one job. Once started, a job only ends by finishing, failing
// or timing out: cancelling ctx stops dispatch, not running jobs.
func (s *Scheduler) execute(ctx context.Context, j *Job, objective Objective) {
	if ctx.Err() != nil {
		// left queued, Run marks it cancelled
		return
	}
	if !j.start() {
		// cancelled while waiting in the channel
		return
	}
	s.metrics.started()

	var (
		jctx   context.Context
		cancel context.CancelFunc
	)
	base := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		jctx, cancel = context.WithTimeoutCause(base, s.timeout, ErrJobTimeout)
	} else {
		jctx, cancel = context.WithCancel(base)
	}
	defer cancel()

	result := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("job", j.ID.String()).Bytes("stack", debug.Stack()).Msgf("job panicked: %v", r)
				result <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		eval, err := objective(jctx, j.Params)
		result <- outcome{eval: eval, err: err}
	}()

	var out outcome
	select {
	case out = <-result:
	case <-jctx.Done():
		out.err = jctx.Err()
	}
	if out.err != nil && errors.Is(context.Cause(jctx), ErrJobTimeout) {
		out.err = fmt.Errorf("%w after %s: %w", ErrJobTimeout, s.timeout, out.err)
	}

	if out.err != nil {
		j.fail(out.err)
		log.Warn().Err(j.Err()).Str("job", j.ID.String()).Msg("job failed")
	} else {
		j.complete(out.eval)
	}
	s.metrics.finished(j.State(), j.Duration())
	s.done(j)
}

func (s *Scheduler) done(j *Job) {
	if s.onDone != nil {
		s.onDone(j)
	}
}
