package optimizer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"simtrader/internal/engine"
)

type JobState int

const (
	JobQueued JobState = iota
	JobRunning
	JobCompleted
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Job is one simulation bound to a parameter set.
type Job struct {
	ID     uuid.UUID
	Params ParameterSet

	mu       sync.Mutex
	state    JobState
	eval     Evaluation
	err      error
	started  time.Time
	finished time.Time
}

// Evaluation is what an objective returns for one parameter set.
type Evaluation struct {
	Fitness decimal.Decimal
	Report  *engine.Report
}

func newJob(params ParameterSet) *Job {
	return &Job{ID: uuid.New(), Params: params, state: JobQueued}
}

func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cancel withdraws a job that has not started. It reports false once the
// job is running or done.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued {
		return false
	}
	j.state = JobCancelled
	j.finished = time.Now()
	return true
}

// Err is the cause of a failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) Evaluation() Evaluation {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.eval
}

// Duration is the wall time the job ran for.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started.IsZero() || j.finished.IsZero() {
		return 0
	}
	return j.finished.Sub(j.started)
}

func (j *Job) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued {
		return false
	}
	j.state = JobRunning
	j.started = time.Now()
	return true
}

func (j *Job) complete(eval Evaluation) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = JobCompleted
	j.eval = eval
	j.finished = time.Now()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = JobFailed
	j.err = &JobError{Params: j.Params, Err: err}
	j.finished = time.Now()
}
