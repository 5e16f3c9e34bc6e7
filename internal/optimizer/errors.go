package optimizer

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned before any job is scheduled.
	ErrConfiguration = errors.New("optimizer configuration error")
	ErrJobFailed     = errors.New("job failed")
	ErrJobTimeout    = errors.New("job timed out")
)

// JobError reports a failed job with the parameters it ran with.
type JobError struct {
	Params ParameterSet
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Params, e.Err)
}

// Unwrap matches both ErrJobFailed and the underlying cause.
func (e *JobError) Unwrap() []error {
	return []error{ErrJobFailed, e.Err}
}
