package pentagon

import (
	"errors"
	"fmt"
)

var (
	ErrBlocked        = errors.New("run blocked by input guard")
	ErrLockedOut      = errors.New("requester is locked out")
	ErrEmptyOutput    = errors.New("stage returned empty output")
	ErrMissingPersona = errors.New("missing persona")
	ErrInvalidStages  = errors.New("invalid stage graph")
	ErrNoExecutor     = errors.New("pipeline has no executor")
)

// StageError reports the stage at which a run failed.
type StageError struct {
	Stage StageID
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
