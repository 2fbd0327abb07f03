package driver

import (
	"errors"
	"fmt"
)

var (
	ErrBadConfig    = errors.New("driver: invalid config")
	ErrTooFewMotors = errors.New("driver: simulator has fewer motors than the gait drives")
	ErrNotConnected = errors.New("driver: not in the connected phase")
)

// StepError wraps a simulator failure with the iteration it happened in.
type StepError struct {
	Step int
	Time float64
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s: %v", e.Step, e.Time, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ShutdownError reports a failure while stopping or disconnecting after
// the walk.
type ShutdownError struct {
	Op  string
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown: %s: %v", e.Op, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}
