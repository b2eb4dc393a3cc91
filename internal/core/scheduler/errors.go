package scheduler

import "errors"

var (
	// ErrAlreadyStarted is returned by Start when a loop goroutine is still active.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrInvalidState is returned when the run body is entered on an instance
	// that already terminated without an intervening Start or Reset.
	ErrInvalidState = errors.New("scheduler in invalid state")
	// ErrWaitSuperseded is returned by the wait methods when another caller
	// reset the scheduler while waiting.
	ErrWaitSuperseded = errors.New("scheduler wait superseded by reset")
	// ErrStoppedBeforeRunning is returned by StartAndWait when the loop exited
	// before Running could be observed.
	ErrStoppedBeforeRunning = errors.New("scheduler stopped before running")
	// ErrTickPanic wraps a panic raised by a field hook.
	ErrTickPanic = errors.New("scheduler tick panicked")
)
