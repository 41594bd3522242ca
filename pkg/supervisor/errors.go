package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunchFailed matches every *LaunchError.
	ErrLaunchFailed = errors.New("process launch failed")

	// ErrAlreadyRunning is returned by Start while a process is live.
	ErrAlreadyRunning = errors.New("process already running")

	// ErrNotRunning is returned by Wait and Restart when there is nothing to
	// wait for or relaunch.
	ErrNotRunning = errors.New("no process")

	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("supervisor disposed")
)

// LaunchError reports that the executable is missing, unusable, or could
// not be spawned.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunchFailed }
