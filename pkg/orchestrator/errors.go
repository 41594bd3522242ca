package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPluginInstall matches every *PluginInstallError.
	ErrPluginInstall = errors.New("plugin install failed")

	// ErrServerExited matches every *ServerExitError.
	ErrServerExited = errors.New("server exited during startup")

	// ErrAlreadyStarted is returned by mutators once Ready has been called.
	ErrAlreadyStarted = errors.New("orchestrator already started")

	// ErrNotStarted is returned by Wait before a server was launched.
	ErrNotStarted = errors.New("server not started")

	// ErrDisposed is returned by Ready after Dispose.
	ErrDisposed = errors.New("orchestrator disposed")
)

// PluginInstallError reports an installer that could not run or exited
// non-zero. Output holds the installer's last lines.
type PluginInstallError struct {
	Plugin   Plugin
	ExitCode int
	Output   []string
	Err      error
}

func (e *PluginInstallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "install plugin %s", e.Plugin.Ref())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": installer exited with code %d", e.ExitCode)
	}
	if len(e.Output) > 0 {
		fmt.Fprintf(&b, " (last output: %s)", e.Output[len(e.Output)-1])
	}
	return b.String()
}

func (e *PluginInstallError) Unwrap() error { return e.Err }

func (e *PluginInstallError) Is(target error) bool { return target == ErrPluginInstall }

// ServerExitError reports that the server process ended while the
// orchestrator was waiting for it to become ready.
type ServerExitError struct {
	Code int
}

func (e *ServerExitError) Error() string {
	return fmt.Sprintf("server exited during startup with code %d", e.Code)
}

func (e *ServerExitError) Is(target error) bool { return target == ErrServerExited }
