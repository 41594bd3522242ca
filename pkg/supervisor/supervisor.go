// Package supervisor owns the lifecycle of one external process at a time.
//
// Start, Stop, Restart and Dispose are serialised by a mutex so a restart can
// never overlap another launch. Output is drained line by line on dedicated
// goroutines while a waiter collects the exit status, so a chatty child can
// never block on a full pipe.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/pkg/bufpool"
)

const (
	// DefaultGracePeriod is how long Stop waits after the polite signal
	// before killing.
	DefaultGracePeriod = 10 * time.Second

	// DefaultDrainGrace bounds how long output is still read after the
	// process exited. A descendant that inherited the pipes can keep them
	// open indefinitely.
	DefaultDrainGrace = 2 * time.Second

	maxLineLength = 1 << 20
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	Code     int // -1 when terminated by a signal
	Duration time.Duration
	Err      error // non-nil when the wait itself failed
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool { return s.Code == 0 && s.Err == nil }

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithGracePeriod sets the delay between the polite signal and the kill.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithName labels log lines emitted by the supervisor.
func WithName(name string) Option {
	return func(s *Supervisor) { s.name = name }
}

// Supervisor runs at most one process at a time.
type Supervisor struct {
	name       string
	grace      time.Duration
	drainGrace time.Duration

	mu       sync.Mutex
	h        *handle
	last     *LaunchSpec
	disposed bool
}

type handle struct {
	cmd     *exec.Cmd
	started time.Time
	done    chan struct{}
	status  ExitStatus
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// New returns an idle supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{name: "process", grace: DefaultGracePeriod, drainGrace: DefaultDrainGrace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the log label.
func (s *Supervisor) Name() string { return s.name }

// Start launches spec. It fails with *LaunchError when the executable is
// missing or cannot be spawned, and with ErrAlreadyRunning while a previous
// process is still alive.
func (s *Supervisor) Start(ctx context.Context, spec LaunchSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.h != nil {
		if !s.h.exited() {
			return ErrAlreadyRunning
		}
		s.h = nil
	}
	return s.startLocked(ctx, spec)
}

func (s *Supervisor) startLocked(ctx context.Context, spec LaunchSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(spec.executable)
	if err != nil {
		return &LaunchError{Executable: spec.executable, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &LaunchError{Executable: spec.executable, Err: fmt.Errorf("not a regular file (%s)", info.Mode().Type())}
	}

	cmd := exec.Command(spec.executable, spec.args...)
	cmd.Dir = spec.dir
	cmd.Env = spec.Env()
	setProcAttr(cmd)

	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return &LaunchError{Executable: spec.executable, Err: err}
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdout, stdoutW)
		return &LaunchError{Executable: spec.executable, Err: err}
	}
	cmd.Stdout, cmd.Stderr = stdoutW, stderrW

	err = cmd.Start()
	// The child owns the write ends now.
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdout, stderr)
		return &LaunchError{Executable: spec.executable, Err: err}
	}

	h := &handle{cmd: cmd, started: time.Now(), done: make(chan struct{})}
	sink := spec.output
	if sink == nil {
		sink = s.logLine
	}

	drained := make(chan struct{})
	var drains sync.WaitGroup
	drains.Add(2)
	go s.drain(&drains, stdout, Stdout, sink)
	go s.drain(&drains, stderr, Stderr, sink)
	go func() {
		drains.Wait()
		close(drained)
	}()
	go func() {
		h.status = exitStatus(cmd.Wait(), cmd.ProcessState, time.Since(h.started))

		timer := time.NewTimer(s.drainGrace)
		select {
		case <-drained:
		case <-timer.C:
			logger.Warn("output still open after exit, closing",
				logger.KeyCommand, s.name, logger.KeyPID, cmd.Process.Pid)
			closeAll(stdout, stderr)
			<-drained
		}
		timer.Stop()
		closeAll(stdout, stderr)

		close(h.done)
		logger.Debug("process exited",
			logger.KeyCommand, s.name,
			logger.KeyPID, cmd.Process.Pid,
			logger.KeyExitCode, h.status.Code)
	}()

	s.h = h
	s.last = &spec
	logger.Debug("process started",
		logger.KeyCommand, s.name,
		logger.KeyPID, cmd.Process.Pid,
		logger.KeyPath, spec.executable)
	return nil
}

func (s *Supervisor) drain(wg *sync.WaitGroup, r io.Reader, stream Stream, sink LineSink) {
	defer wg.Done()

	buf := bufpool.Get(bufpool.DefaultSmallSize)
	defer bufpool.Put(buf)

	sc := bufio.NewScanner(r)
	sc.Buffer(buf, maxLineLength)
	for sc.Scan() {
		sink(stream, sc.Text())
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("output drain stopped", logger.KeyCommand, s.name, logger.KeyStream, string(stream), logger.Err(err))
		// Keep the pipe empty so the child cannot block on a full buffer.
		_, _ = io.Copy(io.Discard, r)
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (s *Supervisor) logLine(stream Stream, line string) {
	logger.Debug(line, logger.KeyCommand, s.name, logger.KeyStream, string(stream))
}

func exitStatus(err error, ps *os.ProcessState, d time.Duration) ExitStatus {
	st := ExitStatus{Code: -1, Duration: d}
	if ps != nil {
		st.Code = ps.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		st.Err = err
	}
	return st
}

// Wait blocks until the current process exits or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) (ExitStatus, error) {
	s.mu.Lock()
	h := s.h
	disposed := s.disposed
	s.mu.Unlock()

	if h == nil {
		if disposed {
			return ExitStatus{}, ErrDisposed
		}
		return ExitStatus{}, ErrNotRunning
	}

	select {
	case <-h.done:
		return h.status, nil
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

// Stop terminates the current process: a polite signal first, a kill after
// the grace period or when ctx ends. It returns once the process is gone.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	return s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) error {
	h := s.h
	if h == nil {
		return nil
	}
	defer func() { s.h = nil }()

	if h.exited() {
		return nil
	}

	pid := h.cmd.Process.Pid
	if err := terminate(h.cmd.Process); err != nil {
		logger.Debug("terminate signal failed", logger.KeyPID, pid, logger.Err(err))
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		logger.Warn("process ignored termination, killing",
			logger.KeyCommand, s.name, logger.KeyPID, pid, logger.KeyTimeout, s.grace)
	case <-ctx.Done():
	}

	if err := kill(h.cmd.Process); err != nil {
		logger.Debug("kill failed", logger.KeyPID, pid, logger.Err(err))
	}
	// The waiter closes done at most drainGrace after the kill lands.
	<-h.done
	return ctx.Err()
}

// Restart stops the current process and launches the last spec again. The
// supervisor lock is held throughout, so no other Start can interleave.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.last == nil {
		return ErrNotRunning
	}
	if err := s.stopLocked(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return s.startLocked(ctx, *s.last)
}

// Run starts spec and waits for it to exit. If ctx ends first the process
// is stopped before returning.
func (s *Supervisor) Run(ctx context.Context, spec LaunchSpec) (ExitStatus, error) {
	if err := s.Start(ctx, spec); err != nil {
		return ExitStatus{}, err
	}
	st, err := s.Wait(ctx)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		_ = s.Stop(stopCtx)
		return st, err
	}
	return st, nil
}

// Dispose kills any live process and releases the supervisor. Failures are
// logged, never returned. Safe to call more than once.
func (s *Supervisor) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true

	h := s.h
	s.h = nil
	if h == nil || h.exited() {
		return
	}

	if err := kill(h.cmd.Process); err != nil {
		logger.Warn("dispose: kill failed", logger.KeyCommand, s.name, logger.KeyPID, h.cmd.Process.Pid, logger.Err(err))
	}
	select {
	case <-h.done:
	case <-time.After(s.grace):
		logger.Warn("dispose: process did not exit", logger.KeyCommand, s.name, logger.KeyPID, h.cmd.Process.Pid)
	}
}

// Pid returns the live process id, or 0.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == nil || s.h.exited() {
		return 0
	}
	return s.h.cmd.Process.Pid
}

// Running reports whether a process is live.
func (s *Supervisor) Running() bool {
	return s.Pid() != 0
}
