package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/internal/telemetry"
	"github.com/marmos91/esembed/pkg/bundle"
	"github.com/marmos91/esembed/pkg/readiness"
	"github.com/marmos91/esembed/pkg/supervisor"
)

// HealthPath is polled until the cluster reports at least yellow.
const HealthPath = "/_cluster/health?wait_for_status=yellow"

// ClusterNameFor derives the default cluster name from the HTTP port.
func ClusterNameFor(port int) string { return "cluster-" + strconv.Itoa(port) }

// NodeNameFor derives the default node name from the HTTP port.
func NodeNameFor(port int) string { return "node-" + strconv.Itoa(port) }

// process is the part of *supervisor.Supervisor the orchestrator drives.
type process interface {
	Start(ctx context.Context, spec supervisor.LaunchSpec) error
	Wait(ctx context.Context) (supervisor.ExitStatus, error)
	Restart(ctx context.Context) error
	Run(ctx context.Context, spec supervisor.LaunchSpec) (supervisor.ExitStatus, error)
	Pid() int
	Dispose()
}

// Orchestrator owns one server instance: its working directory, ports and
// process. Create it with New, wait with Ready, release it with Dispose.
type Orchestrator struct {
	id       string
	layout   Layout
	settings Settings
	metrics  Metrics
	output   supervisor.LineSink
	lc       *logger.LogContext

	newProcess func(name string) process
	probe      func(ctx context.Context, url string) error

	mu        sync.Mutex
	state     State
	started   bool
	cancel    context.CancelFunc
	server    process
	startedAt time.Time
	readyAt   time.Time

	once sync.Once
	done chan struct{}
	err  error

	disposeOnce sync.Once
}

// New prepares an instance: it picks free HTTP and transport ports, derives
// cluster and node names from the HTTP port, loads the default JVM flags,
// applies opts and creates the working directory. Nothing is extracted or
// launched until Ready.
func New(ctx context.Context, opts ...Option) (*Orchestrator, error) {
	free := func(p int) bool { return portFree("127.0.0.1", p) }
	port, err := pickPort(free)
	if err != nil {
		return nil, err
	}
	transport, err := pickPort(free, port)
	if err != nil {
		return nil, err
	}

	s := defaultSettings(port, transport)
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s = s.clone()

	id, dir, err := createWorkDir(s.WorkRoot)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		id:       id,
		layout:   Layout{Root: dir},
		settings: s,
		metrics:  s.Metrics,
		output:   s.Output,
		lc:       logger.NewLogContext(id),
		done:     make(chan struct{}),
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.output == nil {
		o.output = o.logOutput
	}
	o.newProcess = func(name string) process {
		return supervisor.New(supervisor.WithName(name), supervisor.WithGracePeriod(s.StopGrace))
	}
	o.probe = o.readinessProbe
	o.metrics.SetState(StateInitializing.String())

	logger.InfoCtx(logger.WithContext(ctx, o.lc), "instance created",
		logger.KeyPort, s.Port,
		logger.KeyTransportPort, s.TransportPort,
		logger.KeyPath, dir)
	return o, nil
}

func (s Settings) validate() error {
	var errs []error
	if s.RuntimeBundle == nil {
		errs = append(errs, errors.New("runtime bundle is required"))
	}
	if s.AppBundle == nil {
		errs = append(errs, errors.New("application bundle is required"))
	}
	if s.Port <= 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port %d", s.Port))
	}
	if s.TransportPort <= 0 || s.TransportPort > 65535 || s.TransportPort == s.Port {
		errs = append(errs, fmt.Errorf("invalid transport port %d", s.TransportPort))
	}
	if s.WorkRoot == "" {
		errs = append(errs, errors.New("work root is required"))
	}
	for i, p := range s.Plugins {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plugin %d has no name", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

// ID is the instance id, also the working directory name.
func (o *Orchestrator) ID() string { return o.id }

// BaseURL is the server's HTTP root, e.g. http://127.0.0.1:51234.
func (o *Orchestrator) BaseURL() string {
	return "http://" + o.settings.Host + ":" + strconv.Itoa(o.settings.Port)
}

func (o *Orchestrator) Port() int { return o.settings.Port }

func (o *Orchestrator) TransportPort() int { return o.settings.TransportPort }

func (o *Orchestrator) ClusterName() string { return o.settings.ClusterName }

func (o *Orchestrator) NodeName() string { return o.settings.NodeName }

func (o *Orchestrator) WorkDir() string { return o.layout.Root }

func (o *Orchestrator) Layout() Layout { return o.layout }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Flags returns a copy of the JVM flags.
func (o *Orchestrator) Flags() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.settings.Flags)
}

// SetFlags replaces the JVM flags. It fails once Ready has been called.
func (o *Orchestrator) SetFlags(flags []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.state == StateDisposed {
		return ErrAlreadyStarted
	}
	o.settings.Flags = slices.Clone(flags)
	return nil
}

// AddFlags appends JVM flags. It fails once Ready has been called.
func (o *Orchestrator) AddFlags(flags ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.state == StateDisposed {
		return ErrAlreadyStarted
	}
	o.settings.Flags = append(o.settings.Flags, flags...)
	return nil
}

// Plugins returns a copy of the plugin list.
func (o *Orchestrator) Plugins() []Plugin {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.settings.Plugins)
}

// AddPlugin queues p for installation. It fails once Ready has been called.
func (o *Orchestrator) AddPlugin(p Plugin) error {
	if p.Name == "" {
		return errors.New("plugin name is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.state == StateDisposed {
		return ErrAlreadyStarted
	}
	o.settings.Plugins = append(o.settings.Plugins, p)
	return nil
}

// Pid returns the server process id, or 0 when it is not running.
func (o *Orchestrator) Pid() int {
	o.mu.Lock()
	srv := o.server
	o.mu.Unlock()
	if srv == nil {
		return 0
	}
	return srv.Pid()
}

// Err returns the startup outcome once the pipeline has finished, nil
// before that or on success.
func (o *Orchestrator) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Ready starts the pipeline on the first call and blocks until it finishes.
// The first caller's ctx bounds the pipeline itself, so when it ends that
// caller still receives the pipeline's outcome (a *readiness.TimeoutError
// while waiting for readiness). Later calls never re-run anything: they
// wait for the same outcome, or return ctx.Err() if their own ctx ends
// first.
func (o *Orchestrator) Ready(ctx context.Context) error {
	owner := false
	o.once.Do(func() {
		owner = true
		o.mu.Lock()
		if o.state == StateDisposed {
			o.mu.Unlock()
			o.err = ErrDisposed
			close(o.done)
			return
		}
		pctx, cancel := context.WithCancel(ctx)
		o.started = true
		o.cancel = cancel
		o.startedAt = time.Now()
		flags := slices.Clone(o.settings.Flags)
		plugins := slices.Clone(o.settings.Plugins)
		o.mu.Unlock()

		go func() {
			defer close(o.done)
			defer cancel()
			o.err = o.run(pctx, flags, plugins)
		}()
	})

	if owner {
		<-o.done
		return o.err
	}
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the running server process exits or ctx ends. It is
// meant for use after Ready succeeded; before that it fails with
// ErrNotStarted.
func (o *Orchestrator) Wait(ctx context.Context) (supervisor.ExitStatus, error) {
	srv := o.currentServer()
	if srv == nil {
		return supervisor.ExitStatus{}, ErrNotStarted
	}
	return srv.Wait(ctx)
}

func (o *Orchestrator) run(ctx context.Context, flags []string, plugins []Plugin) error {
	ctx, span := telemetry.StartPhaseSpan(ctx, "startup", o.id,
		telemetry.Port(o.settings.Port),
		telemetry.TransportPort(o.settings.TransportPort),
		telemetry.WorkDir(o.layout.Root))
	defer span.End()
	ctx = logger.WithContext(ctx, o.lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	start := time.Now()
	if err := o.pipeline(ctx, flags, plugins); err != nil {
		telemetry.RecordError(ctx, err)
		_ = o.transition(ctx, StateFailed)
		logger.ErrorCtx(ctx, "startup failed", logger.Err(err), logger.KeyDurationMs, logger.Duration(start))
		return err
	}
	if err := o.transition(ctx, StateReady); err != nil {
		return err
	}

	o.mu.Lock()
	o.readyAt = time.Now()
	o.mu.Unlock()
	logger.InfoCtx(ctx, "server ready",
		logger.KeyURL, o.BaseURL(),
		logger.KeyPID, o.Pid(),
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

func (o *Orchestrator) pipeline(ctx context.Context, flags []string, plugins []Plugin) error {
	if err := o.phase(ctx, StateExtractingResources, o.setupEnvironment); err != nil {
		return err
	}
	if err := o.phase(ctx, StateStarting, func(ctx context.Context) error {
		return o.startProcess(ctx, flags)
	}); err != nil {
		return err
	}
	if err := o.phase(ctx, StateWaitingForReady, o.waitForReady); err != nil {
		return err
	}

	// Plugins only load at process start, so each install is followed by a
	// full restart and a fresh readiness wait before the next one.
	for i, p := range plugins {
		if err := o.phase(ctx, StateInstallingPlugins, func(ctx context.Context) error {
			return o.installPlugin(ctx, i, p)
		}); err != nil {
			return err
		}
		if err := o.phase(ctx, StateStarting, o.restartProcess); err != nil {
			return err
		}
		if err := o.phase(ctx, StateWaitingForReady, o.waitForReady); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) phase(ctx context.Context, state State, fn func(context.Context) error) error {
	if err := o.transition(ctx, state); err != nil {
		return err
	}
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithPhase(state.String()))
	ctx, span := telemetry.StartPhaseSpan(ctx, state.String(), o.id)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.ObservePhase(state.String(), time.Since(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	logger.DebugCtx(ctx, "phase complete", logger.KeyDurationMs, logger.Duration(start))
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, to State) error {
	o.mu.Lock()
	from := o.state
	if !CanTransition(from, to) {
		o.mu.Unlock()
		if from == StateDisposed {
			return ErrDisposed
		}
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	o.state = to
	o.mu.Unlock()

	o.notify(from, to)
	logger.DebugCtx(ctx, "state changed", logger.KeyFrom, from.String(), logger.KeyTo, to.String())
	return nil
}

func (o *Orchestrator) notify(from, to State) {
	o.metrics.SetState(to.String())
	if o.settings.OnStateChange != nil {
		o.settings.OnStateChange(from, to)
	}
}

// setupEnvironment extracts both bundles concurrently. The settings files
// are written as soon as the application tree is in place.
func (o *Orchestrator) setupEnvironment(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.extract(gctx, "runtime", o.settings.RuntimeBundle, o.layout.Runtime())
	})
	g.Go(func() error {
		if err := o.extract(gctx, "app", o.settings.AppBundle, o.layout.App()); err != nil {
			return err
		}
		return o.writeConfig(gctx)
	})
	return g.Wait()
}

func (o *Orchestrator) extract(ctx context.Context, name string, src bundle.Source, target string) error {
	ctx, span := telemetry.StartBundleSpan(ctx, src.String(), target)
	defer span.End()

	start := time.Now()
	st, err := bundle.Extract(ctx, src, target, bundle.Options{ChunkSize: o.settings.ChunkSize})
	o.metrics.AddExtractedBytes(name, st.Bytes)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("extract %s bundle: %w", name, err)
	}
	telemetry.SetAttributes(ctx, telemetry.Entries(st.Entries), telemetry.Bytes(st.Bytes))
	logger.InfoCtx(ctx, "bundle extracted",
		logger.KeyBundle, name,
		logger.KeyEntries, st.Entries,
		logger.KeyBytes, st.Bytes,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

func (o *Orchestrator) writeConfig(ctx context.Context) error {
	for _, dir := range []string{o.layout.Config(), o.layout.Data(), o.layout.Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	if err := WriteSettings(o.layout.SettingsFile(), o.serverSettings()); err != nil {
		return err
	}
	if err := AppendLoggingDirectives(o.layout.LoggingFile(), o.settings.LogLevels); err != nil {
		return err
	}
	logger.DebugCtx(ctx, "server configuration written", logger.KeyPath, o.layout.Config())
	return nil
}

func (o *Orchestrator) startProcess(ctx context.Context, flags []string) error {
	srv := o.newProcess("server")
	o.mu.Lock()
	o.server = srv
	o.mu.Unlock()

	spec := serverSpec(o.layout, withHeap(flags, o.settings.HeapSize), o.output)
	telemetry.SetAttributes(ctx, telemetry.Executable(spec.Executable()))
	if err := srv.Start(ctx, spec); err != nil {
		return err
	}

	pid := srv.Pid()
	telemetry.SetAttributes(ctx, telemetry.PID(pid))
	logger.InfoCtx(ctx, "server process started", logger.KeyPID, pid)
	return nil
}

func (o *Orchestrator) restartProcess(ctx context.Context) error {
	srv := o.currentServer()
	if err := srv.Restart(ctx); err != nil {
		return err
	}
	o.metrics.RecordRestart()
	logger.InfoCtx(ctx, "server process restarted", logger.KeyPID, srv.Pid())
	return nil
}

// waitForReady polls the health endpoint. If the server exits meanwhile the
// wait stops early with a *ServerExitError.
func (o *Orchestrator) waitForReady(ctx context.Context) error {
	srv := o.currentServer()
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exited := make(chan supervisor.ExitStatus, 1)
	go func() {
		if st, err := srv.Wait(wctx); err == nil {
			exited <- st
			cancel()
		}
	}()

	err := o.probe(wctx, o.BaseURL()+HealthPath)
	select {
	case st := <-exited:
		return &ServerExitError{Code: st.Code}
	default:
	}
	return err
}

func (o *Orchestrator) readinessProbe(ctx context.Context, url string) error {
	p := readiness.New(url)
	p.Interval = o.settings.PollInterval
	p.Timeout = o.settings.ReadyTimeout
	return p.Wait(ctx)
}

func (o *Orchestrator) currentServer() process {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.server
}

func (o *Orchestrator) logOutput(stream supervisor.Stream, line string) {
	logger.Debug(line, logger.KeyInstance, o.id, logger.KeyStream, string(stream))
}

// Dispose cancels a running pipeline, kills the server and deletes the
// working directory. It never fails; problems are logged. Later calls do
// nothing.
func (o *Orchestrator) Dispose() {
	o.disposeOnce.Do(func() {
		o.mu.Lock()
		from := o.state
		o.state = StateDisposed
		cancel := o.cancel
		started := o.started
		o.mu.Unlock()
		o.notify(from, StateDisposed)

		if cancel != nil {
			cancel()
		}
		if started {
			<-o.done
		}

		if srv := o.currentServer(); srv != nil {
			srv.Dispose()
		}
		if err := os.RemoveAll(o.layout.Root); err != nil {
			logger.Warn("failed to remove work dir", logger.KeyInstance, o.id, logger.KeyPath, o.layout.Root, logger.Err(err))
		}
		logger.Info("instance disposed", logger.KeyInstance, o.id, logger.KeyFrom, from.String())
	})
}

// Close disposes the instance. It always returns nil.
func (o *Orchestrator) Close() error {
	o.Dispose()
	return nil
}

// Status is a point-in-time view of an instance.
type Status struct {
	ID            string    `json:"id"`
	State         State     `json:"state"`
	BaseURL       string    `json:"base_url"`
	Port          int       `json:"port"`
	TransportPort int       `json:"transport_port"`
	ClusterName   string    `json:"cluster_name"`
	NodeName      string    `json:"node_name"`
	WorkDir       string    `json:"work_dir"`
	PID           int       `json:"pid,omitempty"`
	Plugins       []Plugin  `json:"plugins"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	ReadyAt       time.Time `json:"ready_at,omitzero"`
	Error         string    `json:"error,omitempty"`
}

// Status snapshots the instance.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		ID:            o.id,
		State:         o.state,
		BaseURL:       o.BaseURL(),
		Port:          o.settings.Port,
		TransportPort: o.settings.TransportPort,
		ClusterName:   o.settings.ClusterName,
		NodeName:      o.settings.NodeName,
		WorkDir:       o.layout.Root,
		Plugins:       slices.Clone(o.settings.Plugins),
		StartedAt:     o.startedAt,
		ReadyAt:       o.readyAt,
	}
	o.mu.Unlock()

	if st.State != StateDisposed {
		st.PID = o.Pid()
	}
	if err := o.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}
