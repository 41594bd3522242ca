package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/internal/telemetry"
	"github.com/marmos91/esembed/pkg/config"
	"github.com/marmos91/esembed/pkg/metrics"
	"github.com/marmos91/esembed/pkg/metrics/prometheus"
	"github.com/marmos91/esembed/pkg/orchestrator"
	"github.com/marmos91/esembed/pkg/statusapi"
	"github.com/marmos91/esembed/pkg/supervisor"
)

var (
	runRuntime      string
	runApp          string
	runPort         int
	runHeap         string
	runPlugins      []string
	runServerOutput bool
	runNoStatus     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, start and supervise a search server",
	Long: `Extract the runtime and application bundles, start the server, wait until
the cluster reports yellow health and install the configured plugins. The
base URL is printed on stdout once the server is ready.

The process then serves the status API and blocks until SIGINT or SIGTERM,
after which the server is stopped and its work directory removed.

Examples:
  # Run with the default config file
  esembed run

  # Run from explicit bundles with two plugins
  esembed run --runtime bundles/jdk.lz4 --app bundles/es.lz4 \
    --plugin analysis-icu --plugin analysis-kuromoji

  # Override config through the environment
  ESEMBED_SERVER_HEAP_SIZE=1g esembed run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRuntime, "runtime", "", "runtime bundle (path or s3://bucket/key)")
	runCmd.Flags().StringVar(&runApp, "app", "", "application bundle (path or s3://bucket/key)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "HTTP port (default: random free port)")
	runCmd.Flags().StringVar(&runHeap, "heap-size", "", "JVM heap size, e.g. 512m")
	runCmd.Flags().StringArrayVar(&runPlugins, "plugin", nil, "plugin to install, name or name=url (repeatable)")
	runCmd.Flags().BoolVar(&runServerOutput, "server-output", false, "copy server output to stderr")
	runCmd.Flags().BoolVar(&runNoStatus, "no-status", false, "do not serve the status API")
}

// runFlagOverrides applies the run flags on top of the loaded configuration.
func runFlagOverrides(c *config.Config) {
	if runRuntime != "" {
		c.Bundles.Runtime = runRuntime
	}
	if runApp != "" {
		c.Bundles.App = runApp
	}
	if runPort != 0 {
		c.Server.Port = runPort
	}
	if runHeap != "" {
		c.Server.HeapSize = runHeap
	}
	for _, p := range runPlugins {
		c.Server.Plugins = append(c.Server.Plugins, parsePluginFlag(p))
	}
	if runNoStatus {
		c.Status.Enabled = false
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// parsePluginFlag splits "name=url"; a bare value is a plugin name.
func parsePluginFlag(v string) config.PluginConfig {
	name, url, ok := strings.Cut(v, "=")
	if !ok {
		return config.PluginConfig{Name: v}
	}
	return config.PluginConfig{Name: name, URL: url}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, runFlagOverrides)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingShutdown, err := telemetry.Init(ctx, cfg.Telemetry.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by now; flush with a fresh deadline.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(cfgFile),
		"level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled")
	}

	opts, err := cfg.ToOptions(ctx)
	if err != nil {
		return err
	}
	opts = append(opts, orchestrator.WithMetrics(prometheus.NewOrchestratorMetrics()))
	if runServerOutput {
		opts = append(opts, orchestrator.WithOutput(stderrSink))
	}

	inst, err := orchestrator.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer disposeWithin(inst, cfg.ShutdownTimeout)

	apiDone := make(chan error, 1)
	if cfg.Status.Enabled {
		srv := statusapi.NewServer(statusapi.Config{
			Port:         cfg.Status.Port,
			ReadTimeout:  cfg.Status.ReadTimeout,
			WriteTimeout: cfg.Status.WriteTimeout,
		}, inst, cfg.Server.Version)
		go func() { apiDone <- srv.Start(ctx) }()
	}

	if err := inst.Ready(ctx); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), inst.BaseURL())
	logger.Info("server is running, press Ctrl+C to stop", logger.KeyURL, inst.BaseURL())

	serverDone := make(chan error, 1)
	go func() { serverDone <- serverExit(ctx, inst) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiDone:
		if err != nil {
			return err
		}
	case err := <-serverDone:
		if err != nil {
			return err
		}
		logger.Info("shutdown signal received")
	}
	return nil
}

type serverWaiter interface {
	Wait(ctx context.Context) (supervisor.ExitStatus, error)
}

// serverExit blocks until the server process ends and reports that as an
// error. It returns nil once ctx ends.
func serverExit(ctx context.Context, w serverWaiter) error {
	st, err := w.Wait(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	if st.Err != nil {
		return fmt.Errorf("server wait failed: %w", st.Err)
	}
	return fmt.Errorf("server exited unexpectedly with code %d", st.Code)
}

// disposeWithin disposes inst, giving up waiting after timeout so a wedged
// child cannot block exit forever.
func disposeWithin(inst *orchestrator.Orchestrator, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		inst.Dispose()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("shutdown timed out", logger.KeyTimeout, timeout.String(), logger.KeyPath, inst.WorkDir())
	}
}

func stderrSink(stream supervisor.Stream, line string) {
	_, _ = fmt.Fprintf(os.Stderr, "[%s] %s\n", stream, line)
}
