package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/internal/telemetry"
	"github.com/marmos91/esembed/pkg/supervisor"
)

// installerTailLines is how much installer output a PluginInstallError keeps.
const installerTailLines = 20

// installPlugin runs the plugin tool for p in its own short-lived process and
// waits for it to exit. The server keeps running; the caller restarts it.
func (o *Orchestrator) installPlugin(ctx context.Context, index int, p Plugin) error {
	ctx, span := telemetry.StartPluginSpan(ctx, p.Ref(), index)
	defer span.End()

	tail := newTail(installerTailLines, o.output)
	installer := o.newProcess("plugin-installer")
	defer installer.Dispose()

	logger.InfoCtx(ctx, "installing plugin", logger.KeyPlugin, p.Ref())
	start := time.Now()
	st, err := installer.Run(ctx, pluginSpec(o.layout, p, tail.sink))
	if err != nil {
		o.metrics.RecordPluginInstall(false)
		return &PluginInstallError{Plugin: p, ExitCode: -1, Output: tail.lines(), Err: err}
	}
	telemetry.SetAttributes(ctx, telemetry.ExitCode(st.Code))
	if !st.Success() {
		o.metrics.RecordPluginInstall(false)
		return &PluginInstallError{Plugin: p, ExitCode: st.Code, Output: tail.lines(), Err: st.Err}
	}

	o.metrics.RecordPluginInstall(true)
	logger.InfoCtx(ctx, "plugin installed",
		logger.KeyPlugin, p.Ref(),
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

// tail keeps the last n lines passed through it and forwards every line.
type tail struct {
	mu   sync.Mutex
	n    int
	buf  []string
	next supervisor.LineSink
}

func newTail(n int, next supervisor.LineSink) *tail {
	return &tail{n: n, next: next}
}

func (t *tail) sink(stream supervisor.Stream, line string) {
	t.mu.Lock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
	t.mu.Unlock()
	if t.next != nil {
		t.next(stream, line)
	}
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
