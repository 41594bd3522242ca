package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrInstance      = "esembed.instance"
	AttrPhase         = "esembed.phase"
	AttrWorkDir       = "esembed.work_dir"
	AttrBundle        = "esembed.bundle"
	AttrBundleTarget  = "esembed.bundle.target"
	AttrBundleCodec   = "esembed.bundle.codec"
	AttrEntries       = "esembed.bundle.entries"
	AttrBytes         = "esembed.bundle.bytes"
	AttrPlugin        = "esembed.plugin"
	AttrPluginIndex   = "esembed.plugin.index"
	AttrPort          = "server.port"
	AttrTransportPort = "esembed.transport_port"
	AttrPID           = "process.pid"
	AttrExecutable    = "process.executable.path"
	AttrExitCode      = "process.exit.code"
	AttrURL           = "url.full"
	AttrAttempts      = "esembed.readiness.attempts"
)

func Instance(id string) attribute.KeyValue { return attribute.String(AttrInstance, id) }

func Phase(p string) attribute.KeyValue { return attribute.String(AttrPhase, p) }

func WorkDir(p string) attribute.KeyValue { return attribute.String(AttrWorkDir, p) }

func Bundle(src string) attribute.KeyValue { return attribute.String(AttrBundle, src) }

func BundleTarget(p string) attribute.KeyValue { return attribute.String(AttrBundleTarget, p) }

func Entries(n int) attribute.KeyValue { return attribute.Int(AttrEntries, n) }

func Bytes(n int64) attribute.KeyValue { return attribute.Int64(AttrBytes, n) }

func Plugin(ref string) attribute.KeyValue { return attribute.String(AttrPlugin, ref) }

func PluginIndex(i int) attribute.KeyValue { return attribute.Int(AttrPluginIndex, i) }

func Port(p int) attribute.KeyValue { return attribute.Int(AttrPort, p) }

func TransportPort(p int) attribute.KeyValue { return attribute.Int(AttrTransportPort, p) }

func PID(pid int) attribute.KeyValue { return attribute.Int(AttrPID, pid) }

func Executable(p string) attribute.KeyValue { return attribute.String(AttrExecutable, p) }

func ExitCode(c int) attribute.KeyValue { return attribute.Int(AttrExitCode, c) }

func URL(u string) attribute.KeyValue { return attribute.String(AttrURL, u) }

// StartPhaseSpan starts a span named "esembed.<phase>" for one lifecycle
// phase of an instance.
func StartPhaseSpan(ctx context.Context, phase, instance string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all, Phase(phase), Instance(instance))
	all = append(all, attrs...)
	return StartSpan(ctx, "esembed."+phase, trace.WithAttributes(all...))
}

// StartBundleSpan starts a span for extracting one bundle.
func StartBundleSpan(ctx context.Context, src, target string) (context.Context, trace.Span) {
	return StartSpan(ctx, "esembed.extract_bundle", trace.WithAttributes(Bundle(src), BundleTarget(target)))
}

// StartPluginSpan starts a span for installing one plugin.
func StartPluginSpan(ctx context.Context, ref string, index int) (context.Context, trace.Span) {
	return StartSpan(ctx, "esembed.install_plugin", trace.WithAttributes(Plugin(ref), PluginIndex(index)))
}
