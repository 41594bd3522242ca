package logger

import (
	"log/slog"
	"time"
)

// Field keys shared by every package so log lines can be queried uniformly.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Instance lifecycle
	KeyInstance = "instance"
	KeyPhase    = "phase"
	KeyState    = "state"
	KeyFrom     = "from"
	KeyTo       = "to"
	KeyPID      = "pid"
	KeyExitCode = "exit_code"
	KeySignal   = "signal"
	KeyStream   = "stream"
	KeyLine     = "line"
	KeyCommand  = "command"
	KeyArgs     = "args"

	// Resources
	KeyBundle  = "bundle"
	KeyPath    = "path"
	KeyTarget  = "target"
	KeyEntries = "entries"
	KeyBytes   = "bytes"
	KeySize    = "size"
	KeyCodec   = "codec"

	// Network
	KeyPort          = "port"
	KeyTransportPort = "transport_port"
	KeyURL           = "url"
	KeyStatus        = "status"

	// Plugins
	KeyPlugin = "plugin"

	// Timing and errors
	KeyAttempt    = "attempt"
	KeyDurationMs = "duration_ms"
	KeyTimeout    = "timeout"
	KeyError      = "error"
)

// Instance returns the instance id attribute.
func Instance(id string) slog.Attr { return slog.String(KeyInstance, id) }

// Phase returns the lifecycle phase attribute.
func Phase(p string) slog.Attr { return slog.String(KeyPhase, p) }

// PID returns the process id attribute.
func PID(pid int) slog.Attr { return slog.Int(KeyPID, pid) }

// Path returns a filesystem path attribute.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Port returns an HTTP port attribute.
func Port(p int) slog.Attr { return slog.Int(KeyPort, p) }

// Plugin returns a plugin reference attribute.
func Plugin(ref string) slog.Attr { return slog.String(KeyPlugin, ref) }

// Bytes returns a byte count attribute.
func Bytes(n int64) slog.Attr { return slog.Int64(KeyBytes, n) }

// Attempt returns a retry counter attribute.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DurationMs returns an elapsed-time attribute in milliseconds.
func DurationMs(start time.Time) slog.Attr { return slog.Float64(KeyDurationMs, Duration(start)) }

// Err returns an error attribute. A nil error produces an empty attr which
// handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
