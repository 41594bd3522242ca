package config

import (
	"strings"
	"time"

	"github.com/marmos91/esembed/internal/bytesize"
	"github.com/marmos91/esembed/pkg/readiness"
	"github.com/marmos91/esembed/pkg/supervisor"
)

// DefaultStatusPort is where "esembed run" serves the status API.
const DefaultStatusPort = 9600

// ApplyDefaults fills zero-valued fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyStatusDefaults(&cfg.Status)
	applyServerDefaults(&cfg.Server)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyStatusDefaults(cfg *StatusConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultStatusPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

// applyServerDefaults leaves ports and names empty; they are derived per
// instance at startup.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 64 * bytesize.KiB
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = readiness.DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = readiness.DefaultInterval
	}
	if cfg.StopGrace == 0 {
		cfg.StopGrace = supervisor.DefaultGracePeriod
	}
}

// GetDefaultConfig returns a Config with every default applied and bundle
// locations pointing at ./bundles.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Status: StatusConfig{Enabled: true},
		Bundles: BundlesConfig{
			Runtime: "bundles/runtime.lz4",
			App:     "bundles/elasticsearch.lz4",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
