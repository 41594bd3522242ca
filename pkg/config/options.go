package config

import (
	"context"
	"fmt"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/internal/telemetry"
	"github.com/marmos91/esembed/pkg/bundle"
	"github.com/marmos91/esembed/pkg/orchestrator"
)

// S3Options converts the S3 section for pkg/bundle.
func (c S3Config) S3Options() bundle.S3Options {
	return bundle.S3Options{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// Sources resolves both bundle locations. s3:// locations build an S3
// client from the default AWS chain.
func (c BundlesConfig) Sources(ctx context.Context) (runtime, app bundle.Source, err error) {
	runtime, err = bundle.ParseSource(ctx, c.Runtime, c.S3.S3Options())
	if err != nil {
		return nil, nil, fmt.Errorf("runtime bundle: %w", err)
	}
	app, err = bundle.ParseSource(ctx, c.App, c.S3.S3Options())
	if err != nil {
		return nil, nil, fmt.Errorf("application bundle: %w", err)
	}
	return runtime, app, nil
}

// OrchestratorPlugins converts the plugin list.
func (c ServerConfig) OrchestratorPlugins() []orchestrator.Plugin {
	out := make([]orchestrator.Plugin, 0, len(c.Plugins))
	for _, p := range c.Plugins {
		out = append(out, orchestrator.Plugin{Name: p.Name, URL: p.URL})
	}
	return out
}

// ToOptions builds orchestrator options from the configuration. Fields left
// empty keep the orchestrator's per-instance defaults.
func (c *Config) ToOptions(ctx context.Context) ([]orchestrator.Option, error) {
	rt, app, err := c.Bundles.Sources(ctx)
	if err != nil {
		return nil, err
	}

	s := c.Server
	opts := []orchestrator.Option{
		orchestrator.WithRuntimeBundle(rt),
		orchestrator.WithAppBundle(app),
		orchestrator.WithChunkSize(s.ChunkSize.Int()),
		orchestrator.WithReadyTimeout(s.ReadyTimeout),
		orchestrator.WithPollInterval(s.PollInterval),
		orchestrator.WithStopGrace(s.StopGrace),
	}
	if s.WorkRoot != "" {
		opts = append(opts, orchestrator.WithWorkRoot(s.WorkRoot))
	}
	if s.Host != "" {
		host := s.Host
		opts = append(opts, orchestrator.Configure(func(st *orchestrator.Settings) { st.Host = host }))
	}
	if s.Port != 0 {
		opts = append(opts, orchestrator.WithPort(s.Port))
	}
	if s.TransportPort != 0 {
		opts = append(opts, orchestrator.WithTransportPort(s.TransportPort))
	}
	if s.ClusterName != "" {
		opts = append(opts, orchestrator.WithClusterName(s.ClusterName))
	}
	if s.NodeName != "" {
		opts = append(opts, orchestrator.WithNodeName(s.NodeName))
	}
	if s.HeapSize != "" {
		opts = append(opts, orchestrator.WithHeapSize(s.HeapSize))
	}
	if len(s.Flags) > 0 {
		opts = append(opts, orchestrator.WithFlags(s.Flags...))
	}
	if len(s.ExtraFlags) > 0 {
		opts = append(opts, orchestrator.WithExtraFlags(s.ExtraFlags...))
	}
	for k, v := range s.Settings {
		opts = append(opts, orchestrator.WithSetting(k, v))
	}
	for name, level := range s.LogLevels {
		opts = append(opts, orchestrator.WithLogLevel(name, level))
	}
	if len(s.Plugins) > 0 {
		opts = append(opts, orchestrator.WithPlugins(s.OrchestratorPlugins()...))
	}
	return opts, nil
}

// LoggerConfig converts the logging section.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// TracingConfig converts the telemetry section.
func (c TelemetryConfig) TracingConfig(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.Endpoint = c.Endpoint
	cfg.Insecure = c.Insecure
	cfg.SampleRate = c.SampleRate
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// ProfilingConfig converts the profiling section.
func (c TelemetryConfig) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Profiling.Enabled,
		ServiceName:    telemetry.DefaultConfig().ServiceName,
		ServiceVersion: version,
		Endpoint:       c.Profiling.Endpoint,
		ProfileTypes:   c.Profiling.ProfileTypes,
	}
}
