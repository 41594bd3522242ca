package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/esembed/internal/bytesize"
)

// Config is the esembed CLI configuration.
//
// Sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (ESEMBED_*)
//  3. Configuration file (YAML)
//  4. Defaults
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics enables Prometheus metrics, served by the status API
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Status configures the HTTP status API
	Status StatusConfig `mapstructure:"status" yaml:"status"`

	// ShutdownTimeout bounds teardown after SIGINT/SIGTERM
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server describes the supervised search server instance
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Bundles locates the runtime and application archives
	Bundles BundlesConfig `mapstructure:"bundles" yaml:"bundles"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether traces are exported
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes lists the profiles to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig enables Prometheus metrics collection.
// When Enabled is false nothing is collected and /metrics returns 404.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// StatusConfig configures the HTTP status API served by "esembed run".
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the listen port
	// Default: 9600
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ServerConfig describes the supervised instance. Zero values mean "derive
// at startup": ports are picked at random and names follow the HTTP port.
type ServerConfig struct {
	// Version labels the bundled distribution in status output
	Version string `mapstructure:"version" yaml:"version,omitempty"`

	// WorkRoot is the parent of per-instance working directories
	// Default: $TMPDIR/esembed
	WorkRoot string `mapstructure:"work_root" yaml:"work_root,omitempty"`

	Host          string `mapstructure:"host" validate:"omitempty,ip|hostname" yaml:"host,omitempty"`
	Port          int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	TransportPort int    `mapstructure:"transport_port" validate:"omitempty,min=1,max=65535,nefield=Port" yaml:"transport_port,omitempty"`
	ClusterName   string `mapstructure:"cluster_name" yaml:"cluster_name,omitempty"`
	NodeName      string `mapstructure:"node_name" yaml:"node_name,omitempty"`

	// HeapSize sets -Xms and -Xmx, e.g. "512m" or "2g"
	HeapSize string `mapstructure:"heap_size" validate:"omitempty,heapsize" yaml:"heap_size,omitempty"`

	// Flags replaces the bundled JVM flags when set
	Flags []string `mapstructure:"flags" yaml:"flags,omitempty"`

	// ExtraFlags are appended to the JVM flags
	ExtraFlags []string `mapstructure:"extra_flags" yaml:"extra_flags,omitempty"`

	// Settings are extra elasticsearch.yml entries
	Settings map[string]string `mapstructure:"settings" yaml:"settings,omitempty"`

	// LogLevels maps server logger names ("root" for the root logger) to levels
	LogLevels map[string]string `mapstructure:"log_levels" validate:"dive,oneof=trace debug info warn error fatal off TRACE DEBUG INFO WARN ERROR FATAL OFF" yaml:"log_levels,omitempty"`

	// Plugins are installed in order before the instance reports ready
	Plugins []PluginConfig `mapstructure:"plugins" validate:"dive" yaml:"plugins,omitempty"`

	// ChunkSize is the extraction copy chunk
	// Default: 64KiB
	ChunkSize bytesize.ByteSize `jsonschema:"type=string" mapstructure:"chunk_size" yaml:"chunk_size"`

	// ReadyTimeout bounds each readiness wait
	// Default: 30s
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" validate:"gt=0" yaml:"ready_timeout"`

	// PollInterval is the delay between readiness attempts
	// Default: 100ms
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`

	// StopGrace is the wait between SIGTERM and SIGKILL
	// Default: 10s
	StopGrace time.Duration `mapstructure:"stop_grace" validate:"gt=0" yaml:"stop_grace"`
}

// PluginConfig names one plugin to install.
type PluginConfig struct {
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// URL overrides the install location; the name is used otherwise
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url,omitempty"`
}

// BundlesConfig locates the two bundles. Locations are file paths or
// s3://bucket/key URIs.
type BundlesConfig struct {
	Runtime string   `mapstructure:"runtime" validate:"required" yaml:"runtime"`
	App     string   `mapstructure:"app" validate:"required" yaml:"app"`
	S3      S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config overrides the default AWS chain for s3:// bundles.
type S3Config struct {
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Load reads configuration from file, environment and defaults, then
// validates it.
//
// A missing config file is not an error: defaults plus environment are used.
// overrides run after decoding and before defaults and validation; the CLI
// uses them for flags.
func Load(configPath string, overrides ...func(*Config)) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, fn := range overrides {
		fn(&cfg)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// May hold S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// keyDelimiter replaces viper's "." so that server settings keys such as
// "action.auto_create_index" stay flat map keys.
const keyDelimiter = "::"

// envKeys are bound explicitly so environment variables apply even when
// the key is absent from the config file.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"telemetry.enabled", "telemetry.endpoint", "telemetry.insecure", "telemetry.sample_rate",
	"telemetry.profiling.enabled", "telemetry.profiling.endpoint",
	"metrics.enabled",
	"status.enabled", "status.port",
	"shutdown_timeout",
	"server.version", "server.work_root", "server.host", "server.port", "server.transport_port",
	"server.cluster_name", "server.node_name", "server.heap_size", "server.chunk_size",
	"server.ready_timeout", "server.poll_interval", "server.stop_grace",
	"bundles.runtime", "bundles.app",
	"bundles.s3.region", "bundles.s3.endpoint", "bundles.s3.access_key_id", "bundles.s3.secret_access_key",
}

// setupViper configures environment variables and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// ESEMBED_SERVER_HEAP_SIZE=2g sets server.heap_size
	v.SetEnvPrefix("ESEMBED")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(strings.ReplaceAll(k, ".", keyDelimiter))
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reports whether a config file was read. Absence is fine.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks handles ByteSize, time.Duration and comma-separated
// lists from environment variables.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts "64KiB", "1Gi" or plain numbers to ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts "30s", "5m" or raw nanoseconds to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/esembed, ~/.config/esembed, or "."
// when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "esembed")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "esembed")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
