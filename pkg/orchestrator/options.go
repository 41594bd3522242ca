package orchestrator

import (
	"maps"
	"slices"
	"time"

	"github.com/marmos91/esembed/pkg/bundle"
	"github.com/marmos91/esembed/pkg/readiness"
	"github.com/marmos91/esembed/pkg/supervisor"
)

// Plugin is a server plugin installed before the instance reports ready.
type Plugin struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

// Ref is the installer argument: URL when set, the bare name otherwise.
func (p Plugin) Ref() string {
	if p.URL != "" {
		return p.URL
	}
	return p.Name
}

// Settings is the resolved configuration of one instance. New fills in
// derived defaults before options run, so options may override any field.
type Settings struct {
	RuntimeBundle bundle.Source
	AppBundle     bundle.Source

	WorkRoot      string
	Host          string
	Port          int
	TransportPort int
	ClusterName   string
	NodeName      string

	HeapSize string
	Flags    []string

	// Values are extra elasticsearch.yml entries, merged over the defaults.
	Values map[string]string

	// LogLevels maps logger names (or RootLogger) to levels.
	LogLevels map[string]string

	Plugins []Plugin

	ReadyTimeout time.Duration
	PollInterval time.Duration
	StopGrace    time.Duration
	ChunkSize    int

	// Output receives server and installer output lines. Defaults to the
	// logger at debug level.
	Output supervisor.LineSink

	Metrics Metrics

	// OnStateChange is called synchronously after every transition.
	OnStateChange func(from, to State)
}

func (s Settings) clone() Settings {
	c := s
	c.Flags = slices.Clone(s.Flags)
	c.Plugins = slices.Clone(s.Plugins)
	c.Values = maps.Clone(s.Values)
	c.LogLevels = maps.Clone(s.LogLevels)
	return c
}

func defaultSettings(port, transport int) Settings {
	return Settings{
		WorkRoot:      DefaultWorkRoot(),
		Host:          "127.0.0.1",
		Port:          port,
		TransportPort: transport,
		ClusterName:   ClusterNameFor(port),
		NodeName:      NodeNameFor(port),
		Flags:         DefaultFlags(),
		Values:        map[string]string{},
		LogLevels:     map[string]string{},
		ReadyTimeout:  readiness.DefaultTimeout,
		PollInterval:  readiness.DefaultInterval,
		StopGrace:     supervisor.DefaultGracePeriod,
	}
}

// Option customises an instance at construction.
type Option func(*Settings)

// Configure exposes the whole Settings value to fn.
func Configure(fn func(*Settings)) Option {
	return func(s *Settings) {
		if fn != nil {
			fn(s)
		}
	}
}

func WithRuntimeBundle(src bundle.Source) Option {
	return func(s *Settings) { s.RuntimeBundle = src }
}

func WithAppBundle(src bundle.Source) Option {
	return func(s *Settings) { s.AppBundle = src }
}

func WithWorkRoot(dir string) Option {
	return func(s *Settings) { s.WorkRoot = dir }
}

func WithPort(port int) Option {
	return func(s *Settings) { s.Port = port }
}

func WithTransportPort(port int) Option {
	return func(s *Settings) { s.TransportPort = port }
}

func WithClusterName(name string) Option {
	return func(s *Settings) { s.ClusterName = name }
}

func WithNodeName(name string) Option {
	return func(s *Settings) { s.NodeName = name }
}

// WithHeapSize replaces the -Xms/-Xmx flags, e.g. "1g".
func WithHeapSize(size string) Option {
	return func(s *Settings) { s.HeapSize = size }
}

// WithFlags replaces the default JVM flags.
func WithFlags(flags ...string) Option {
	return func(s *Settings) { s.Flags = slices.Clone(flags) }
}

// WithExtraFlags appends JVM flags to the defaults.
func WithExtraFlags(flags ...string) Option {
	return func(s *Settings) { s.Flags = append(s.Flags, flags...) }
}

// WithSetting adds one elasticsearch.yml entry.
func WithSetting(key, value string) Option {
	return func(s *Settings) {
		if s.Values == nil {
			s.Values = map[string]string{}
		}
		s.Values[key] = value
	}
}

// WithLogLevel sets the level of one logger, or of the root logger when
// name is RootLogger.
func WithLogLevel(name, level string) Option {
	return func(s *Settings) {
		if s.LogLevels == nil {
			s.LogLevels = map[string]string{}
		}
		s.LogLevels[name] = level
	}
}

func WithPlugins(plugins ...Plugin) Option {
	return func(s *Settings) { s.Plugins = append(s.Plugins, plugins...) }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(s *Settings) { s.ReadyTimeout = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Settings) { s.PollInterval = d }
}

func WithStopGrace(d time.Duration) Option {
	return func(s *Settings) { s.StopGrace = d }
}

func WithChunkSize(n int) Option {
	return func(s *Settings) { s.ChunkSize = n }
}

func WithOutput(sink supervisor.LineSink) Option {
	return func(s *Settings) { s.Output = sink }
}

func WithMetrics(m Metrics) Option {
	return func(s *Settings) { s.Metrics = m }
}

func WithStateObserver(fn func(from, to State)) Option {
	return func(s *Settings) { s.OnStateChange = fn }
}
