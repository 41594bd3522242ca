package supervisor

import (
	"os"
	"slices"
	"strings"
)

// Stream names the child output a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineSink receives child output one line at a time, without the trailing
// newline. It is called from two goroutines, one per stream.
type LineSink func(stream Stream, line string)

// LaunchSpec describes how to start a process. It is built once by
// NewLaunchSpec and never changes afterwards, so Restart relaunches exactly
// what Start launched.
type LaunchSpec struct {
	executable string
	dir        string
	args       []string
	env        []string
	output     LineSink
}

// SpecOption customises NewLaunchSpec.
type SpecOption func(*specBuilder)

type specBuilder struct {
	base      []string
	overrides []func(env map[string]string)
	output    LineSink
}

// WithEnvOverride registers a hook that may add, replace or delete
// variables before launch. Hooks run in registration order.
func WithEnvOverride(fn func(env map[string]string)) SpecOption {
	return func(b *specBuilder) {
		if fn != nil {
			b.overrides = append(b.overrides, fn)
		}
	}
}

// WithEnv sets a single variable.
func WithEnv(key, value string) SpecOption {
	return WithEnvOverride(func(env map[string]string) { env[key] = value })
}

// WithBaseEnv replaces the host environment snapshot used as the starting
// point. A nil slice starts from an empty environment.
func WithBaseEnv(env []string) SpecOption {
	return func(b *specBuilder) { b.base = slices.Clone(env) }
}

// WithOutput sets the sink for stdout and stderr lines.
func WithOutput(sink LineSink) SpecOption {
	return func(b *specBuilder) { b.output = sink }
}

// NewLaunchSpec snapshots the host environment, applies the override hooks
// and freezes the result.
func NewLaunchSpec(executable, dir string, args []string, opts ...SpecOption) LaunchSpec {
	b := &specBuilder{base: os.Environ()}
	for _, opt := range opts {
		opt(b)
	}

	env := make(map[string]string, len(b.base))
	for _, kv := range b.base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	for _, fn := range b.overrides {
		fn(env)
	}

	frozen := make([]string, 0, len(env))
	for k, v := range env {
		frozen = append(frozen, k+"="+v)
	}
	slices.Sort(frozen)

	return LaunchSpec{
		executable: executable,
		dir:        dir,
		args:       slices.Clone(args),
		env:        frozen,
		output:     b.output,
	}
}

func (s LaunchSpec) Executable() string { return s.executable }

func (s LaunchSpec) Dir() string { return s.dir }

// Args returns a copy of the arguments, excluding the executable.
func (s LaunchSpec) Args() []string { return slices.Clone(s.args) }

// Output returns the line sink, nil when output is discarded.
func (s LaunchSpec) Output() LineSink { return s.output }

// Env returns a copy of the frozen environment as sorted KEY=value pairs.
func (s LaunchSpec) Env() []string { return slices.Clone(s.env) }

// Getenv looks up a variable in the frozen environment.
func (s LaunchSpec) Getenv(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range s.env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// CommandLine renders the executable and arguments for logs.
func (s LaunchSpec) CommandLine() string {
	return strings.Join(append([]string{s.executable}, s.args...), " ")
}
