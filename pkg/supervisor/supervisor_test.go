package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use /bin/sh scripts")
	}
}

func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

type lines struct {
	mu  sync.Mutex
	out map[Stream][]string
}

func newLines() *lines { return &lines{out: map[Stream][]string{}} }

func (l *lines) sink(stream Stream, line string) {
	l.mu.Lock()
	l.out[stream] = append(l.out[stream], line)
	l.mu.Unlock()
}

func (l *lines) get(stream Stream) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out[stream]...)
}

func TestLaunchSpec(t *testing.T) {
	t.Run("EnvOverrideAppliedAtConstruction", func(t *testing.T) {
		spec := NewLaunchSpec("/bin/true", "/tmp", []string{"a"},
			WithBaseEnv([]string{"JAVA_HOME=/usr/lib/jvm", "PATH=/bin", "FOO=bar", "=broken"}),
			WithEnvOverride(func(env map[string]string) {
				env["JAVA_HOME"] = "/work/runtime"
				delete(env, "FOO")
			}),
			WithEnv("ES_JAVA_HOME", "/work/runtime"),
		)

		assert.Equal(t, []string{"ES_JAVA_HOME=/work/runtime", "JAVA_HOME=/work/runtime", "PATH=/bin"}, spec.Env())
		v, ok := spec.Getenv("JAVA_HOME")
		assert.True(t, ok)
		assert.Equal(t, "/work/runtime", v)
		_, ok = spec.Getenv("FOO")
		assert.False(t, ok)
	})

	t.Run("Immutable", func(t *testing.T) {
		args := []string{"-Xms1g", "-Xmx1g"}
		spec := NewLaunchSpec("/bin/java", "/app", args, WithBaseEnv(nil))
		args[0] = "mutated"
		got := spec.Args()
		got[1] = "mutated"

		assert.Equal(t, []string{"-Xms1g", "-Xmx1g"}, spec.Args())
		assert.Equal(t, "/bin/java -Xms1g -Xmx1g", spec.CommandLine())
		assert.Equal(t, "/app", spec.Dir())
	})
}

func TestStartLaunchErrors(t *testing.T) {
	t.Run("MissingExecutable", func(t *testing.T) {
		s := New()
		err := s.Start(context.Background(), NewLaunchSpec(filepath.Join(t.TempDir(), "nope"), "", nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLaunchFailed)
		assert.ErrorIs(t, err, os.ErrNotExist)

		var le *LaunchError
		require.True(t, errors.As(err, &le))
		assert.Contains(t, le.Executable, "nope")
	})

	t.Run("DirectoryIsNotExecutable", func(t *testing.T) {
		err := New().Start(context.Background(), NewLaunchSpec(t.TempDir(), "", nil))
		assert.ErrorIs(t, err, ErrLaunchFailed)
	})

	t.Run("NotExecutable", func(t *testing.T) {
		skipOnWindows(t)
		path := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
		err := New().Start(context.Background(), NewLaunchSpec(path, "", nil))
		assert.ErrorIs(t, err, ErrLaunchFailed)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := New().Start(ctx, NewLaunchSpec("/bin/sh", "", nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOutputCapture(t *testing.T) {
	skipOnWindows(t)

	// Enough output on both streams to fill OS pipe buffers several times.
	exe := script(t, `i=0
while [ $i -lt 5000 ]; do
  echo "out line $i"
  echo "err line $i" 1>&2
  i=$((i+1))
done
exit 3`)

	l := newLines()
	s := New(WithName("chatty"))
	require.NoError(t, s.Start(context.Background(), NewLaunchSpec(exe, t.TempDir(), nil, WithOutput(l.sink))))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Code)
	assert.False(t, st.Success())

	out, errLines := l.get(Stdout), l.get(Stderr)
	require.Len(t, out, 5000)
	require.Len(t, errLines, 5000)
	assert.Equal(t, "out line 0", out[0])
	assert.Equal(t, "err line 4999", errLines[4999])
}

func TestWorkingDirectoryAndEnv(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	exe := script(t, `pwd; echo "$JAVA_HOME"`)
	l := newLines()

	st, err := New().Run(context.Background(), NewLaunchSpec(exe, dir, nil,
		WithOutput(l.sink),
		WithEnv("JAVA_HOME", "/bundled/runtime")))
	require.NoError(t, err)
	require.True(t, st.Success())

	out := l.get(Stdout)
	require.Len(t, out, 2)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir, resolved}, out[0])
	assert.Equal(t, "/bundled/runtime", out[1])
}

func TestAlreadyRunning(t *testing.T) {
	skipOnWindows(t)

	s := New()
	spec := NewLaunchSpec(script(t, "exec sleep 30"), "", nil)
	require.NoError(t, s.Start(context.Background(), spec))
	t.Cleanup(s.Dispose)

	assert.ErrorIs(t, s.Start(context.Background(), spec), ErrAlreadyRunning)
	assert.True(t, s.Running())
	assert.NotZero(t, s.Pid())
}

func TestStartAfterNaturalExit(t *testing.T) {
	skipOnWindows(t)

	s := New()
	spec := NewLaunchSpec(script(t, "exit 0"), "", nil)
	require.NoError(t, s.Start(context.Background(), spec))
	_, err := s.Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background(), spec))
	_, err = s.Wait(context.Background())
	require.NoError(t, err)
}

func TestStop(t *testing.T) {
	skipOnWindows(t)

	t.Run("Graceful", func(t *testing.T) {
		s := New(WithGracePeriod(5 * time.Second))
		require.NoError(t, s.Start(context.Background(), NewLaunchSpec(script(t, "exec sleep 30"), "", nil)))

		start := time.Now()
		require.NoError(t, s.Stop(context.Background()))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.False(t, s.Running())
	})

	t.Run("ForceKillAfterGrace", func(t *testing.T) {
		s := New(WithGracePeriod(300 * time.Millisecond))
		exe := script(t, `trap '' TERM
echo ready
while :; do sleep 0.1; done`)

		ready := make(chan struct{}, 1)
		spec := NewLaunchSpec(exe, "", nil, WithOutput(func(_ Stream, line string) {
			if line == "ready" {
				ready <- struct{}{}
			}
		}))
		require.NoError(t, s.Start(context.Background(), spec))
		<-ready

		start := time.Now()
		require.NoError(t, s.Stop(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
		assert.False(t, s.Running())
	})

	t.Run("NothingRunning", func(t *testing.T) {
		assert.NoError(t, New().Stop(context.Background()))
	})
}

func TestExitWithInheritedOutput(t *testing.T) {
	skipOnWindows(t)

	// The background sleep keeps both pipes open after the script exits.
	s := New()
	s.drainGrace = 200 * time.Millisecond
	out := newLines()
	exe := script(t, `sleep 20 &
echo bye
exit 3`)
	require.NoError(t, s.Start(context.Background(), NewLaunchSpec(exe, "", nil, WithOutput(out.sink))))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	st, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"bye"}, out.get(Stdout))
	assert.False(t, s.Running())

	t.Run("StopReturnsPromptly", func(t *testing.T) {
		s := New(WithGracePeriod(200 * time.Millisecond))
		s.drainGrace = 200 * time.Millisecond
		exe := script(t, `sleep 20 &
exec sleep 30`)
		require.NoError(t, s.Start(context.Background(), NewLaunchSpec(exe, "", nil)))

		start := time.Now()
		require.NoError(t, s.Stop(context.Background()))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.False(t, s.Running())
	})
}

func TestRestart(t *testing.T) {
	skipOnWindows(t)

	t.Run("RelaunchesSameSpec", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "starts")
		exe := script(t, `echo start >> "$MARKER"
exec sleep 30`)

		s := New(WithGracePeriod(2 * time.Second))
		t.Cleanup(s.Dispose)
		require.NoError(t, s.Start(context.Background(), NewLaunchSpec(exe, "", nil, WithEnv("MARKER", marker))))
		first := s.Pid()

		require.NoError(t, s.Restart(context.Background()))
		second := s.Pid()

		assert.NotEqual(t, first, second)
		assert.True(t, s.Running())
		assert.Eventually(t, func() bool {
			data, _ := os.ReadFile(marker)
			return strings.Count(string(data), "start") == 2
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("WithoutStart", func(t *testing.T) {
		assert.ErrorIs(t, New().Restart(context.Background()), ErrNotRunning)
	})

	t.Run("ConcurrentRestartsAreSerialised", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "starts")
		exe := script(t, `echo start >> "$MARKER"
exec sleep 30`)

		s := New(WithGracePeriod(2 * time.Second))
		t.Cleanup(s.Dispose)
		require.NoError(t, s.Start(context.Background(), NewLaunchSpec(exe, "", nil, WithEnv("MARKER", marker))))

		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Restart(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Zero(t, failures.Load())
		assert.True(t, s.Running())
		assert.Eventually(t, func() bool {
			data, _ := os.ReadFile(marker)
			return strings.Count(string(data), "start") == 5
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func TestRun(t *testing.T) {
	skipOnWindows(t)

	t.Run("ReturnsExitStatus", func(t *testing.T) {
		st, err := New().Run(context.Background(), NewLaunchSpec(script(t, "exit 7"), "", nil))
		require.NoError(t, err)
		assert.Equal(t, 7, st.Code)
	})

	t.Run("StopsOnContextEnd", func(t *testing.T) {
		s := New(WithGracePeriod(time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		_, err := s.Run(ctx, NewLaunchSpec(script(t, "exec sleep 30"), "", nil))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, s.Running())
	})
}

func TestWaitWithoutProcess(t *testing.T) {
	_, err := New().Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestDispose(t *testing.T) {
	skipOnWindows(t)

	s := New()
	require.NoError(t, s.Start(context.Background(), NewLaunchSpec(script(t, "exec sleep 30"), "", nil)))
	pid := s.Pid()
	require.NotZero(t, pid)

	s.Dispose()
	s.Dispose()

	assert.False(t, s.Running())
	assert.ErrorIs(t, s.Start(context.Background(), NewLaunchSpec("/bin/sh", "", nil)), ErrDisposed)
	assert.ErrorIs(t, s.Restart(context.Background()), ErrDisposed)
	assert.ErrorIs(t, s.Stop(context.Background()), ErrDisposed)
	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestDisposeIdle(t *testing.T) {
	assert.NotPanics(t, func() {
		s := New()
		s.Dispose()
		s.Dispose()
	})
}
