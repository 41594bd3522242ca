package orchestrator

import (
	"path/filepath"

	"github.com/marmos91/esembed/pkg/supervisor"
)

// MainClass is the server bootstrap entry point.
const MainClass = "org.elasticsearch.bootstrap.Elasticsearch"

// serverArgs builds the JVM command line after the executable.
func serverArgs(l Layout, flags []string) []string {
	args := make([]string, 0, len(flags)+5)
	args = append(args, flags...)
	return append(args,
		"-Des.path.home="+l.App(),
		"-Des.path.conf="+l.Config(),
		"-cp", filepath.Join(l.Lib(), "*"),
		MainClass,
	)
}

// runtimeEnv points the child at the bundled runtime instead of any JVM
// installed on the host.
func runtimeEnv(l Layout) supervisor.SpecOption {
	return supervisor.WithEnvOverride(func(env map[string]string) {
		env["JAVA_HOME"] = l.Runtime()
		env["ES_JAVA_HOME"] = l.Runtime()
		env["ES_PATH_CONF"] = l.Config()
		delete(env, "ES_JAVA_OPTS")
	})
}

func serverSpec(l Layout, flags []string, out supervisor.LineSink) supervisor.LaunchSpec {
	return supervisor.NewLaunchSpec(l.Java(), l.App(), serverArgs(l, flags),
		runtimeEnv(l),
		supervisor.WithOutput(out))
}

func pluginSpec(l Layout, p Plugin, out supervisor.LineSink) supervisor.LaunchSpec {
	return supervisor.NewLaunchSpec(l.PluginTool(), l.App(),
		[]string{"install", "--batch", p.Ref()},
		runtimeEnv(l),
		supervisor.WithOutput(out))
}
