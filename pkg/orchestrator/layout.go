package orchestrator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// Layout names the paths inside an instance working directory.
type Layout struct {
	Root string
}

func (l Layout) Runtime() string { return filepath.Join(l.Root, "runtime") }

func (l Layout) App() string { return filepath.Join(l.Root, "app") }

func (l Layout) Config() string { return filepath.Join(l.App(), "config") }

func (l Layout) SettingsFile() string { return filepath.Join(l.Config(), "elasticsearch.yml") }

func (l Layout) LoggingFile() string { return filepath.Join(l.Config(), "log4j2.properties") }

func (l Layout) Lib() string { return filepath.Join(l.App(), "lib") }

func (l Layout) Data() string { return filepath.Join(l.Root, "data") }

func (l Layout) Logs() string { return filepath.Join(l.Root, "logs") }

// Java is the bundled JVM launcher.
func (l Layout) Java() string {
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	return filepath.Join(l.Runtime(), "bin", name)
}

// PluginTool is the application's plugin installer script.
func (l Layout) PluginTool() string {
	name := "elasticsearch-plugin"
	if runtime.GOOS == "windows" {
		name += ".bat"
	}
	return filepath.Join(l.App(), "bin", name)
}

// DefaultWorkRoot is the parent of instance directories when none is set.
func DefaultWorkRoot() string {
	return filepath.Join(os.TempDir(), "esembed")
}

const workDirAttempts = 8

// createWorkDir makes a fresh <root>/<uuid> directory. Mkdir fails on an
// existing path, so two instances can never share one.
func createWorkDir(root string) (id, dir string, err error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", "", fmt.Errorf("create work root: %w", err)
	}
	for i := 0; i < workDirAttempts; i++ {
		id = uuid.NewString()
		dir = filepath.Join(root, id)
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("create work dir: %w", err)
		}
	}
	return "", "", fmt.Errorf("create work dir: %d name collisions under %s", workDirAttempts, root)
}
