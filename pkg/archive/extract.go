package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/esembed/internal/logger"
)

// Stats summarises one extraction.
type Stats struct {
	Entries  int
	Dirs     int
	Bytes    int64
	Duration time.Duration
}

// ModeFunc chooses the permission bits for an extracted file.
type ModeFunc func(name string) fs.FileMode

// ExtractOption configures ExtractToDirectory.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	mode     ModeFunc
	progress func(Entry)
}

// WithModeFunc overrides DefaultMode.
func WithModeFunc(fn ModeFunc) ExtractOption {
	return func(c *extractConfig) {
		if fn != nil {
			c.mode = fn
		}
	}
}

// WithProgress registers a callback invoked after each entry is written.
func WithProgress(fn func(Entry)) ExtractOption {
	return func(c *extractConfig) { c.progress = fn }
}

// DefaultMode marks files under a bin/ directory, shell scripts and the JDK
// spawn helper executable. The format carries no permission bits, so
// launchers need this to be runnable after extraction.
func DefaultMode(name string) fs.FileMode {
	base := path.Base(name)
	if base == "jspawnhelper" || strings.HasSuffix(base, ".sh") {
		return 0o755
	}
	for _, seg := range strings.Split(path.Dir(name), "/") {
		if seg == "bin" {
			return 0o755
		}
	}
	return 0o644
}

// ExtractToDirectory writes every remaining entry beneath target, creating
// missing parent directories. The copy checks ctx between chunks; a
// cancelled copy leaves the partially written file in place.
func (r *Reader) ExtractToDirectory(ctx context.Context, target string, opts ...ExtractOption) (Stats, error) {
	cfg := extractConfig{mode: DefaultMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	var st Stats
	if err := os.MkdirAll(target, 0o755); err != nil {
		return st, fmt.Errorf("create extraction root: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		entry, ok, err := r.Next()
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}

		dest, err := SafeJoin(target, entry.Name)
		if err != nil {
			return st, err
		}

		if entry.IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return st, fmt.Errorf("create directory %s: %w", entry.Name, err)
			}
			st.Dirs++
		} else {
			n, err := r.extractFile(ctx, dest, cfg.mode(entry.Name))
			st.Bytes += n
			if err != nil {
				return st, fmt.Errorf("extract %s: %w", entry.Name, err)
			}
		}
		st.Entries++
		if cfg.progress != nil {
			cfg.progress(entry)
		}
	}

	st.Duration = time.Since(start)
	logger.Debug("archive extracted",
		logger.KeyTarget, target,
		logger.KeyEntries, st.Entries,
		logger.KeyBytes, st.Bytes,
		logger.KeyDurationMs, float64(st.Duration.Microseconds())/1000.0)
	return st, nil
}

func (r *Reader) extractFile(ctx context.Context, dest string, mode fs.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	n, err := r.ExtractToStream(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// ExtractToDirectory decodes src and extracts it beneath target.
func ExtractToDirectory(ctx context.Context, src io.Reader, target string, opts ...ExtractOption) (Stats, error) {
	return NewReader(src).ExtractToDirectory(ctx, target, opts...)
}

// SafeJoin resolves an entry name beneath root, rejecting names that are
// empty, absolute, or climb out of root.
func SafeJoin(root, name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")
	local := filepath.FromSlash(clean)
	if clean == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(root, local), nil
}
