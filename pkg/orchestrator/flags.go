package orchestrator

import (
	"bufio"
	_ "embed"
	"io"
	"strings"
)

//go:embed resources/jvm.options
var defaultJVMOptions string

// ParseFlags reads one flag per line, dropping blank lines and lines whose
// first non-space character is '#'.
func ParseFlags(r io.Reader) ([]string, error) {
	var flags []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		flags = append(flags, line)
	}
	return flags, sc.Err()
}

// DefaultFlags returns the bundled JVM flags.
func DefaultFlags() []string {
	flags, _ := ParseFlags(strings.NewReader(defaultJVMOptions))
	return flags
}

// withHeap drops any -Xms/-Xmx flags and appends ones for size, e.g. "1g".
func withHeap(flags []string, size string) []string {
	if size == "" {
		return flags
	}
	out := make([]string, 0, len(flags)+2)
	for _, f := range flags {
		if strings.HasPrefix(f, "-Xms") || strings.HasPrefix(f, "-Xmx") {
			continue
		}
		out = append(out, f)
	}
	return append(out, "-Xms"+size, "-Xmx"+size)
}
