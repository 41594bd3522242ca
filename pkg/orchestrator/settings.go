package orchestrator

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// WriteSettings replaces path with one "key: value" line per entry, keys in
// sorted order. The file ends with exactly one newline.
func WriteSettings(path string, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, settings[k])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// RootLogger is the LogLevels key that sets the root logger level.
const RootLogger = "root"

// AppendLoggingDirectives appends logger level directives to a log4j2
// properties file, creating it if needed. Existing content is never
// truncated, so repeated calls accumulate.
func AppendLoggingDirectives(path string, levels map[string]string) error {
	if len(levels) == 0 {
		return nil
	}
	names := make([]string, 0, len(levels))
	for n := range levels {
		names = append(names, n)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteByte('\n')
	for _, name := range names {
		level := levels[name]
		if name == RootLogger {
			fmt.Fprintf(&b, "rootLogger.level = %s\n", level)
			continue
		}
		id := loggerID(name)
		fmt.Fprintf(&b, "logger.%s.name = %s\n", id, name)
		fmt.Fprintf(&b, "logger.%s.level = %s\n", id, level)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open logging config: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append logging directives: %w", err)
	}
	return f.Close()
}

// loggerID turns a logger name into a log4j2 properties identifier.
func loggerID(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// serverSettings are the settings written for every instance before caller
// overrides.
func (o *Orchestrator) serverSettings() map[string]string {
	s := o.settings
	out := map[string]string{
		"cluster.name":           s.ClusterName,
		"node.name":              s.NodeName,
		"network.host":           s.Host,
		"http.port":              fmt.Sprint(s.Port),
		"transport.port":         fmt.Sprint(s.TransportPort),
		"path.data":              o.layout.Data(),
		"path.logs":              o.layout.Logs(),
		"discovery.type":         "single-node",
		"xpack.security.enabled": "false",
	}
	for k, v := range s.Values {
		out[k] = v
	}
	return out
}
