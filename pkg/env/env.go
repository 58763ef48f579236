// Package env renders environment variable assignments for shells and
// .env files.
package env

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pair is a single assignment. Order is preserved by every writer.
type Pair struct {
	Key   string
	Value string
}

var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// ShellQuote wraps v in double quotes, escaping what a POSIX shell would
// otherwise expand inside them.
func ShellQuote(v string) string {
	return `"` + shellEscaper.Replace(v) + `"`
}

// WriteExports writes one `export KEY="value"` line per pair, suitable for
// eval in a POSIX shell.
func WriteExports(w io.Writer, pairs []Pair) error {
	for _, p := range pairs {
		if p.Key == "" {
			return fmt.Errorf("empty variable name")
		}
		if _, err := fmt.Fprintf(w, "export %s=%s\n", p.Key, ShellQuote(p.Value)); err != nil {
			return fmt.Errorf("failed to write env variable %s: %w", p.Key, err)
		}
	}
	return nil
}

// dotenvValue quotes values containing whitespace, `#`, `=` or quotes.
// Line breaks are written as \n and lone carriage returns as \r.
func dotenvValue(v string) string {
	if !strings.ContainsAny(v, " \t\n\r#=\"'") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\r\n", `\n`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, "\r", `\r`)
	return `"` + v + `"`
}

// Save writes pairs to path in .env format, creating parent directories.
// An empty list is a no-op.
func Save(path string, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create env directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create env file %s: %w", path, err)
	}
	defer f.Close()

	for _, p := range pairs {
		if p.Key == "" {
			return fmt.Errorf("empty variable name in %s", path)
		}
		if _, err := fmt.Fprintf(f, "%s=%s\n", p.Key, dotenvValue(p.Value)); err != nil {
			return fmt.Errorf("failed to write env variable %s: %w", p.Key, err)
		}
	}

	return nil
}
