// Package persist writes a winning configuration back into the build script
// defaults, e.g. get_env_or_default("FTL_GROUP_SIZE", 4096usize).
package persist

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cwbudde/ftltune/internal/space"
)

const (
	// DefaultLookupCall is the build script helper whose fallbacks are rewritten.
	DefaultLookupCall = "get_env_or_default"

	// DefaultTypeSuffix is the integer literal suffix in the build script.
	DefaultTypeSuffix = "usize"
)

// Rule rewrites the integer literal of one parameter. Pattern must have three
// groups: prefix, literal and suffix; only the literal is replaced.
type Rule struct {
	Key     string
	Pattern *regexp.Regexp
}

// NewRule builds the rule for call("KEY", <int><suffix>), tolerating
// whitespace around the punctuation.
func NewRule(key, call, suffix string) Rule {
	pattern := `(` + regexp.QuoteMeta(call) + `\s*\(\s*"` + regexp.QuoteMeta(key) + `"\s*,\s*)(\d+)(` + regexp.QuoteMeta(suffix) + `\))`
	return Rule{Key: key, Pattern: regexp.MustCompile(pattern)}
}

// Rules builds one rule per parameter of s.
func Rules(s *space.Space, call, suffix string) []Rule {
	params := s.Parameters()
	rules := make([]Rule, len(params))
	for i, p := range params {
		rules[i] = NewRule(p.Name, call, suffix)
	}
	return rules
}

// Change records one rewritten parameter.
type Change struct {
	Key   string
	Value int
}

// Rewrite applies rules to content. Keys missing from values and patterns
// absent from content are skipped; nothing outside the literals changes.
func Rewrite(content []byte, rules []Rule, values map[string]int) ([]byte, []Change) {
	var changes []Change
	for _, r := range rules {
		v, ok := values[r.Key]
		if !ok || !r.Pattern.Match(content) {
			continue
		}
		content = r.Pattern.ReplaceAll(content, []byte("${1}"+strconv.Itoa(v)+"${3}"))
		changes = append(changes, Change{Key: r.Key, Value: v})
	}
	return content, changes
}

// Persister applies a rule table to a defaults file.
type Persister struct {
	rules []Rule
	out   io.Writer
}

// New creates a persister that reports progress to out.
func New(rules []Rule, out io.Writer) *Persister {
	if out == nil {
		out = io.Discard
	}
	return &Persister{rules: rules, out: out}
}

// Apply rewrites path in place with cfg's values. A missing file is not an
// error. The file is read once and written once.
func (p *Persister) Apply(path string, cfg space.Configuration) ([]Change, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	updated, changes := Rewrite(content, p.rules, cfg.Map())
	for _, c := range changes {
		fmt.Fprintf(p.out, "Updating %s -> %d\n", c.Key, c.Value)
	}

	if len(changes) > 0 {
		if err := writeAtomic(path, updated, info.Mode().Perm()); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(p.out, "Updated %s with best config.\n", filepath.Base(path))
	return changes, nil
}

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	// Atomic rename to final location
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
