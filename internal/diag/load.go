// Package diag locates and parses the scalar diagnostic series written
// alongside a run: accretion rate, magnetic flux, and whatever else the
// solver tracked per step. Diagnostics are optional everywhere; the nil
// Table is a first-class value.
package diag

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Attempt records why one candidate source did not serve.
type Attempt struct {
	Source string
	Err    error
}

// Candidate order: a post-processed log is authoritative when present, raw
// solver history files cover in-progress and legacy runs.
var candidates = []struct {
	name    string
	pattern string
}{
	{"post-processed log", "log_*.txt"},
	{"history file", "*.hst"},
	{"nested history file", filepath.Join("*", "*.hst")},
}

// Load resolves the diagnostics for a run root. The candidates are tried in
// order and the first one that parses wins; its path comes back so workers
// can reload the same source. All candidates missing or failing is not an
// error: the table is nil and the attempts carry the per-candidate reasons.
func Load(root string) (*Table, string, []Attempt) {
	var attempts []Attempt
	for _, c := range candidates {
		path, err := resolve(filepath.Join(root, c.pattern))
		if err != nil {
			attempts = append(attempts, Attempt{Source: c.name, Err: err})
			continue
		}
		t, err := LoadFile(path)
		if err != nil {
			attempts = append(attempts, Attempt{Source: c.name, Err: err})
			continue
		}
		return t, path, attempts
	}
	return nil, "", attempts
}

// resolve globs one candidate pattern. Several matches take the
// lexicographically first; a run rarely carries more than one.
func resolve(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no match for %s", filepath.Base(pattern))
	}
	sort.Strings(matches)
	return matches[0], nil
}
