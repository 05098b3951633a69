// Package auth implements the protected-route subsystem: classifying paths
// against configured password gates, resolving gate sentinel files, deciding
// access, minting per-file tokens and tracking unlock state in sessions.
package auth

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SentinelName is the file holding a gate's shared secret, stored directly
// inside the protected directory.
const SentinelName = ".password"

// Classifier computes which password gates apply to a path. It is a pure
// function over the configured protected routes; all state is fixed at
// construction.
type Classifier struct {
	routes []string
}

// NewClassifier builds a classifier from the configured protected route
// prefixes. Empty entries are skipped; they must never mean "protect
// everything". Remaining routes are normalised the same way request paths
// are, so matching is case-insensitive and segment-aligned.
func NewClassifier(routes []string) *Classifier {
	c := &Classifier{}
	for _, r := range routes {
		if strings.TrimSpace(r) == "" {
			continue
		}
		c.routes = append(c.routes, normalizeDir(r))
	}
	return c
}

// Classify returns the sentinel paths of every gate candidate that applies
// to path, nearest ancestor first. An empty result means no gate applies.
//
// For each configured route that prefixes the path, the walk also collects
// every ancestor directory still inside that route: a parent directory's
// sentinel is a valid unlock mechanism for a nested protected subtree.
func (c *Classifier) Classify(path string) []string {
	p := normalizeDir(path)

	seen := make(map[string]bool)
	var dirs []string
	for _, r := range c.routes {
		for dir := p; strings.HasPrefix(dir, r); {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
			next := parentDir(dir)
			if next == dir {
				break
			}
			dir = next
		}
	}

	// All candidates are ancestors of one path, so longest-first equals
	// nearest-first.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	sentinels := make([]string, len(dirs))
	for i, dir := range dirs {
		sentinels[i] = dir + SentinelName
	}
	return sentinels
}

// Protected reports whether any gate applies to path.
func (c *Classifier) Protected(path string) bool {
	p := normalizeDir(path)
	for _, r := range c.routes {
		if strings.HasPrefix(p, r) {
			return true
		}
	}
	return false
}

// CanonicalSentinel normalises a client-supplied sentinel path into the
// exact form the classifier produces, so that an unlock recorded from the
// verification endpoint matches the gate path decided on later requests.
// ok is false when the path does not name a sentinel file.
func CanonicalSentinel(p string) (string, bool) {
	n := norm.NFC.String(strings.ToLower(p))
	dir, ok := strings.CutSuffix(n, "/"+SentinelName)
	if !ok {
		return "", false
	}
	return normalizeDir(dir) + SentinelName, true
}

// normalizeDir lower-cases, NFC-normalises and slash-terminates a path so
// that prefix comparison is case-insensitive and aligned on path segments.
// OneDrive ignores case and normalises names, so gate matching must too.
func normalizeDir(p string) string {
	p = norm.NFC.String(strings.ToLower(p))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// parentDir returns the enclosing directory of a slash-terminated directory
// path. The root is its own parent.
func parentDir(dir string) string {
	trimmed := strings.TrimSuffix(dir, "/")
	if trimmed == "" {
		return "/"
	}
	idx := strings.LastIndexByte(trimmed, '/')
	return trimmed[:idx+1]
}
