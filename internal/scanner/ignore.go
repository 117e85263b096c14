package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern  string // Original pattern
	negate   bool   // Starts with !
	dirOnly  bool   // Ends with /, matches only directories
	anchored bool   // Starts with /, matches from the scan root only
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}
	if rest, ok := strings.CutPrefix(pattern, "!"); ok {
		p.negate, pattern = true, rest
	}
	if rest, ok := strings.CutSuffix(pattern, "/"); ok {
		p.dirOnly, pattern = true, rest
	}
	if rest, ok := strings.CutPrefix(pattern, "/"); ok {
		p.anchored, pattern = true, rest
	}
	p.segments = strings.Split(strings.ToLower(pattern), "/")
	return p
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether the file at the slash-separated relative path rel is
// matched by the pattern. Directory patterns match any file beneath a
// matching directory. A negation pattern still reports its match; the caller
// decides what it overrides.
func (p IgnorePattern) Match(rel string) bool {
	segs := strings.Split(strings.ToLower(filepath.ToSlash(rel)), "/")
	if p.dirOnly {
		return p.matchFrom(segs[:len(segs)-1], true)
	}
	return p.matchFrom(segs, false)
}

func (p IgnorePattern) matchFrom(segs []string, prefix bool) bool {
	last := len(segs) - 1
	if p.anchored {
		last = min(last, 0)
	}
	for start := 0; start <= last; start++ {
		if matchSegments(p.segments, segs[start:], prefix) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against path segments. With prefix
// set, the pattern only needs to cover a leading part of the path.
func matchSegments(pattern, segs []string, prefix bool) bool {
	if len(pattern) == 0 {
		return prefix || len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:], prefix) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:], prefix)
}

// ignored applies patterns in order so that later negations can re-include
// a path.
func ignored(rel string, patterns []IgnorePattern) bool {
	out := false
	for _, p := range patterns {
		if p.Match(rel) {
			out = !p.IsNegation()
		}
	}
	return out
}
