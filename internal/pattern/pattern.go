// Package pattern implements the '*'/'?' wildcard path matcher and the
// tree-expansion helper used to resolve --include/--exclude style path
// patterns against a dentry tree (spec.md §4.8), grounded on wimlib's
// pattern.c (match_path/expand_path_pattern).
package pattern

import (
	"unicode"

	"github.com/openwim/wimcore/internal/wimtree"
)

// PathSeparator is the separator used by patterns and by wimtree.FullPath.
const PathSeparator = '\\'

// Flags for MatchPath, mirroring wimlib's MATCH_* constants.
type Flags int

const (
	// Recursively means that once every pattern component has matched,
	// any remaining trailing path components still count as a match
	// (the pattern names a directory and everything under it).
	Recursively Flags = 1 << iota

	// Ancestors means that if the path is exhausted before the pattern,
	// the match still succeeds (the path names an ancestor of something
	// the pattern could match — useful for exclusion-exception lists so
	// a directory is not pruned before its matching descendant is seen).
	Ancestors
)

// MatchPath reports whether path matches pattern under flags, using the
// component-wise wildcard algorithm described in spec.md §4.8. If pattern
// does not begin with PathSeparator, only path's final component (its
// basename) is matched. Leading/trailing separators and runs of interior
// separators are not significant; '*' and '?' never cross a separator.
func MatchPath(path, pattern string, flags Flags) bool {
	if len(pattern) == 0 || pattern[0] != PathSeparator {
		path = basename(path)
	}

	for {
		path = skipSeparators(path)
		pattern = skipSeparators(pattern)

		if len(pattern) == 0 {
			return len(path) == 0 || flags&Recursively != 0
		}
		if len(path) == 0 {
			return flags&Ancestors != 0
		}

		pathComp, pathRest := nextComponent(path)
		patComp, patRest := nextComponent(pattern)

		if !componentMatches(pathComp, patComp) {
			return false
		}
		path = pathRest
		pattern = patRest
	}
}

func skipSeparators(s string) string {
	i := 0
	for i < len(s) && s[i] == PathSeparator {
		i++
	}
	return s[i:]
}

func nextComponent(s string) (comp, rest string) {
	i := 0
	for i < len(s) && s[i] != PathSeparator {
		i++
	}
	return s[:i], s[i:]
}

func basename(path string) string {
	i := len(path)
	for i > 0 && path[i-1] == PathSeparator {
		i--
	}
	path = path[:i]
	j := i
	for j > 0 && path[j-1] != PathSeparator {
		j--
	}
	return path[j:]
}

// componentMatches matches a single path component against a single pattern
// component containing '*' and '?' wildcards, case-insensitively.
func componentMatches(s, pat string) bool {
	sr := []rune(s)
	pr := []rune(pat)
	return runesMatch(sr, pr)
}

func runesMatch(s, pat []rune) bool {
	for len(s) > 0 {
		if len(pat) == 0 {
			return false
		}
		if pat[0] == '*' {
			return runesMatch(s, pat[1:]) || runesMatch(s[1:], pat)
		}
		if s[0] != pat[0] && pat[0] != '?' && unicode.ToLower(s[0]) != unicode.ToLower(pat[0]) {
			return false
		}
		s = s[1:]
		pat = pat[1:]
	}
	for len(pat) > 0 && pat[0] == '*' {
		pat = pat[1:]
	}
	return len(pat) == 0
}

// Matcher adapts this package's free functions to the
// wiminterfaces.PatternMatcher contract, so a caller that depends on that
// interface can use the real implementation without importing this
// package's Flags type directly.
type Matcher struct{}

// MatchPath implements wiminterfaces.PatternMatcher.
func (Matcher) MatchPath(path, pat string, flags int) bool {
	return MatchPath(path, pat, Flags(flags))
}

// ExpandPattern implements wiminterfaces.PatternMatcher.
func (Matcher) ExpandPattern(root *wimtree.Dentry, pat string, consume func(*wimtree.Dentry) error) error {
	return ExpandPattern(root, pat, consume)
}

// ExpandPattern walks the tree rooted at root and invokes consume for every
// dentry whose full path (from root, spec.md §4.2) matches pattern. Walking
// stops early, returning consume's error, the first time consume returns a
// non-nil error.
func ExpandPattern(root *wimtree.Dentry, pat string, consume func(*wimtree.Dentry) error) error {
	var firstErr error
	wimtree.ForDentryInTree(root, func(d *wimtree.Dentry) bool {
		if !MatchPath(wimtree.FullPath(d, PathSeparator), pat, 0) {
			return true
		}
		if err := consume(d); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}
