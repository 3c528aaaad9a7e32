package policy

import (
	"path/filepath"
	"strings"
)

// globMatch checks if path matches a glob pattern.
// Supports:
//
//	"*"  — matches any single path segment (no slashes)
//	"**" — matches zero or more path segments (including slashes)
//
// Within a segment, shell-style wildcards (*, ?, [...]) apply as in
// filepath.Match; other characters match literally. Patterns with no slash
// (the common case, e.g. "*.conf") degenerate to a single-segment match.
func globMatch(pattern, value string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(value, "/"))
}

func matchSegments(pat, seg []string) bool {
	for len(pat) > 0 {
		p := pat[0]
		pat = pat[1:]

		if p == "**" {
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(seg); i++ {
				if matchSegments(pat, seg[i:]) {
					return true
				}
			}
			return false
		}

		if len(seg) == 0 {
			return false
		}
		if !segmentMatch(p, seg[0]) {
			return false
		}
		seg = seg[1:]
	}
	return len(seg) == 0
}

// segmentMatch matches a single path segment against a single pattern
// segment, supporting shell-style wildcards (*, ?, [...]) via
// filepath.Match, e.g. "*.conf".
func segmentMatch(pattern, segment string) bool {
	ok, err := filepath.Match(pattern, segment)
	if err != nil {
		return pattern == segment
	}
	return ok
}
