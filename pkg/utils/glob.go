package utils

import "path/filepath"

// MatchGlob reports whether p matches pattern, trying the full path first and
// then the base name. Malformed patterns never match.
func MatchGlob(pattern, p string) bool {
	if pattern == "" {
		return false
	}
	if ok, _ := filepath.Match(pattern, p); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, filepath.Base(p))
	return ok
}

// MatchAny reports whether p matches any of patterns.
func MatchAny(patterns []string, p string) bool {
	for _, pat := range patterns {
		if MatchGlob(pat, p) {
			return true
		}
	}
	return false
}
