package middleware

import "strings"

// pathSkipper matches request paths against exact paths and "prefix*"
// patterns, compiled once when the middleware is built.
type pathSkipper struct {
	exact    map[string]struct{}
	prefixes []string
}

func newPathSkipper(patterns []string) pathSkipper {
	s := pathSkipper{exact: make(map[string]struct{}, len(patterns))}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
		case strings.HasSuffix(pattern, "*"):
			s.prefixes = append(s.prefixes, strings.TrimSuffix(pattern, "*"))
		default:
			s.exact[pattern] = struct{}{}
		}
	}
	return s
}

func (s pathSkipper) skip(path string) bool {
	if _, ok := s.exact[path]; ok {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
