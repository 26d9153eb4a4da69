package watch

import (
	"path/filepath"
	"regexp"
	"strings"
)

// glob matches a single watch-target pattern against absolute paths.
// Supported syntax: `*` (any run within one path segment), `?` (one
// character within a segment), `**` (any run of segments, including
// none).
type glob struct {
	pattern string
	base    string // static prefix directory, used for watch setup
	re      *regexp.Regexp
}

// compileGlob parses pattern into a matcher. The pattern is expected
// to be an absolute path by the time it reaches the watch layer.
func compileGlob(pattern string) (*glob, error) {
	clean := filepath.ToSlash(filepath.Clean(pattern))

	re, err := regexp.Compile("^" + globToRegexp(clean) + "$")
	if err != nil {
		return nil, err
	}
	return &glob{
		pattern: clean,
		base:    staticBase(clean),
		re:      re,
	}, nil
}

// Match reports whether path matches the pattern.
func (g *glob) Match(path string) bool {
	return g.re.MatchString(filepath.ToSlash(filepath.Clean(path)))
}

// Recursive reports whether the pattern can match paths nested more
// than one level below its base, which requires watching subdirectories.
func (g *glob) Recursive() bool {
	return strings.Contains(g.pattern, "**") || strings.Contains(trimBase(g.pattern, g.base), "/")
}

// staticBase returns the longest leading portion of the pattern with
// no wildcard, i.e. the directory the watch must be rooted at.
func staticBase(pattern string) string {
	segments := strings.Split(pattern, "/")
	var static []string
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?") {
			break
		}
		static = append(static, seg)
	}
	base := strings.Join(static, "/")
	if base == pattern {
		// No wildcard at all: the base is the containing directory.
		base = filepath.ToSlash(filepath.Dir(pattern))
	}
	if base == "" {
		base = "/"
	}
	return base
}

func trimBase(pattern, base string) string {
	return strings.TrimPrefix(strings.TrimPrefix(pattern, base), "/")
}

// globToRegexp translates glob syntax into a regular expression body.
func globToRegexp(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				// Collapse "**/" so it also matches zero segments.
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					i++
					sb.WriteString(`(?:[^/]+/)*`)
				} else {
					sb.WriteString(`.*`)
				}
			} else {
				sb.WriteString(`[^/]*`)
			}
		case '?':
			sb.WriteString(`[^/]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}
