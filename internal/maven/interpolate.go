package maven

import (
	"strings"
)

const maxInterpolationPasses = 16

// interpolate expands ${name} references from props. Unknown references are
// left untouched so callers can report them.
func interpolate(s string, props map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for pass := 0; pass < maxInterpolationPasses; pass++ {
		next, changed := expandOnce(s, props)
		s = next
		if !changed || !strings.Contains(s, "${") {
			break
		}
	}
	return s
}

func expandOnce(s string, props map[string]string) (string, bool) {
	var b strings.Builder
	changed := false
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start
		name := s[start+2 : end]
		b.WriteString(s[:start])
		if v, ok := props[name]; ok {
			b.WriteString(v)
			changed = true
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	return b.String(), changed
}

func unresolved(s string) bool {
	return strings.Contains(s, "${")
}
