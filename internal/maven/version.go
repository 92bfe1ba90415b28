package maven

import (
	"fmt"
	"strings"
)

// CompareVersions orders Maven versions the way the repository tooling does
// for the common cases: numeric segments numerically, well-known qualifiers by
// release stage, anything else lexically after the release.
func CompareVersions(a, b string) int {
	ia, ib := splitVersion(a), splitVersion(b)
	n := max(len(ia), len(ib))
	for i := 0; i < n; i++ {
		var x, y *versionItem
		if i < len(ia) {
			x = &ia[i]
		}
		if i < len(ib) {
			y = &ib[i]
		}
		if c := compareItem(x, y); c != 0 {
			return c
		}
	}
	return 0
}

type versionItem struct {
	numeric bool
	value   string
}

func splitVersion(v string) []versionItem {
	v = strings.ToLower(strings.TrimSpace(v))
	var items []versionItem
	var cur strings.Builder
	curNumeric := false
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		if curNumeric {
			s = strings.TrimLeft(s, "0")
			if s == "" {
				s = "0"
			}
		}
		items = append(items, versionItem{numeric: curNumeric, value: s})
		cur.Reset()
	}
	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_':
			flush()
		case r >= '0' && r <= '9':
			if cur.Len() > 0 && !curNumeric {
				flush()
			}
			curNumeric = true
			cur.WriteRune(r)
		default:
			if cur.Len() > 0 && curNumeric {
				flush()
			}
			curNumeric = false
			cur.WriteRune(r)
		}
	}
	flush()
	// 1.0.0 == 1 and 1.0-final == 1
	for len(items) > 0 {
		last := items[len(items)-1]
		if (last.numeric && last.value == "0") || (!last.numeric && qualifierRank(last.value) == releaseRank) {
			items = items[:len(items)-1]
			continue
		}
		break
	}
	return items
}

const releaseRank = 6

func qualifierRank(q string) int {
	switch q {
	case "alpha", "a":
		return 1
	case "beta", "b":
		return 2
	case "milestone", "m":
		return 3
	case "rc", "cr":
		return 4
	case "snapshot":
		return 5
	case "", "ga", "final", "release":
		return releaseRank
	case "sp":
		return 7
	default:
		return 8
	}
}

func compareItem(x, y *versionItem) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -compareItem(y, nil)
	}
	if y == nil {
		if x.numeric {
			if x.value == "0" {
				return 0
			}
			return 1
		}
		return cmpInt(qualifierRank(x.value), releaseRank)
	}
	switch {
	case x.numeric && y.numeric:
		if len(x.value) != len(y.value) {
			return cmpInt(len(x.value), len(y.value))
		}
		return strings.Compare(x.value, y.value)
	case x.numeric:
		return 1
	case y.numeric:
		return -1
	}
	rx, ry := qualifierRank(x.value), qualifierRank(y.value)
	if rx != ry {
		return cmpInt(rx, ry)
	}
	if rx == 8 {
		return strings.Compare(x.value, y.value)
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// VersionRange is a union of Maven version restrictions such as
// "[1.0,2.0),[3.0,)".
type VersionRange struct {
	restrictions []restriction
}

type restriction struct {
	lower          string
	upper          string
	lowerInclusive bool
	upperInclusive bool
}

func isRangeSpec(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "[") || strings.HasPrefix(v, "(")
}

func ParseVersionRange(spec string) (VersionRange, error) {
	s := strings.ReplaceAll(strings.TrimSpace(spec), " ", "")
	var vr VersionRange
	for s != "" {
		if s[0] == ',' {
			s = s[1:]
			continue
		}
		if s[0] != '[' && s[0] != '(' {
			return VersionRange{}, fmt.Errorf("version range %q: expected [ or (", spec)
		}
		end := strings.IndexAny(s, "])")
		if end < 0 {
			return VersionRange{}, fmt.Errorf("version range %q: unterminated restriction", spec)
		}
		body := s[1:end]
		r := restriction{lowerInclusive: s[0] == '[', upperInclusive: s[end] == ']'}
		lo, hi, hasComma := strings.Cut(body, ",")
		if !hasComma {
			if !r.lowerInclusive || !r.upperInclusive || lo == "" {
				return VersionRange{}, fmt.Errorf("version range %q: single version must be [v]", spec)
			}
			r.lower, r.upper = lo, lo
		} else {
			r.lower, r.upper = lo, hi
			if r.lower != "" && r.upper != "" && CompareVersions(r.lower, r.upper) > 0 {
				return VersionRange{}, fmt.Errorf("version range %q: lower bound above upper bound", spec)
			}
		}
		vr.restrictions = append(vr.restrictions, r)
		s = s[end+1:]
	}
	if len(vr.restrictions) == 0 {
		return VersionRange{}, fmt.Errorf("version range %q: empty", spec)
	}
	return vr, nil
}

func (vr VersionRange) Contains(v string) bool {
	for _, r := range vr.restrictions {
		if r.lower != "" {
			c := CompareVersions(v, r.lower)
			if c < 0 || (c == 0 && !r.lowerInclusive) {
				continue
			}
		}
		if r.upper != "" {
			c := CompareVersions(v, r.upper)
			if c > 0 || (c == 0 && !r.upperInclusive) {
				continue
			}
		}
		return true
	}
	return false
}

// Pinned returns the single version of a "[v]" range.
func (vr VersionRange) Pinned() (string, bool) {
	if len(vr.restrictions) == 1 {
		r := vr.restrictions[0]
		if r.lower != "" && r.lower == r.upper && r.lowerInclusive && r.upperInclusive {
			return r.lower, true
		}
	}
	return "", false
}

// Highest returns the greatest candidate inside the range.
func (vr VersionRange) Highest(candidates []string) (string, bool) {
	best := ""
	for _, c := range candidates {
		if !vr.Contains(c) {
			continue
		}
		if best == "" || CompareVersions(c, best) > 0 {
			best = c
		}
	}
	return best, best != ""
}
