package maven

import (
	"fmt"
	"strings"
	"unicode"
)

// qualifierRank orders well-known Maven qualifiers. The empty qualifier is
// a release; unknown qualifiers sort after all known ones.
var qualifierRank = map[string]int{
	"alpha":     0,
	"beta":      1,
	"milestone": 2,
	"rc":        3,
	"snapshot":  4,
	"":          5,
	"sp":        6,
}

var qualifierAliases = map[string]string{
	"a":       "alpha",
	"b":       "beta",
	"m":       "milestone",
	"cr":      "rc",
	"ga":      "",
	"final":   "",
	"release": "",
}

type versionItem struct {
	numeric bool
	digits  string // numeric items, leading zeros stripped
	text    string // qualifier items, normalized
}

// CompareVersions orders two Maven version strings. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	left, right := tokenize(a), tokenize(b)
	n := max(len(left), len(right))
	for i := range n {
		var l, r *versionItem
		if i < len(left) {
			l = &left[i]
		}
		if i < len(right) {
			r = &right[i]
		}
		if c := compareItems(l, r); c != 0 {
			return c
		}
	}
	return 0
}

func tokenize(v string) []versionItem {
	v = strings.ToLower(strings.TrimSpace(v))
	var items []versionItem
	var current strings.Builder
	var currentNumeric bool

	flush := func() {
		if current.Len() == 0 {
			return
		}
		s := current.String()
		current.Reset()
		if currentNumeric {
			digits := strings.TrimLeft(s, "0")
			items = append(items, versionItem{numeric: true, digits: digits})
			return
		}
		if alias, ok := qualifierAliases[s]; ok {
			s = alias
		}
		items = append(items, versionItem{text: s})
	}

	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
		case unicode.IsDigit(r):
			if current.Len() > 0 && !currentNumeric {
				flush()
			}
			currentNumeric = true
			current.WriteRune(r)
		default:
			if current.Len() > 0 && currentNumeric {
				flush()
			}
			currentNumeric = false
			current.WriteRune(r)
		}
	}
	flush()
	return items
}

// compareItems compares two items; nil stands for a missing item, which
// equals zero or the release qualifier.
func compareItems(l, r *versionItem) int {
	switch {
	case l == nil && r == nil:
		return 0
	case l == nil:
		return -compareItems(r, nil)
	}

	if r == nil {
		if l.numeric {
			if l.digits == "" {
				return 0
			}
			return 1
		}
		return compareQualifiers(l.text, "")
	}

	switch {
	case l.numeric && r.numeric:
		return compareDigits(l.digits, r.digits)
	case l.numeric:
		return 1
	case r.numeric:
		return -1
	default:
		return compareQualifiers(l.text, r.text)
	}
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareQualifiers(a, b string) int {
	ra, aKnown := qualifierRank[a]
	rb, bKnown := qualifierRank[b]
	switch {
	case aKnown && bKnown:
		return cmpInt(ra, rb)
	case aKnown:
		return -1
	case bKnown:
		return 1
	default:
		return strings.Compare(a, b)
	}
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

// VersionRange is one interval of a Maven version range specification.
type VersionRange struct {
	Lower, Upper                   string
	LowerInclusive, UpperInclusive bool
}

// Contains reports whether v falls inside the interval.
func (r VersionRange) Contains(v string) bool {
	if r.Lower != "" {
		c := CompareVersions(v, r.Lower)
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != "" {
		c := CompareVersions(v, r.Upper)
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

// IsRange reports whether a version requirement is a range specification.
func IsRange(spec string) bool {
	spec = strings.TrimSpace(spec)
	return strings.HasPrefix(spec, "[") || strings.HasPrefix(spec, "(")
}

// ParseRanges parses "[1.0,2.0)", "[1.5]", "(,1.0],[1.2,)" and similar.
func ParseRanges(spec string) ([]VersionRange, error) {
	spec = strings.TrimSpace(spec)
	var ranges []VersionRange
	for spec != "" {
		if spec[0] == ',' {
			spec = strings.TrimSpace(spec[1:])
			continue
		}
		if spec[0] != '[' && spec[0] != '(' {
			return nil, fmt.Errorf("invalid version range %q", spec)
		}
		end := strings.IndexAny(spec, "])")
		if end < 0 {
			return nil, fmt.Errorf("unterminated version range %q", spec)
		}
		body := spec[1:end]
		r := VersionRange{
			LowerInclusive: spec[0] == '[',
			UpperInclusive: spec[end] == ']',
		}
		if lower, upper, ok := strings.Cut(body, ","); ok {
			r.Lower = strings.TrimSpace(lower)
			r.Upper = strings.TrimSpace(upper)
		} else {
			if !r.LowerInclusive || !r.UpperInclusive {
				return nil, fmt.Errorf("invalid exact version range %q", spec[:end+1])
			}
			r.Lower = strings.TrimSpace(body)
			r.Upper = r.Lower
		}
		ranges = append(ranges, r)
		spec = strings.TrimSpace(spec[end+1:])
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("empty version range")
	}
	return ranges, nil
}

// SelectVersion returns the highest candidate satisfying any of the ranges.
func SelectVersion(ranges []VersionRange, candidates []string) (string, bool) {
	best := ""
	for _, v := range candidates {
		if strings.HasSuffix(strings.ToLower(v), "-snapshot") {
			continue
		}
		for _, r := range ranges {
			if r.Contains(v) {
				if best == "" || CompareVersions(v, best) > 0 {
					best = v
				}
				break
			}
		}
	}
	return best, best != ""
}
