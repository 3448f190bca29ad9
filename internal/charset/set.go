package charset

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	// ByteCardinality is the alphabet size of a byte mode scanner.
	ByteCardinality = 256
	// UnicodeCardinality is the alphabet size of a Unicode scanner.
	UnicodeCardinality = unicode.MaxRune + 1
)

// Range is an inclusive range of symbols.
type Range struct {
	Lo rune
	Hi rune
}

func (r Range) Len() int { return int(r.Hi-r.Lo) + 1 }

func (r Range) String() string {
	if r.Lo == r.Hi {
		return quote(r.Lo)
	}
	return quote(r.Lo) + "-" + quote(r.Hi)
}

// Set is a normalized set of symbols: ranges are sorted, disjoint and
// never adjacent. The zero value is the empty set.
type Set []Range

// Single returns the set holding only r.
func Single(r rune) Set { return Set{{r, r}} }

// RangeOf returns the set [lo, hi].
func RangeOf(lo, hi rune) Set {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Set{{lo, hi}}
}

// Of builds a normalized set from arbitrary, possibly overlapping ranges.
func Of(ranges ...Range) Set {
	s := make(Set, 0, len(ranges))
	for _, r := range ranges {
		if r.Lo > r.Hi {
			r.Lo, r.Hi = r.Hi, r.Lo
		}
		s = append(s, r)
	}
	return s.normalize()
}

func (s Set) normalize() Set {
	if len(s) < 2 {
		return s
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Lo < s[j].Lo })
	out := s[:1]
	for _, r := range s[1:] {
		last := &out[len(out)-1]
		if r.Lo <= last.Hi+1 {
			if r.Hi > last.Hi {
				last.Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// IsEmpty reports whether the set holds no symbol.
func (s Set) IsEmpty() bool { return len(s) == 0 }

// Size returns the number of symbols in the set.
func (s Set) Size() int {
	n := 0
	for _, r := range s {
		n += r.Len()
	}
	return n
}

// Contains reports whether sym is a member of s.
func (s Set) Contains(sym rune) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Hi >= sym })
	return i < len(s) && s[i].Lo <= sym
}

// Union returns s ∪ t.
func (s Set) Union(t Set) Set {
	out := make(Set, 0, len(s)+len(t))
	out = append(out, s...)
	out = append(out, t...)
	return out.normalize()
}

// Add returns s with the range [lo, hi] added.
func (s Set) Add(lo, hi rune) Set { return s.Union(RangeOf(lo, hi)) }

// Intersect returns s ∩ t.
func (s Set) Intersect(t Set) Set {
	var out Set
	i, j := 0, 0
	for i < len(s) && j < len(t) {
		lo := max(s[i].Lo, t[j].Lo)
		hi := min(s[i].Hi, t[j].Hi)
		if lo <= hi {
			out = append(out, Range{lo, hi})
		}
		if s[i].Hi < t[j].Hi {
			i++
		} else {
			j++
		}
	}
	return out
}

// Intersects reports whether s and t share at least one symbol.
func (s Set) Intersects(t Set) bool { return !s.Intersect(t).IsEmpty() }

// Complement returns the symbols of [0, cardinality) that are not in s.
func (s Set) Complement(cardinality int) Set {
	var out Set
	next := rune(0)
	top := rune(cardinality - 1)
	for _, r := range s {
		if r.Lo > top {
			break
		}
		if r.Lo > next {
			out = append(out, Range{next, r.Lo - 1})
		}
		next = r.Hi + 1
	}
	if next <= top {
		out = append(out, Range{next, top})
	}
	return out
}

// Clip drops every symbol at or above cardinality.
func (s Set) Clip(cardinality int) Set {
	top := rune(cardinality - 1)
	var out Set
	for _, r := range s {
		if r.Lo > top {
			break
		}
		if r.Hi > top {
			r.Hi = top
		}
		out = append(out, r)
	}
	return out
}

// Equal reports whether s and t hold the same symbols.
func (s Set) Equal(t Set) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// FoldCase closes the set under simple Unicode case folding.
func (s Set) FoldCase() Set {
	out := append(Set(nil), s...)
	for _, r := range s.Intersect(cased) {
		for c := r.Lo; c <= r.Hi; c++ {
			for f := unicode.SimpleFold(c); f != c; f = unicode.SimpleFold(f) {
				out = append(out, Range{f, f})
			}
		}
	}
	return out.normalize()
}

// FromTable converts a unicode range table into a set.
func FromTable(t *unicode.RangeTable) Set {
	var out Set
	for _, r := range t.R16 {
		out = appendStrided(out, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	for _, r := range t.R32 {
		out = appendStrided(out, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	return out.normalize()
}

func appendStrided(out Set, lo, hi, stride rune) Set {
	if stride == 1 {
		return append(out, Range{lo, hi})
	}
	for c := lo; c <= hi; c += stride {
		out = append(out, Range{c, c})
	}
	return out
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for _, r := range s {
		b.WriteString(r.String())
	}
	b.WriteByte(']')
	return b.String()
}

func quote(r rune) string {
	switch {
	case r == '\\' || r == '-' || r == '[' || r == ']' || r == '^':
		return `\` + string(r)
	case r < 0x20 || r == 0x7f:
		return fmt.Sprintf(`\x%02x`, r)
	case r > 0xffff:
		return fmt.Sprintf(`\U%08x`, r)
	case !unicode.IsPrint(r):
		return fmt.Sprintf(`\u%04x`, r)
	}
	return string(r)
}
