package charset

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// cased holds every rune that takes part in a simple case folding orbit.
var cased = FromTable(rangetable.Merge(
	unicode.Upper, unicode.Lower, unicode.Title,
	unicode.Other_Lowercase, unicode.Other_Uppercase,
	unicode.Mn,
))

// predicates maps the bracket predicate names ("[:IsLetter:]") to tables.
var predicates = map[string]func() *unicode.RangeTable{
	"IsLetter":        func() *unicode.RangeTable { return unicode.Letter },
	"IsDigit":         func() *unicode.RangeTable { return unicode.Digit },
	"IsLetterOrDigit": func() *unicode.RangeTable { return rangetable.Merge(unicode.Letter, unicode.Digit) },
	"IsLower":         func() *unicode.RangeTable { return unicode.Lower },
	"IsUpper":         func() *unicode.RangeTable { return unicode.Upper },
	"IsPunctuation":   func() *unicode.RangeTable { return unicode.Punct },
	"IsSymbol":        func() *unicode.RangeTable { return unicode.Symbol },
	"IsWhiteSpace":    func() *unicode.RangeTable { return unicode.White_Space },
	"IsControl":       func() *unicode.RangeTable { return unicode.Cc },
	"IsNumber":        func() *unicode.RangeTable { return unicode.Number },
	"IsSeparator":     func() *unicode.RangeTable { return unicode.Z },
	"IsGraphic": func() *unicode.RangeTable {
		return rangetable.Merge(unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Zs)
	},
}

var (
	predicateMu    sync.Mutex
	predicateCache = map[string]Set{}
)

// Predicate returns the set named by a bracket predicate such as
// "IsLetter". The second result is false for an unknown name.
func Predicate(name string) (Set, bool) {
	predicateMu.Lock()
	defer predicateMu.Unlock()

	if s, ok := predicateCache[name]; ok {
		return s, true
	}
	table, ok := predicates[name]
	if !ok {
		return nil, false
	}
	s := FromTable(table())
	predicateCache[name] = s
	return s, true
}

// Property resolves a \p{Name} class: a general category ("L", "Nd")
// or a script ("Greek"). Names are matched case-sensitively first and
// then case-insensitively.
func Property(name string) (Set, bool) {
	if t, ok := lookupProperty(name); ok {
		return FromTable(t), true
	}
	return nil, false
}

func lookupProperty(name string) (*unicode.RangeTable, bool) {
	if t, ok := unicode.Categories[name]; ok {
		return t, true
	}
	if t, ok := unicode.Scripts[name]; ok {
		return t, true
	}
	if t, ok := unicode.Properties[name]; ok {
		return t, true
	}
	for _, m := range []map[string]*unicode.RangeTable{unicode.Categories, unicode.Scripts, unicode.Properties} {
		for k, t := range m {
			if strings.EqualFold(k, name) {
				return t, true
			}
		}
	}
	return nil, false
}

// PredicateNames lists the supported bracket predicates.
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
