package regex

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/gnolang/tlex/internal/charset"
)

// MaxRepeat bounds the counts of a {m,n} repetition.
const MaxRepeat = 1000

// Flags control how a pattern is compiled.
type Flags struct {
	// Cardinality is the alphabet size; leaf sets are clipped to it.
	Cardinality int
	// FoldCase makes every leaf set case-insensitive.
	FoldCase bool
}

// SyntaxError reports a malformed pattern.
type SyntaxError struct {
	Offset  int // byte offset within the pattern
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

var (
	digitSet = charset.RangeOf('0', '9')
	wordSet  = charset.Of(
		charset.Range{Lo: '0', Hi: '9'},
		charset.Range{Lo: 'A', Hi: 'Z'},
		charset.Range{Lo: '_', Hi: '_'},
		charset.Range{Lo: 'a', Hi: 'z'},
	)
	spaceSet = charset.Of(
		charset.Range{Lo: '\t', Hi: '\r'},
		charset.Range{Lo: ' ', Hi: ' '},
	)
)

type parser struct {
	src   string
	pos   int
	flags Flags
}

// Parse compiles pattern into a syntax tree.
func Parse(pattern string, flags Flags) (Node, error) {
	if flags.Cardinality <= 0 {
		flags.Cardinality = charset.UnicodeCardinality
	}
	p := &parser{src: pattern, flags: flags}
	n, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		// only an unbalanced ')' stops the top level early
		return nil, p.errorf("unmatched ')'")
	}
	return n, nil
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) next() rune {
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	return r
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) errorAt(pos int, format string, args ...interface{}) error {
	return &SyntaxError{Offset: pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseAlt() (Node, error) {
	start := p.pos
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.eof() || p.peek() != '|' {
		return first, nil
	}
	alt := &AltNode{Children: []Node{first}, pos: start}
	for !p.eof() && p.peek() == '|' {
		p.next()
		n, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		alt.Children = append(alt.Children, n)
	}
	return alt, nil
}

func (p *parser) parseConcat() (Node, error) {
	start := p.pos
	var items []Node
	for !p.eof() {
		if c := p.peek(); c == '|' || c == ')' {
			break
		}
		n, err := p.parseRepeat()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	switch len(items) {
	case 0:
		return &EmptyNode{pos: start}, nil
	case 1:
		return items[0], nil
	}
	return &ConcatNode{Children: items, pos: start}, nil
}

func (p *parser) parseRepeat() (Node, error) {
	start := p.pos
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for !p.eof() {
		opPos := p.pos
		var lo, hi int
		switch p.peek() {
		case '*':
			p.next()
			lo, hi = 0, Unbounded
		case '+':
			p.next()
			lo, hi = 1, Unbounded
		case '?':
			p.next()
			lo, hi = 0, 1
		case '{':
			if !p.countFollows() {
				return atom, nil
			}
			p.next()
			if lo, hi, err = p.parseCounts(opPos); err != nil {
				return nil, err
			}
		default:
			return atom, nil
		}
		atom = &RepeatNode{Child: atom, Min: lo, Max: hi, pos: start}
	}
	return atom, nil
}

// countFollows reports whether the '{' at the cursor opens a repetition
// count rather than standing for itself.
func (p *parser) countFollows() bool {
	i := p.pos + 1
	return i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9'
}

func (p *parser) parseCounts(opPos int) (int, int, error) {
	lo, err := p.parseInt()
	if err != nil {
		return 0, 0, err
	}
	hi := lo
	if !p.eof() && p.peek() == ',' {
		p.next()
		hi = Unbounded
		if !p.eof() && p.peek() != '}' {
			if hi, err = p.parseInt(); err != nil {
				return 0, 0, err
			}
		}
	}
	if p.eof() || p.next() != '}' {
		return 0, 0, p.errorAt(opPos, "unterminated repetition count")
	}
	if lo > MaxRepeat || hi > MaxRepeat {
		return 0, 0, p.errorAt(opPos, "repetition count exceeds %d", MaxRepeat)
	}
	if hi != Unbounded && hi < lo {
		return 0, 0, p.errorAt(opPos, "invalid repetition range {%d,%d}", lo, hi)
	}
	return lo, hi, nil
}

func (p *parser) parseInt() (int, error) {
	start := p.pos
	for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected a repetition count")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil || n > MaxRepeat {
		return 0, p.errorAt(start, "repetition count exceeds %d", MaxRepeat)
	}
	return n, nil
}

func (p *parser) parseAtom() (Node, error) {
	start := p.pos
	c := p.next()
	switch c {
	case '(':
		n, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.next() != ')' {
			return nil, p.errorAt(start, "missing ')'")
		}
		return n, nil
	case '*', '+', '?':
		return nil, p.errorAt(start, "missing operand for '%c'", c)
	case '^', '$':
		return nil, p.errorAt(start, "anchor '%c' is not supported", c)
	case '.':
		return p.leaf(start, charset.Single('\n').Complement(p.flags.Cardinality)), nil
	case '[':
		s, err := p.parseClass(start)
		if err != nil {
			return nil, err
		}
		return p.leaf(start, s), nil
	case '\\':
		s, single, err := p.parseEscape(start)
		if err != nil {
			return nil, err
		}
		if single {
			return p.literal(start, s[0].Lo)
		}
		return p.leaf(start, s), nil
	}
	if c == utf8.RuneError && p.pos-start == 1 {
		return nil, p.errorAt(start, "invalid UTF-8 in pattern")
	}
	return p.literal(start, c)
}

func (p *parser) literal(pos int, r rune) (Node, error) {
	if int(r) >= p.flags.Cardinality {
		return nil, p.errorAt(pos, "symbol %U is outside the alphabet", r)
	}
	return p.leaf(pos, charset.Single(r)), nil
}

func (p *parser) leaf(pos int, s charset.Set) *SetNode {
	if p.flags.FoldCase {
		s = s.FoldCase()
	}
	return &SetNode{Set: s.Clip(p.flags.Cardinality), pos: pos}
}

// parseEscape reads the escape after a backslash. single is true when the
// escape denotes one literal symbol rather than a class.
func (p *parser) parseEscape(start int) (s charset.Set, single bool, err error) {
	if p.eof() {
		return nil, false, p.errorAt(start, "trailing backslash")
	}
	c := p.next()
	switch c {
	case 'n':
		return charset.Single('\n'), true, nil
	case 't':
		return charset.Single('\t'), true, nil
	case 'r':
		return charset.Single('\r'), true, nil
	case 'f':
		return charset.Single('\f'), true, nil
	case 'v':
		return charset.Single('\v'), true, nil
	case 'a':
		return charset.Single('\a'), true, nil
	case 'b':
		return charset.Single('\b'), true, nil
	case '0':
		return charset.Single(0), true, nil
	case 'x':
		r, err := p.parseHex(start, 2)
		return charset.Single(r), true, err
	case 'u':
		r, err := p.parseHex(start, 4)
		return charset.Single(r), true, err
	case 'U':
		r, err := p.parseHex(start, 8)
		return charset.Single(r), true, err
	case 'd':
		return digitSet, false, nil
	case 'D':
		return digitSet.Complement(p.flags.Cardinality), false, nil
	case 'w':
		return wordSet, false, nil
	case 'W':
		return wordSet.Complement(p.flags.Cardinality), false, nil
	case 's':
		return spaceSet, false, nil
	case 'S':
		return spaceSet.Complement(p.flags.Cardinality), false, nil
	case 'p', 'P':
		s, err := p.parseProperty(start)
		if err != nil {
			return nil, false, err
		}
		if c == 'P' {
			s = s.Complement(charset.UnicodeCardinality)
		}
		return s, false, nil
	}
	if c < utf8.RuneSelf && (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '1' && c <= '9') {
		return nil, false, p.errorAt(start, "unknown escape '\\%c'", c)
	}
	return charset.Single(c), true, nil
}

func (p *parser) parseHex(start, digits int) (rune, error) {
	if p.pos+digits > len(p.src) {
		return 0, p.errorAt(start, "expected %d hex digits", digits)
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return 0, p.errorAt(start, "expected %d hex digits", digits)
	}
	p.pos += digits
	if v > utf8.MaxRune {
		return 0, p.errorAt(start, "code point %#x out of range", v)
	}
	return rune(v), nil
}

func (p *parser) parseProperty(start int) (charset.Set, error) {
	if p.eof() || p.next() != '{' {
		return nil, p.errorAt(start, "expected '{' after \\p")
	}
	nameStart := p.pos
	for !p.eof() && p.src[p.pos] != '}' {
		p.pos++
	}
	if p.eof() {
		return nil, p.errorAt(start, "unterminated property name")
	}
	name := p.src[nameStart:p.pos]
	p.pos++
	s, ok := charset.Property(name)
	if !ok {
		return nil, p.errorAt(start, "unknown Unicode property %q", name)
	}
	return s, nil
}

func (p *parser) parseClass(start int) (charset.Set, error) {
	negate := false
	if !p.eof() && p.peek() == '^' {
		p.next()
		negate = true
	}
	var out charset.Set
	first := true
	for {
		if p.eof() {
			return nil, p.errorAt(start, "missing ']'")
		}
		if p.peek() == ']' && !first {
			p.next()
			break
		}
		first = false

		if p.hasPrefix("[:") {
			s, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			out = out.Union(s)
			continue
		}

		itemPos := p.pos
		lo, set, err := p.classAtom()
		if err != nil {
			return nil, err
		}
		if set != nil {
			out = out.Union(set)
			continue
		}
		if p.peek() == '-' && p.pos+1 < len(p.src) && p.src[p.pos+1] != ']' {
			p.next()
			hiPos := p.pos
			hi, hiSet, err := p.classAtom()
			if err != nil {
				return nil, err
			}
			if hiSet != nil {
				return nil, p.errorAt(hiPos, "class escape cannot end a range")
			}
			if hi < lo {
				return nil, p.errorAt(itemPos, "invalid range %s", charset.Range{Lo: lo, Hi: hi})
			}
			out = out.Add(lo, hi)
			continue
		}
		if int(lo) >= p.flags.Cardinality {
			return nil, p.errorAt(itemPos, "symbol %U is outside the alphabet", lo)
		}
		out = out.Add(lo, lo)
	}
	if negate {
		if p.flags.FoldCase {
			out = out.FoldCase()
		}
		out = out.Complement(p.flags.Cardinality)
	}
	return out, nil
}

// classAtom reads one class member. It returns either a single symbol or,
// for class escapes such as \d, a set.
func (p *parser) classAtom() (rune, charset.Set, error) {
	start := p.pos
	c := p.next()
	switch c {
	case '\\':
		s, single, err := p.parseEscape(start)
		if err != nil {
			return 0, nil, err
		}
		if single {
			return s[0].Lo, nil, nil
		}
		return 0, s, nil
	}
	if c == utf8.RuneError && p.pos-start == 1 {
		return 0, nil, p.errorAt(start, "invalid UTF-8 in pattern")
	}
	return c, nil, nil
}

func (p *parser) parsePredicate() (charset.Set, error) {
	start := p.pos
	p.pos += len("[:")
	end := p.pos
	for end+1 < len(p.src) && !(p.src[end] == ':' && p.src[end+1] == ']') {
		end++
	}
	if end+1 >= len(p.src) {
		return nil, p.errorAt(start, "unterminated character predicate")
	}
	name := p.src[p.pos:end]
	p.pos = end + len(":]")
	s, ok := charset.Predicate(name)
	if !ok {
		return nil, p.errorAt(start, "unknown character predicate %q", name)
	}
	return s, nil
}

func (p *parser) hasPrefix(prefix string) bool {
	return len(p.src)-p.pos >= len(prefix) && p.src[p.pos:p.pos+len(prefix)] == prefix
}
