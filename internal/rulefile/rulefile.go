// Package rulefile reads the textual rule source format:
//
//	@options unicode, namespace="Demo"
//	// comments are C style
//	ident = "[A-Za-z_][A-Za-z0-9_]*";
//	ws<hidden> = '[ \t\r\n]+'
//	comment<blockEnd="*/"> = "/\*"
//
// Option and attribute values are JSON scalars. A bare key means true.
package rulefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Position locates a byte in the rule source. Line and Column are 1-based;
// Column counts code points.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Error is a positional parse error.
type Error struct {
	Pos      Position
	Expected string
	Msg      string
}

func (e *Error) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s: expected %s", e.Pos, e.Expected)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Value is a decoded scalar: string, json.Number, bool or nil.
type Value interface{}

// Pair is a key with an optional value, used both for options and rule
// attributes. Bare is true when the source gave no value.
type Pair struct {
	Key   string
	Value Value
	Bare  bool
	Pos   Position
}

// Definition is one rule as written.
type Definition struct {
	Name       string
	Attrs      []Pair
	Pattern    string
	Pos        Position
	PatternPos Position // position of the first pattern symbol
}

// File is a parsed rule source.
type File struct {
	Options []Pair
	Rules   []Definition
}

type reader struct {
	src  []byte
	pos  Position
	file File
}

// Parse reads a rule source. It stops at the first syntax error.
func Parse(src []byte) (*File, error) {
	r := &reader{src: src, pos: Position{Line: 1, Column: 1}}
	if err := r.run(); err != nil {
		return nil, err
	}
	return &r.file, nil
}

func (r *reader) run() error {
	for {
		if err := r.skipSpace(true); err != nil {
			return err
		}
		if r.eof() {
			return nil
		}
		switch c := r.peek(); {
		case c == '@':
			if err := r.readDirective(); err != nil {
				return err
			}
		case isIdentStart(c):
			if err := r.readRule(); err != nil {
				return err
			}
		default:
			return r.expected("rule name or @options")
		}
	}
}

func (r *reader) eof() bool { return r.pos.Offset >= len(r.src) }

func (r *reader) peek() rune {
	c, _ := utf8.DecodeRune(r.src[r.pos.Offset:])
	return c
}

func (r *reader) advance() rune {
	c, size := utf8.DecodeRune(r.src[r.pos.Offset:])
	r.pos.Offset += size
	if c == '\n' {
		r.pos.Line++
		r.pos.Column = 1
	} else {
		r.pos.Column++
	}
	return c
}

func (r *reader) hasPrefix(s string) bool {
	return bytes.HasPrefix(r.src[r.pos.Offset:], []byte(s))
}

func (r *reader) expected(what string) error {
	return &Error{Pos: r.pos, Expected: what}
}

func (r *reader) errorf(pos Position, format string, args ...interface{}) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// skipSpace skips blanks and comments. Newlines are only skipped when
// newlines is true.
func (r *reader) skipSpace(newlines bool) error {
	for !r.eof() {
		switch c := r.peek(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			r.advance()
		case c == '\n':
			if !newlines {
				return nil
			}
			r.advance()
		case r.hasPrefix("//"):
			for !r.eof() && r.peek() != '\n' {
				r.advance()
			}
		case r.hasPrefix("/*"):
			start := r.pos
			r.advance()
			r.advance()
			for !r.hasPrefix("*/") {
				if r.eof() {
					return r.errorf(start, "unterminated comment")
				}
				r.advance()
			}
			r.advance()
			r.advance()
		default:
			return nil
		}
	}
	return nil
}

func (r *reader) readIdent() (string, error) {
	if r.eof() || !isIdentStart(r.peek()) {
		return "", r.expected("identifier")
	}
	start := r.pos.Offset
	for !r.eof() && isIdentPart(r.peek()) {
		r.advance()
	}
	return string(r.src[start:r.pos.Offset]), nil
}

func (r *reader) readDirective() error {
	start := r.pos
	r.advance()
	name, err := r.readIdent()
	if err != nil {
		return err
	}
	if name != "options" {
		return r.errorf(start, "unknown directive @%s", name)
	}
	for {
		if err := r.skipSpace(false); err != nil {
			return err
		}
		if r.eof() || r.peek() == '\n' {
			return nil
		}
		p, err := r.readPair(false)
		if err != nil {
			return err
		}
		r.file.Options = append(r.file.Options, p)

		if err := r.skipSpace(false); err != nil {
			return err
		}
		if r.eof() || r.peek() == '\n' {
			return nil
		}
		if r.peek() != ',' {
			return r.expected("',' or end of line")
		}
		r.advance()
	}
}

func (r *reader) readPair(newlines bool) (Pair, error) {
	p := Pair{Pos: r.pos, Bare: true, Value: true}
	key, err := r.readIdent()
	if err != nil {
		return p, err
	}
	p.Key = key
	if err := r.skipSpace(newlines); err != nil {
		return p, err
	}
	if r.eof() || r.peek() != '=' {
		return p, nil
	}
	r.advance()
	if err := r.skipSpace(newlines); err != nil {
		return p, err
	}
	v, err := r.readValue()
	if err != nil {
		return p, err
	}
	p.Value, p.Bare = v, false
	return p, nil
}

// readValue scans one JSON scalar and decodes it with encoding/json.
func (r *reader) readValue() (Value, error) {
	start := r.pos
	switch c := r.peek(); {
	case r.eof():
		return nil, r.expected("value")
	case c == '"':
		r.advance()
		for {
			if r.eof() || r.peek() == '\n' {
				return nil, r.errorf(start, "unterminated string")
			}
			c := r.advance()
			if c == '\\' && !r.eof() {
				r.advance()
				continue
			}
			if c == '"' {
				break
			}
		}
	case c == '-' || c >= '0' && c <= '9' || isIdentStart(c):
		for !r.eof() {
			c := r.peek()
			if !(isIdentPart(c) || c == '-' || c == '+' || c == '.') {
				break
			}
			r.advance()
		}
	default:
		return nil, r.expected("value")
	}

	raw := r.src[start.Offset:r.pos.Offset]
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v Value
	if err := dec.Decode(&v); err != nil || dec.More() {
		return nil, r.errorf(start, "invalid value %s", raw)
	}
	switch v.(type) {
	case string, json.Number, bool, nil:
		return v, nil
	}
	return nil, r.errorf(start, "invalid value %s", raw)
}

func (r *reader) readRule() error {
	def := Definition{Pos: r.pos}
	name, err := r.readIdent()
	if err != nil {
		return err
	}
	def.Name = name
	if err := r.skipSpace(true); err != nil {
		return err
	}

	if !r.eof() && r.peek() == '<' {
		r.advance()
		if def.Attrs, err = r.readAttrs(); err != nil {
			return err
		}
		if err := r.skipSpace(true); err != nil {
			return err
		}
	}

	if r.eof() || r.peek() != '=' {
		return r.expected("'='")
	}
	r.advance()
	if err := r.skipSpace(true); err != nil {
		return err
	}

	if def.Pattern, def.PatternPos, err = r.readPattern(); err != nil {
		return err
	}
	if err := r.skipSpace(false); err != nil {
		return err
	}
	if !r.eof() && r.peek() == ';' {
		r.advance()
	}
	r.file.Rules = append(r.file.Rules, def)
	return nil
}

func (r *reader) readAttrs() ([]Pair, error) {
	var attrs []Pair
	for {
		if err := r.skipSpace(true); err != nil {
			return nil, err
		}
		if !r.eof() && r.peek() == '>' && len(attrs) == 0 {
			r.advance()
			return attrs, nil
		}
		p, err := r.readPair(true)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, p)
		if err := r.skipSpace(true); err != nil {
			return nil, err
		}
		switch {
		case r.eof():
			return nil, r.expected("'>'")
		case r.peek() == '>':
			r.advance()
			return attrs, nil
		case r.peek() == ',':
			r.advance()
		default:
			return nil, r.expected("',' or '>'")
		}
	}
}

// readPattern reads a quoted pattern. The text between the delimiters is
// kept verbatim; a backslash only protects the following symbol from
// ending the pattern.
func (r *reader) readPattern() (string, Position, error) {
	if r.eof() || (r.peek() != '"' && r.peek() != '\'') {
		return "", r.pos, r.expected("quoted pattern")
	}
	start := r.pos
	quote := r.advance()
	contentPos := r.pos
	for {
		if r.eof() || r.peek() == '\n' {
			return "", start, r.errorf(start, "unterminated pattern")
		}
		c := r.advance()
		if c == '\\' && !r.eof() && r.peek() != '\n' {
			r.advance()
			continue
		}
		if c == quote {
			return string(r.src[contentPos.Offset : r.pos.Offset-1]), contentPos, nil
		}
	}
}

func isIdentStart(c rune) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
