// Package scan is the runtime of the scanners generated by tlex. A
// generated scanner is a Tables value plus constructors that call New
// or Open.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

const readChunk = 4096

// Token is one scanned token. Line is 1-based; Column is 0-based and
// counts symbols (code points in Unicode mode, bytes otherwise);
// Position is the byte offset of the token in the input.
type Token struct {
	Symbol   int
	Value    string
	Line     int
	Column   int
	Position int
}

func (t Token) String() string {
	switch t.Symbol {
	case EndSymbol:
		return fmt.Sprintf("%d:%d: <end>", t.Line, t.Column)
	case ErrorSymbol:
		return fmt.Sprintf("%d:%d: <error> %q", t.Line, t.Column, t.Value)
	}
	return fmt.Sprintf("%d:%d: %d %q", t.Line, t.Column, t.Symbol, t.Value)
}

// cursor is a scanning position. It doubles as the backup checkpoint.
type cursor struct {
	pos    int // absolute byte offset
	line   int
	column int
}

type checkpoint struct {
	cursor
	state int
}

// Scanner tokenizes one input. It is not safe for concurrent use;
// independent scanners may run in parallel.
type Scanner struct {
	t      *Tables
	r      io.Reader
	closer io.Closer

	buf  []byte
	base int // absolute offset of buf[0]
	eof  bool
	err  error

	cur   cursor
	mode  int
	stack []int
	done  bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithEncoding decodes the input from a legacy encoding, given by its
// WHATWG name or label ("windows-1252", "shift_jis"), into UTF-8 before
// scanning.
func WithEncoding(name string) Option {
	return func(s *Scanner) {
		enc, err := htmlindex.Get(name)
		if err != nil {
			s.err = fmt.Errorf("scan: encoding %q: %w", name, err)
			return
		}
		s.r = enc.NewDecoder().Reader(s.r)
	}
}

// New returns a scanner reading r with tables t.
func New(t *Tables, r io.Reader, opts ...Option) *Scanner {
	s := &Scanner{
		t:   t,
		r:   r,
		cur: cursor{line: 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a scanner that owns the file at path. The file is closed
// by Close or once the end token has been returned.
func Open(t *Tables, path string, opts ...Option) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := New(t, f, opts...)
	s.closer = f
	return s, nil
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the input if the scanner owns it. It is safe to call
// more than once.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Mode returns the current start condition.
func (s *Scanner) Mode() int { return s.mode }

// Begin switches to start condition mode. A mode the tables do not define
// is ignored.
func (s *Scanner) Begin(mode int) {
	if s.validMode(mode) {
		s.mode = mode
	}
}

// Push saves the current start condition and switches to mode. Like Begin
// it ignores undefined modes, leaving the stack untouched.
func (s *Scanner) Push(mode int) {
	if !s.validMode(mode) {
		return
	}
	s.stack = append(s.stack, s.mode)
	s.mode = mode
}

func (s *Scanner) validMode(mode int) bool {
	return mode >= 0 && mode < len(s.t.Starts)
}

// Pop restores the start condition saved by the last Push. Popping an
// empty stack does nothing.
func (s *Scanner) Pop() {
	if n := len(s.stack); n > 0 {
		s.mode = s.stack[n-1]
		s.stack = s.stack[:n-1]
	}
}

// Next scans and returns the next token. At end of input, and after any
// read error, it returns a token with EndSymbol.
func (s *Scanner) Next() Token {
	for {
		if s.done || s.err != nil {
			return s.end()
		}
		start, state, ok := s.match(int(s.t.Starts[s.mode]))
		if !ok {
			if s.err != nil || s.atEOF() {
				return s.end()
			}
			// nothing matched: drop what was read and retry
			s.discard()
			continue
		}

		act := s.t.Actions[s.t.Accept[state]]
		symbol := act.Symbol
		if act.BlockEnd != "" && !s.readBlock(act.BlockEnd) {
			symbol = ErrorSymbol
		}
		s.changeMode(act)
		if act.Hidden && symbol != ErrorSymbol {
			s.discard()
			continue
		}
		tok := Token{
			Symbol:   symbol,
			Value:    string(s.buf[start.pos-s.base : s.cur.pos-s.base]),
			Line:     start.line,
			Column:   start.column,
			Position: start.pos,
		}
		s.discard()
		return tok
	}
}

func (s *Scanner) changeMode(act Action) {
	switch act.Mode {
	case ModeBegin:
		s.Begin(act.Target)
	case ModePush:
		s.Push(act.Target)
	case ModePop:
		s.Pop()
	}
}

func (s *Scanner) end() Token {
	if !s.done {
		s.done = true
		_ = s.Close()
	}
	return Token{Symbol: EndSymbol, Line: s.cur.line, Column: s.cur.column, Position: s.cur.pos}
}

// match runs the automaton from state. Symbols without a transition out
// of the start state are skipped first. On success it returns where the
// token starts and the accepting state it ends in, with the cursor right
// after the token.
func (s *Scanner) match(state int) (cursor, int, bool) {
	for {
		sym, size, ok := s.peek()
		if !ok {
			return s.cur, 0, false
		}
		if s.t.Step(state, s.t.ClassOf(sym)) != Reject {
			break
		}
		s.advance(sym, size)
	}
	start := s.cur

	var saved checkpoint
	hasSaved := false
	for {
		sym, size, ok := s.peek()
		if !ok {
			break
		}
		next := s.t.Step(state, s.t.ClassOf(sym))
		if next == Reject {
			break
		}
		if s.t.Backup && s.t.Accept[state] >= 0 && s.t.Accept[next] < 0 {
			saved = checkpoint{cursor: s.cur, state: state}
			hasSaved = true
		}
		s.advance(sym, size)
		state = next
	}

	if s.t.Accept[state] >= 0 {
		return start, state, true
	}
	if hasSaved {
		s.cur = saved.cursor
		return start, saved.state, true
	}
	return start, 0, false
}

// peek decodes the symbol at the cursor without consuming it.
func (s *Scanner) peek() (rune, int, bool) {
	for {
		avail := s.buf[s.cur.pos-s.base:]
		if s.t.Unicode {
			if utf8.FullRune(avail) {
				r, size := utf8.DecodeRune(avail)
				return r, size, true
			}
		} else if len(avail) > 0 {
			return rune(avail[0]), 1, true
		}
		if s.eof {
			if len(avail) > 0 {
				// truncated sequence at end of input
				return utf8.RuneError, 1, true
			}
			return 0, 0, false
		}
		s.fill()
	}
}

func (s *Scanner) advance(sym rune, size int) {
	s.cur.pos += size
	if sym == '\n' {
		s.cur.line++
		s.cur.column = 0
	} else {
		s.cur.column++
	}
}

func (s *Scanner) atEOF() bool {
	_, _, ok := s.peek()
	return !ok
}

// discard drops the buffered input before the cursor.
func (s *Scanner) discard() {
	n := s.cur.pos - s.base
	s.buf = append(s.buf[:0], s.buf[n:]...)
	s.base = s.cur.pos
}

func (s *Scanner) fill() {
	if s.r == nil {
		s.eof = true
		return
	}
	n := len(s.buf)
	if cap(s.buf)-n < readChunk {
		grown := make([]byte, n, 2*cap(s.buf)+readChunk)
		copy(grown, s.buf)
		s.buf = grown
	}
	for empty := 0; empty < 100; empty++ {
		m, err := s.r.Read(s.buf[n : n+readChunk])
		s.buf = s.buf[:n+m]
		if err != nil {
			s.eof = true
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return
		}
		if m > 0 {
			return
		}
	}
	s.eof = true
	s.err = io.ErrNoProgress
}

// readBlock consumes input up to and including term. It reports false
// when the input ends first; the rest of the input is consumed then.
func (s *Scanner) readBlock(term string) bool {
	t := []byte(term)
	from := s.cur.pos - s.base
	for {
		if i := bytes.Index(s.buf[from:], t); i >= 0 {
			s.skipTo(s.base + from + i + len(t))
			return true
		}
		if s.eof {
			s.skipTo(s.base + len(s.buf))
			return false
		}
		// the terminator may straddle the next read
		from = max(from, len(s.buf)-len(t)+1)
		s.fill()
	}
}

// skipTo moves the cursor to the absolute offset pos, keeping line and
// column up to date.
func (s *Scanner) skipTo(pos int) {
	for s.cur.pos < pos {
		avail := s.buf[s.cur.pos-s.base:]
		sym, size := rune(avail[0]), 1
		if s.t.Unicode {
			sym, size = utf8.DecodeRune(avail)
		}
		s.advance(sym, size)
	}
}
