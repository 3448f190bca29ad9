package scan

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// EndSymbol is the symbol of the token returned at end of input.
	EndSymbol = -2
	// ErrorSymbol is the symbol of unmatched input.
	ErrorSymbol = -1
	// Reject is the successor of a state without a transition.
	Reject = -1
)

// Tables is the compiled form of a rule set, as emitted by the generator.
type Tables struct {
	Unicode bool
	Classes int // number of symbol classes
	Map     ClassMap
	Rows    []Row
	Accept  []int32 // per state: index into Actions, or -1
	Starts  []int32 // per start condition: start state
	Modes   []string
	Actions []Action
	// Backup is set when an accepting state has a transition into a
	// non-accepting state.
	Backup bool
}

// ClassMap maps symbols to classes. Dense, when present, is indexed by
// symbol; otherwise Entries cover the alphabet as sorted, contiguous runs.
type ClassMap struct {
	Dense   []uint16
	Entries []MapEntry
}

// MapEntry covers the symbols [Start, Start+Run). A dense entry looks the
// class up in Table; a run entry returns an override if the symbol has
// one, and Default otherwise.
type MapEntry struct {
	Start     rune
	Run       int32
	Default   int32
	Table     []uint16
	Overrides []Override
}

// Override is a singleton exception inside a run entry.
type Override struct {
	Symbol rune
	Class  int32
}

// Row encodes the successors of one state.
//
// A windowed row holds the targets of Len classes starting at class Min,
// wrapping around the class count; classes outside the window go to
// Default. A squeezed row lists sorted (class, target) pairs instead.
type Row struct {
	Min     int32
	Len     int32
	Default int32
	Next    []int32
	Pairs   []Pair
}

// Pair is one explicit transition of a squeezed row.
type Pair struct {
	Class int32
	To    int32
}

// ModeOp is the start condition change of an action.
type ModeOp int

const (
	// ModeNone leaves the start condition alone.
	ModeNone ModeOp = iota
	// ModeBegin switches to Target.
	ModeBegin
	// ModePush saves the current start condition and switches to Target.
	ModePush
	// ModePop returns to the saved start condition.
	ModePop
)

// Action describes what the scanner does once a rule matched.
type Action struct {
	Symbol   int
	Name     string
	Hidden   bool   // keep scanning instead of returning a token
	BlockEnd string // read forward to this terminator
	Mode     ModeOp
	Target   int // start condition for ModeBegin and ModePush
}

// ClassOf returns the class of sym.
func (t *Tables) ClassOf(sym rune) int {
	m := &t.Map
	if m.Dense != nil {
		if sym < 0 || int(sym) >= len(m.Dense) {
			return 0
		}
		return int(m.Dense[sym])
	}
	i := sort.Search(len(m.Entries), func(i int) bool { return m.Entries[i].Start > sym }) - 1
	if i < 0 {
		return 0
	}
	e := &m.Entries[i]
	off := sym - e.Start
	if off >= rune(e.Run) {
		return 0
	}
	if e.Table != nil {
		return int(e.Table[off])
	}
	if n := len(e.Overrides); n > 0 {
		j := sort.Search(n, func(j int) bool { return e.Overrides[j].Symbol >= sym })
		if j < n && e.Overrides[j].Symbol == sym {
			return int(e.Overrides[j].Class)
		}
	}
	return int(e.Default)
}

// Step returns the successor of state on class, or Reject.
func (t *Tables) Step(state, class int) int {
	r := &t.Rows[state]
	if r.Pairs != nil {
		j := sort.Search(len(r.Pairs), func(j int) bool { return int(r.Pairs[j].Class) >= class })
		if j < len(r.Pairs) && int(r.Pairs[j].Class) == class {
			return int(r.Pairs[j].To)
		}
		return int(r.Default)
	}
	idx := class - int(r.Min)
	if idx < 0 {
		idx += t.Classes
	}
	if idx >= int(r.Len) {
		return int(r.Default)
	}
	return int(r.Next[idx])
}

// ErrInvalidTables is wrapped by every error Validate returns.
var ErrInvalidTables = errors.New("invalid scanner tables")

// Validate checks the internal consistency of t.
func (t *Tables) Validate() error {
	if t.Classes <= 0 {
		return fmt.Errorf("%w: no symbol classes", ErrInvalidTables)
	}
	if len(t.Accept) != len(t.Rows) {
		return fmt.Errorf("%w: %d rows but %d accept entries", ErrInvalidTables, len(t.Rows), len(t.Accept))
	}
	if len(t.Starts) == 0 || len(t.Starts) != len(t.Modes) {
		return fmt.Errorf("%w: %d start states for %d modes", ErrInvalidTables, len(t.Starts), len(t.Modes))
	}
	for _, s := range t.Starts {
		if s < 0 || int(s) >= len(t.Rows) {
			return fmt.Errorf("%w: start state %d out of range", ErrInvalidTables, s)
		}
	}
	for i, a := range t.Accept {
		if a < -1 || int(a) >= len(t.Actions) {
			return fmt.Errorf("%w: state %d accepts unknown action %d", ErrInvalidTables, i, a)
		}
	}
	for i, a := range t.Actions {
		if (a.Mode == ModeBegin || a.Mode == ModePush) && (a.Target < 0 || a.Target >= len(t.Modes)) {
			return fmt.Errorf("%w: action %d switches to unknown mode %d", ErrInvalidTables, i, a.Target)
		}
	}
	for i, r := range t.Rows {
		if r.Pairs == nil && int(r.Len) > len(r.Next) {
			return fmt.Errorf("%w: row %d is shorter than its window", ErrInvalidTables, i)
		}
	}
	return nil
}
