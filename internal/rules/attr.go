package rules

import (
	"fmt"
	"strings"

	"github.com/gnolang/tlex/internal/rulefile"
)

// Attr is a rule attribute. The set of implementations is closed.
type Attr interface {
	attr()
	String() string
}

var (
	_ Attr = IDAttr{}
	_ Attr = HiddenAttr{}
	_ Attr = BlockEndAttr{}
	_ Attr = StartAttr{}
	_ Attr = ModeAttr{}
	_ Attr = UnknownAttr{}
)

// IDAttr fixes the token id of a rule.
type IDAttr struct{ ID int }

// HiddenAttr suppresses the token: scanning continues after a match.
type HiddenAttr struct{}

// BlockEndAttr makes the scanner read forward to Terminator after the
// rule's pattern matched. The token text includes the terminator.
type BlockEndAttr struct{ Terminator string }

// StartAttr lists the start conditions a rule is active in. All means
// every start condition.
type StartAttr struct {
	States []string
	All    bool
}

// ModeOp is a start condition change performed after a match.
type ModeOp int

const (
	ModeNone ModeOp = iota
	ModeBegin
	ModePush
	ModePop
)

func (op ModeOp) String() string {
	switch op {
	case ModeNone:
		return "none"
	case ModeBegin:
		return "begin"
	case ModePush:
		return "push"
	case ModePop:
		return "pop"
	}
	return fmt.Sprintf("ModeOp(%d)", int(op))
}

// ModeAttr switches the start condition after a match. Target is empty
// for ModePop.
type ModeAttr struct {
	Op     ModeOp
	Target string
}

// UnknownAttr keeps an attribute the generator does not interpret.
type UnknownAttr struct {
	Key   string
	Value rulefile.Value
}

func (IDAttr) attr()       {}
func (HiddenAttr) attr()   {}
func (BlockEndAttr) attr() {}
func (StartAttr) attr()    {}
func (ModeAttr) attr()     {}
func (UnknownAttr) attr()  {}

func (a IDAttr) String() string       { return fmt.Sprintf("id=%d", a.ID) }
func (HiddenAttr) String() string     { return "hidden" }
func (a BlockEndAttr) String() string { return fmt.Sprintf("blockEnd=%q", a.Terminator) }
func (a StartAttr) String() string {
	if a.All {
		return `start="*"`
	}
	return fmt.Sprintf("start=%q", strings.Join(a.States, ","))
}
func (a ModeAttr) String() string {
	if a.Op == ModePop {
		return "pop"
	}
	return fmt.Sprintf("%s=%q", a.Op, a.Target)
}
func (a UnknownAttr) String() string { return fmt.Sprintf("%s=%v", a.Key, a.Value) }

