package regex

import (
	"fmt"
	"strings"

	"github.com/gnolang/tlex/internal/charset"
)

// NodeType identifies the kind of a syntax tree node.
type NodeType int

const (
	NodeEmpty  NodeType = iota // matches the empty string
	NodeSet                    // one symbol out of a set
	NodeConcat                 // children in sequence
	NodeAlt                    // any one child
	NodeRepeat                 // bounded or unbounded repetition
)

func (t NodeType) String() string {
	switch t {
	case NodeEmpty:
		return "Empty"
	case NodeSet:
		return "Set"
	case NodeConcat:
		return "Concat"
	case NodeAlt:
		return "Alt"
	case NodeRepeat:
		return "Repeat"
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node is a node of a compiled pattern.
type Node interface {
	Type() NodeType // returns the node type
	String() string // pattern-like rendering for debugging
	Position() int  // byte offset of the node in the pattern
}

var (
	_ Node = (*EmptyNode)(nil)
	_ Node = (*SetNode)(nil)
	_ Node = (*ConcatNode)(nil)
	_ Node = (*AltNode)(nil)
	_ Node = (*RepeatNode)(nil)
)

// Unbounded is the Max of a repetition without an upper bound.
const Unbounded = -1

type EmptyNode struct {
	pos int
}

func (e *EmptyNode) Type() NodeType { return NodeEmpty }
func (e *EmptyNode) String() string { return "()" }
func (e *EmptyNode) Position() int  { return e.pos }

// SetNode matches a single symbol of Set. The set is already folded and
// clipped to the alphabet; it may be empty, in which case nothing matches.
type SetNode struct {
	Set charset.Set
	pos int
}

func (s *SetNode) Type() NodeType { return NodeSet }
func (s *SetNode) String() string { return s.Set.String() }
func (s *SetNode) Position() int  { return s.pos }

type ConcatNode struct {
	Children []Node
	pos      int
}

func (c *ConcatNode) Type() NodeType { return NodeConcat }
func (c *ConcatNode) String() string {
	var b strings.Builder
	for _, child := range c.Children {
		b.WriteString(child.String())
	}
	return b.String()
}
func (c *ConcatNode) Position() int { return c.pos }

type AltNode struct {
	Children []Node
	pos      int
}

func (a *AltNode) Type() NodeType { return NodeAlt }
func (a *AltNode) String() string {
	parts := make([]string, len(a.Children))
	for i, child := range a.Children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, "|") + ")"
}
func (a *AltNode) Position() int { return a.pos }

// RepeatNode matches Child at least Min and at most Max times. Max is
// Unbounded for `*`, `+` and `{m,}`.
type RepeatNode struct {
	Child Node
	Min   int
	Max   int
	pos   int
}

func (r *RepeatNode) Type() NodeType { return NodeRepeat }
func (r *RepeatNode) String() string {
	inner := "(" + r.Child.String() + ")"
	switch {
	case r.Min == 0 && r.Max == Unbounded:
		return inner + "*"
	case r.Min == 1 && r.Max == Unbounded:
		return inner + "+"
	case r.Min == 0 && r.Max == 1:
		return inner + "?"
	case r.Max == Unbounded:
		return fmt.Sprintf("%s{%d,}", inner, r.Min)
	case r.Min == r.Max:
		return fmt.Sprintf("%s{%d}", inner, r.Min)
	}
	return fmt.Sprintf("%s{%d,%d}", inner, r.Min, r.Max)
}
func (r *RepeatNode) Position() int { return r.pos }

// Walk calls fn for n and every node below it, parents first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch n := n.(type) {
	case *ConcatNode:
		for _, child := range n.Children {
			Walk(child, fn)
		}
	case *AltNode:
		for _, child := range n.Children {
			Walk(child, fn)
		}
	case *RepeatNode:
		Walk(n.Child, fn)
	}
}

// Sets returns the symbol set of every leaf below n in pattern order.
func Sets(n Node) []charset.Set {
	var out []charset.Set
	Walk(n, func(n Node) {
		if s, ok := n.(*SetNode); ok {
			out = append(out, s.Set)
		}
	})
	return out
}

// Nullable reports whether n matches the empty string.
func Nullable(n Node) bool {
	switch n := n.(type) {
	case *EmptyNode:
		return true
	case *SetNode:
		return false
	case *ConcatNode:
		for _, child := range n.Children {
			if !Nullable(child) {
				return false
			}
		}
		return true
	case *AltNode:
		for _, child := range n.Children {
			if Nullable(child) {
				return true
			}
		}
		return false
	case *RepeatNode:
		return n.Min == 0 || Nullable(n.Child)
	}
	panic(fmt.Sprintf("regex: unexpected node %T", n))
}

// NewSet returns a leaf node. It is used by callers that build rules
// without pattern text, such as the catch-all error rule.
func NewSet(s charset.Set) *SetNode { return &SetNode{Set: s} }
