// Package nfa builds a Thompson automaton over symbol classes from a
// compiled rule set.
package nfa

import (
	"fmt"
	"sort"

	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/regex"
	"github.com/gnolang/tlex/internal/rules"
)

// NoAccept marks a state that accepts no rule.
const NoAccept = -1

// Edge is a transition on one symbol class.
type Edge struct {
	Class int
	To    int
}

// State is an NFA state stored in the arena. Accept holds the ordinal of
// the rule the state accepts, or NoAccept.
type State struct {
	Edges  []Edge
	Eps    []int
	Accept int
}

// NFA is a multi-entry automaton: Entries[m] is the entry state of start
// condition m.
type NFA struct {
	States  []State
	Entries []int
	Classes int
	Rules   int // number of rules, the implicit error rule included
}

type fragment struct {
	in, out int
}

type builder struct {
	nfa  *NFA
	part *charset.Partition
}

// Build compiles every rule of set into one automaton. Each rule's exit
// state accepts with the rule's ordinal. Rules without a tree are skipped.
func Build(set *rules.Set, part *charset.Partition) *NFA {
	b := &builder{
		nfa:  &NFA{Classes: part.Len(), Rules: len(set.Rules)},
		part: part,
	}
	modes := len(set.Modes)
	if modes == 0 {
		modes = 1
	}
	for m := 0; m < modes; m++ {
		b.nfa.Entries = append(b.nfa.Entries, b.state())
	}
	for _, r := range set.Rules {
		if r.Tree == nil {
			continue
		}
		f := b.build(r.Tree)
		b.nfa.States[f.out].Accept = r.Ordinal
		for _, m := range r.StartStates {
			entry := b.nfa.Entries[m]
			b.nfa.States[entry].Eps = append(b.nfa.States[entry].Eps, f.in)
		}
	}
	return b.nfa
}

func (b *builder) state() int {
	b.nfa.States = append(b.nfa.States, State{Accept: NoAccept})
	return len(b.nfa.States) - 1
}

func (b *builder) eps(from, to int) {
	b.nfa.States[from].Eps = append(b.nfa.States[from].Eps, to)
}

func (b *builder) build(n regex.Node) fragment {
	switch n := n.(type) {
	case *regex.EmptyNode:
		s := b.state()
		return fragment{s, s}
	case *regex.SetNode:
		in, out := b.state(), b.state()
		for _, c := range b.part.ClassesOf(n.Set) {
			b.nfa.States[in].Edges = append(b.nfa.States[in].Edges, Edge{Class: c, To: out})
		}
		return fragment{in, out}
	case *regex.ConcatNode:
		f := b.build(n.Children[0])
		for _, child := range n.Children[1:] {
			next := b.build(child)
			b.eps(f.out, next.in)
			f.out = next.out
		}
		return f
	case *regex.AltNode:
		in, out := b.state(), b.state()
		for _, child := range n.Children {
			f := b.build(child)
			b.eps(in, f.in)
			b.eps(f.out, out)
		}
		return fragment{in, out}
	case *regex.RepeatNode:
		return b.repeat(n)
	}
	panic(fmt.Sprintf("nfa: unexpected node %T", n))
}

// repeat expands {m,n} into m required copies followed by either a
// looping copy or n-m optional copies.
func (b *builder) repeat(n *regex.RepeatNode) fragment {
	start := b.state()
	f := fragment{start, start}
	for i := 0; i < n.Min; i++ {
		next := b.build(n.Child)
		b.eps(f.out, next.in)
		f.out = next.out
	}

	if n.Max == regex.Unbounded {
		loop := b.star(b.build(n.Child))
		b.eps(f.out, loop.in)
		f.out = loop.out
		return f
	}

	if n.Max > n.Min {
		out := b.state()
		for i := n.Min; i < n.Max; i++ {
			b.eps(f.out, out)
			next := b.build(n.Child)
			b.eps(f.out, next.in)
			f.out = next.out
		}
		b.eps(f.out, out)
		f.out = out
	}
	return f
}

func (b *builder) star(f fragment) fragment {
	in, out := b.state(), b.state()
	b.eps(in, f.in)
	b.eps(in, out)
	b.eps(f.out, f.in)
	b.eps(f.out, out)
	return fragment{in, out}
}

// Closure extends set with every state reachable through epsilon edges.
// The result is sorted.
func (n *NFA) Closure(set []int) []int {
	seen := make(map[int]bool, len(set))
	stack := append([]int(nil), set...)
	for _, s := range set {
		seen[s] = true
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range n.States[s].Eps {
			if !seen[t] {
				seen[t] = true
				stack = append(stack, t)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}
