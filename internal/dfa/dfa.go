// Package dfa determinizes and minimizes the rule automaton.
package dfa

import (
	"strconv"
	"strings"

	"github.com/gnolang/tlex/internal/nfa"
)

const (
	// Reject is the successor of a state that has no transition.
	Reject = -1
	// NoAccept marks a state that accepts no rule.
	NoAccept = nfa.NoAccept
)

// State is a DFA state. Next has one entry per symbol class.
type State struct {
	Next   []int
	Accept int
}

// DFA is a deterministic automaton with one start state per start
// condition. Several start conditions may share a start state.
type DFA struct {
	States  []State
	Starts  []int
	Classes int
}

// Convert runs the subset construction. The effective rule of a state is
// the lowest ordinal among the accepting NFA states of its subset.
// States are numbered breadth first from the start states, classes in
// ascending order, so the result only depends on the automaton.
func Convert(n *nfa.NFA) *DFA {
	d := &DFA{Classes: n.Classes}
	index := map[string]int{}
	var subsets [][]int

	add := func(subset []int) int {
		key := subsetKey(subset)
		if id, ok := index[key]; ok {
			return id
		}
		id := len(d.States)
		index[key] = id
		subsets = append(subsets, subset)
		d.States = append(d.States, State{Next: make([]int, n.Classes), Accept: acceptOf(n, subset)})
		return id
	}

	for _, entry := range n.Entries {
		d.Starts = append(d.Starts, add(n.Closure([]int{entry})))
	}

	targets := make([][]int, n.Classes)
	for id := 0; id < len(d.States); id++ {
		for c := range targets {
			targets[c] = targets[c][:0]
		}
		for _, s := range subsets[id] {
			for _, e := range n.States[s].Edges {
				targets[e.Class] = append(targets[e.Class], e.To)
			}
		}
		for c, to := range targets {
			if len(to) == 0 {
				d.States[id].Next[c] = Reject
				continue
			}
			next := add(n.Closure(to))
			d.States[id].Next[c] = next
		}
	}

	d.prune()
	return d
}

func acceptOf(n *nfa.NFA, subset []int) int {
	best := NoAccept
	for _, s := range subset {
		if a := n.States[s].Accept; a != NoAccept && (best == NoAccept || a < best) {
			best = a
		}
	}
	return best
}

func subsetKey(subset []int) string {
	var b strings.Builder
	for i, s := range subset {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(s))
	}
	return b.String()
}

// prune routes every transition into a state that cannot reach an
// accepting state to Reject, then drops unreachable states. Start states
// are always kept.
func (d *DFA) prune() {
	live := make([]bool, len(d.States))
	for changed := true; changed; {
		changed = false
		for i, s := range d.States {
			if live[i] {
				continue
			}
			if s.Accept != NoAccept {
				live[i] = true
				changed = true
				continue
			}
			for _, t := range s.Next {
				if t != Reject && live[t] {
					live[i] = true
					changed = true
					break
				}
			}
		}
	}
	for i := range d.States {
		for c, t := range d.States[i].Next {
			if t != Reject && !live[t] {
				d.States[i].Next[c] = Reject
			}
		}
	}
	d.renumber()
}

// renumber drops unreachable states and numbers the rest breadth first
// from the start states.
func (d *DFA) renumber() {
	order := make([]int, len(d.States))
	for i := range order {
		order[i] = -1
	}
	var queue []int
	visit := func(s int) {
		if order[s] < 0 {
			order[s] = len(queue)
			queue = append(queue, s)
		}
	}
	for _, s := range d.Starts {
		visit(s)
	}
	for i := 0; i < len(queue); i++ {
		for _, t := range d.States[queue[i]].Next {
			if t != Reject {
				visit(t)
			}
		}
	}

	states := make([]State, len(queue))
	for newID, old := range queue {
		next := make([]int, d.Classes)
		for c, t := range d.States[old].Next {
			if t == Reject {
				next[c] = Reject
			} else {
				next[c] = order[t]
			}
		}
		states[newID] = State{Next: next, Accept: d.States[old].Accept}
	}
	for m, s := range d.Starts {
		d.Starts[m] = order[s]
	}
	d.States = states
}

// NeedsBackup reports whether some accepting state has a transition into
// a non-accepting state. Scanning such an automaton may overshoot the
// last accept and has to back up to it.
func (d *DFA) NeedsBackup() bool {
	for _, s := range d.States {
		if s.Accept == NoAccept {
			continue
		}
		for _, t := range s.Next {
			if t != Reject && d.States[t].Accept == NoAccept {
				return true
			}
		}
	}
	return false
}

// Accepting reports whether any state accepts.
func (d *DFA) Accepting() bool {
	for _, s := range d.States {
		if s.Accept != NoAccept {
			return true
		}
	}
	return false
}

// Unmatched returns, in ascending order, the rule ordinals below
// numRules that are the effective rule of no state. Such rules are
// shadowed by earlier rules or match nothing.
func (d *DFA) Unmatched(numRules int) []int {
	used := make([]bool, numRules)
	for _, s := range d.States {
		if s.Accept >= 0 && s.Accept < numRules {
			used[s.Accept] = true
		}
	}
	var out []int
	for r, ok := range used {
		if !ok {
			out = append(out, r)
		}
	}
	return out
}

// EmptyMatches returns the rule ordinals accepted by a start state.
// Such rules match the empty string, which the scanner never returns.
func (d *DFA) EmptyMatches() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range d.Starts {
		if a := d.States[s].Accept; a != NoAccept && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// Step returns the successor of state on class.
func (d *DFA) Step(state, class int) int { return d.States[state].Next[class] }
