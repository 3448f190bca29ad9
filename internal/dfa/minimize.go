package dfa

import (
	"strconv"
	"strings"
)

// Minimize merges equivalent states in place by partition refinement.
//
// The initial partition groups states by effective rule, so states of
// different rules are never merged. Blocks are split by the blocks of
// their successors until the number of blocks is stable. Blocks are
// numbered in order of first occurrence; minimizing a minimal automaton
// leaves it unchanged.
func (d *DFA) Minimize() {
	if len(d.States) == 0 {
		return
	}
	block, count := d.initialBlocks()
	for {
		next, n := d.refine(block)
		block = next
		if n == count {
			break
		}
		count = n
	}
	if count == len(d.States) {
		return
	}

	states := make([]State, count)
	filled := make([]bool, count)
	for i, s := range d.States {
		b := block[i]
		if filled[b] {
			continue
		}
		filled[b] = true
		next := make([]int, d.Classes)
		for c, t := range s.Next {
			if t == Reject {
				next[c] = Reject
			} else {
				next[c] = block[t]
			}
		}
		states[b] = State{Next: next, Accept: s.Accept}
	}
	for m, s := range d.Starts {
		d.Starts[m] = block[s]
	}
	d.States = states
	d.renumber()
}

func (d *DFA) initialBlocks() ([]int, int) {
	ids := map[int]int{}
	block := make([]int, len(d.States))
	for i, s := range d.States {
		b, ok := ids[s.Accept]
		if !ok {
			b = len(ids)
			ids[s.Accept] = b
		}
		block[i] = b
	}
	return block, len(ids)
}

// refine splits blocks by the signature (own block, successor blocks).
func (d *DFA) refine(block []int) ([]int, int) {
	ids := map[string]int{}
	next := make([]int, len(d.States))
	var key strings.Builder
	for i, s := range d.States {
		key.Reset()
		key.WriteString(strconv.Itoa(block[i]))
		for _, t := range s.Next {
			key.WriteByte(' ')
			if t == Reject {
				key.WriteByte('-')
			} else {
				key.WriteString(strconv.Itoa(block[t]))
			}
		}
		k := key.String()
		b, ok := ids[k]
		if !ok {
			b = len(ids)
			ids[k] = b
		}
		next[i] = b
	}
	return next, len(ids)
}
