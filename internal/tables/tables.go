// Package tables encodes a minimized automaton into scanner tables.
package tables

import (
	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/dfa"
	"github.com/gnolang/tlex/internal/rules"
	"github.com/gnolang/tlex/scan"
)

// MinRun is the shortest region that gets a run entry of its own in a
// compressed class map.
const MinRun = 32

// Options selects the encodings.
type Options struct {
	CompressMap  bool
	CompressNext bool
	Squeeze      bool
}

// Build encodes d. Decoding the result reproduces every transition of d
// and the class of every symbol of part.
func Build(d *dfa.DFA, part *charset.Partition, set *rules.Set, opts Options) *scan.Tables {
	t := &scan.Tables{
		Unicode: set.Cardinality > charset.ByteCardinality,
		Classes: d.Classes,
		Modes:   append([]string(nil), set.Modes...),
		Backup:  d.NeedsBackup(),
	}
	if opts.CompressMap || opts.Squeeze {
		t.Map = compressMap(part, opts.Squeeze)
	} else {
		t.Map = denseMap(part)
	}

	for _, s := range d.Starts {
		t.Starts = append(t.Starts, int32(s))
	}
	for _, s := range d.States {
		t.Accept = append(t.Accept, int32(s.Accept))
		switch {
		case opts.Squeeze:
			t.Rows = append(t.Rows, sparseRow(s.Next))
		case opts.CompressNext:
			t.Rows = append(t.Rows, windowRow(s.Next))
		default:
			t.Rows = append(t.Rows, fullRow(s.Next))
		}
	}
	for _, r := range set.Rules {
		t.Actions = append(t.Actions, action(r, set))
	}
	return t
}

func action(r *rules.Rule, set *rules.Set) scan.Action {
	a := scan.Action{
		Symbol:   r.ID,
		Name:     r.Name,
		Hidden:   r.Hidden(),
		BlockEnd: r.BlockEnd(),
	}
	switch m := r.Mode(); m.Op {
	case rules.ModeBegin:
		a.Mode, a.Target = scan.ModeBegin, set.ModeIndex(m.Target)
	case rules.ModePush:
		a.Mode, a.Target = scan.ModePush, set.ModeIndex(m.Target)
	case rules.ModePop:
		a.Mode = scan.ModePop
	}
	return a
}

func denseMap(part *charset.Partition) scan.ClassMap {
	dense := make([]uint16, part.Cardinality())
	for _, r := range part.Regions() {
		for sym := r.Lo; sym <= r.Hi; sym++ {
			dense[sym] = uint16(r.Class)
		}
	}
	return scan.ClassMap{Dense: dense}
}

// compressMap encodes the partition as sorted entries. A region of at
// least MinRun symbols starts a run entry, which absorbs single symbol
// exceptions followed by more of its class as overrides. Shorter
// regions are packed into dense sub-tables, or become run entries of
// their own when squeezing.
func compressMap(part *charset.Partition, squeeze bool) scan.ClassMap {
	regions := part.Regions()
	var (
		entries []scan.MapEntry
		pending []charset.Region
	)
	flush := func() {
		switch len(pending) {
		case 0:
			return
		case 1:
			entries = append(entries, runEntry(pending[0]))
		default:
			lo, hi := pending[0].Lo, pending[len(pending)-1].Hi
			e := scan.MapEntry{Start: lo, Run: int32(hi - lo + 1), Table: make([]uint16, hi-lo+1)}
			for _, r := range pending {
				for sym := r.Lo; sym <= r.Hi; sym++ {
					e.Table[sym-lo] = uint16(r.Class)
				}
			}
			entries = append(entries, e)
		}
		pending = pending[:0]
	}

	for i := 0; i < len(regions); {
		r := regions[i]
		if size(r) < MinRun {
			if squeeze {
				entries = append(entries, runEntry(r))
			} else {
				pending = append(pending, r)
			}
			i++
			continue
		}

		flush()
		e := runEntry(r)
		end := r.Hi
		j := i + 1
		for j < len(regions) {
			n := regions[j]
			if n.Class == r.Class {
				end = n.Hi
				j++
				continue
			}
			if n.Lo == n.Hi && j+1 < len(regions) && regions[j+1].Class == r.Class {
				e.Overrides = append(e.Overrides, scan.Override{Symbol: n.Lo, Class: int32(n.Class)})
				j++
				continue
			}
			break
		}
		e.Run = int32(end - r.Lo + 1)
		entries = append(entries, e)
		i = j
	}
	flush()
	return scan.ClassMap{Entries: entries}
}

func runEntry(r charset.Region) scan.MapEntry {
	return scan.MapEntry{Start: r.Lo, Run: int32(size(r)), Default: int32(r.Class)}
}

func size(r charset.Region) int { return int(r.Hi-r.Lo) + 1 }

func fullRow(next []int) scan.Row {
	row := scan.Row{Len: int32(len(next)), Default: scan.Reject, Next: make([]int32, len(next))}
	for c, to := range next {
		row.Next[c] = int32(to)
	}
	return row
}

// defaultTarget returns the most frequent successor. Reject wins ties,
// then the lowest state.
func defaultTarget(next []int) int {
	counts := map[int]int{}
	for _, to := range next {
		counts[to]++
	}
	best, bestCount := dfa.Reject, counts[dfa.Reject]
	for to, n := range counts {
		if n > bestCount || n == bestCount && best != dfa.Reject && to < best {
			best, bestCount = to, n
		}
	}
	return best
}

// windowRow encodes next as a default target plus the shortest circular
// window of classes holding every other target.
func windowRow(next []int) scan.Row {
	k := len(next)
	def := defaultTarget(next)
	row := scan.Row{Default: int32(def)}

	var marked []int
	for c, to := range next {
		if to != def {
			marked = append(marked, c)
		}
	}
	if len(marked) == 0 {
		return row
	}

	// the window starts right after the widest run of default classes
	start, widest := marked[0], k-1-marked[len(marked)-1]+marked[0]
	for i := 1; i < len(marked); i++ {
		if gap := marked[i] - marked[i-1] - 1; gap > widest {
			start, widest = marked[i], gap
		}
	}
	row.Min = int32(start)
	row.Len = int32(k - widest)
	row.Next = make([]int32, row.Len)
	for i := range row.Next {
		row.Next[i] = int32(next[(start+i)%k])
	}
	return row
}

// sparseRow encodes next as a default target plus sorted pairs.
func sparseRow(next []int) scan.Row {
	def := defaultTarget(next)
	row := scan.Row{Default: int32(def)}
	for c, to := range next {
		if to != def {
			row.Pairs = append(row.Pairs, scan.Pair{Class: int32(c), To: int32(to)})
		}
	}
	return row
}
