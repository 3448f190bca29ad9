package charset

import "sort"

// Region is a maximal run of consecutive symbols sharing one class.
type Region struct {
	Lo    rune
	Hi    rune
	Class int
}

// Partition maps the symbol space [0, Cardinality) onto equivalence
// classes. Two symbols share a class when no set the partition was
// refined with tells them apart.
//
// The partition is kept as sorted regions: starts[i] is the first symbol
// of region i, which extends up to starts[i+1]-1.
type Partition struct {
	cardinality int
	starts      []rune
	classes     []int
	n           int
}

// New returns the trivial partition: one class covering every symbol.
func New(cardinality int) *Partition {
	return &Partition{
		cardinality: cardinality,
		starts:      []rune{0},
		classes:     []int{0},
		n:           1,
	}
}

// Identity returns the partition giving every symbol its own class. It is
// used when equivalence classes are disabled for byte mode scanners.
func Identity(cardinality int) *Partition {
	p := &Partition{
		cardinality: cardinality,
		starts:      make([]rune, cardinality),
		classes:     make([]int, cardinality),
		n:           cardinality,
	}
	for i := range p.starts {
		p.starts[i] = rune(i)
		p.classes[i] = i
	}
	return p
}

// Cardinality returns the size of the symbol space.
func (p *Partition) Cardinality() int { return p.cardinality }

// Len returns the number of classes.
func (p *Partition) Len() int { return p.n }

// Refine splits every class holding symbols both inside and outside s.
// The inside part of a split class gets a fresh id; fresh ids are given
// in ascending symbol order. Classes are never merged.
func (p *Partition) Refine(s Set) {
	s = s.Clip(p.cardinality)
	if s.IsEmpty() {
		return
	}
	p.split(s)

	inside := make([]bool, len(p.starts))
	hasIn := make([]bool, p.n)
	hasOut := make([]bool, p.n)
	for i := range p.starts {
		inside[i] = s.Contains(p.starts[i])
		if inside[i] {
			hasIn[p.classes[i]] = true
		} else {
			hasOut[p.classes[i]] = true
		}
	}

	fresh := make(map[int]int)
	for i := range p.starts {
		c := p.classes[i]
		if !inside[i] || !hasIn[c] || !hasOut[c] {
			continue
		}
		id, ok := fresh[c]
		if !ok {
			id = p.n
			p.n++
			fresh[c] = id
		}
		p.classes[i] = id
	}
	p.compact()
}

// split inserts region boundaries at every edge of s so that each region
// lies either wholly inside or wholly outside s.
func (p *Partition) split(s Set) {
	cuts := make([]rune, 0, 2*len(s))
	for _, r := range s {
		cuts = append(cuts, r.Lo)
		if int(r.Hi)+1 < p.cardinality {
			cuts = append(cuts, r.Hi+1)
		}
	}

	starts := make([]rune, 0, len(p.starts)+len(cuts))
	classes := make([]int, 0, len(p.starts)+len(cuts))
	i, j := 0, 0
	for i < len(p.starts) || j < len(cuts) {
		var next rune
		if j >= len(cuts) || (i < len(p.starts) && p.starts[i] <= cuts[j]) {
			next = p.starts[i]
			if j < len(cuts) && cuts[j] == next {
				j++
			}
			i++
		} else {
			next = cuts[j]
			j++
		}
		if n := len(starts); n > 0 && starts[n-1] == next {
			continue
		}
		starts = append(starts, next)
		classes = append(classes, p.classes[p.regionOf(next)])
	}
	p.starts, p.classes = starts, classes
}

// compact merges neighbouring regions of the same class.
func (p *Partition) compact() {
	w := 0
	for i := range p.starts {
		if w > 0 && p.classes[w-1] == p.classes[i] {
			continue
		}
		p.starts[w] = p.starts[i]
		p.classes[w] = p.classes[i]
		w++
	}
	p.starts = p.starts[:w]
	p.classes = p.classes[:w]
}

func (p *Partition) regionOf(sym rune) int {
	return sort.Search(len(p.starts), func(i int) bool { return p.starts[i] > sym }) - 1
}

// ClassOf returns the class of sym, which must lie inside the alphabet.
func (p *Partition) ClassOf(sym rune) int {
	return p.classes[p.regionOf(sym)]
}

// ClassesOf returns, in ascending order, the classes holding a symbol of
// s. For a set the partition was refined with, every returned class lies
// wholly inside s.
func (p *Partition) ClassesOf(s Set) []int {
	s = s.Clip(p.cardinality)
	seen := make(map[int]bool)
	var out []int
	for _, r := range s {
		for i := p.regionOf(r.Lo); i < len(p.starts) && p.starts[i] <= r.Hi; i++ {
			if c := p.classes[i]; !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Ints(out)
	return out
}

// Regions returns the partition as maximal same-class runs in symbol
// order. The runs cover [0, Cardinality) without gaps.
func (p *Partition) Regions() []Region {
	out := make([]Region, len(p.starts))
	for i, lo := range p.starts {
		hi := rune(p.cardinality - 1)
		if i+1 < len(p.starts) {
			hi = p.starts[i+1] - 1
		}
		out[i] = Region{Lo: lo, Hi: hi, Class: p.classes[i]}
	}
	return out
}

// Members returns the symbols of class c.
func (p *Partition) Members(c int) Set {
	var out Set
	for _, r := range p.Regions() {
		if r.Class == c {
			out = append(out, Range{r.Lo, r.Hi})
		}
	}
	return out
}
