package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/dfa"
	"github.com/gnolang/tlex/internal/diag"
	"github.com/gnolang/tlex/internal/nfa"
	"github.com/gnolang/tlex/internal/rulefile"
	"github.com/gnolang/tlex/internal/rules"
	"github.com/gnolang/tlex/scan"
)

const sample = `id = "[A-Za-z_][A-Za-z0-9_]*"
int = "0|-?[1-9][0-9]*"
str = '"([^"\\\n]|\\.)*"'
op = "[-+*/=<>!]=?"
ws<hidden> = "[ \t\n]+"
`

func compile(t *testing.T, src string, cfg rules.Config) (*dfa.DFA, *charset.Partition, *rules.Set) {
	t.Helper()
	f, err := rulefile.Parse([]byte(src))
	require.NoError(t, err)
	c := diag.New("test.rl")
	set := rules.Compile(f.Rules, cfg, c)
	require.False(t, c.Errors(), "%v", c.All())
	part := rules.FindClasses(set, true)
	d := dfa.Convert(nfa.Build(set, part))
	d.Minimize()
	return d, part, set
}

func checkRoundTrip(t *testing.T, tab *scan.Tables, d *dfa.DFA, part *charset.Partition) {
	t.Helper()
	require.NoError(t, tab.Validate())
	for sym := 0; sym < part.Cardinality(); sym++ {
		if got, want := tab.ClassOf(rune(sym)), part.ClassOf(rune(sym)); got != want {
			t.Fatalf("symbol %#x: class %d, want %d", sym, got, want)
		}
	}
	for s := range d.States {
		for c := 0; c < d.Classes; c++ {
			if got, want := tab.Step(s, c), d.Step(s, c); got != want {
				t.Fatalf("state %d class %d: next %d, want %d", s, c, got, want)
			}
		}
		assert.Equal(t, int32(d.States[s].Accept), tab.Accept[s])
	}
}

func TestBuildRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  rules.Config
		opts Options
	}{
		{"plain", rules.Config{}, Options{}},
		{"compressed map", rules.Config{}, Options{CompressMap: true}},
		{"compressed rows", rules.Config{}, Options{CompressNext: true}},
		{"compressed", rules.Config{}, Options{CompressMap: true, CompressNext: true}},
		{"squeezed", rules.Config{}, Options{Squeeze: true}},
		{"unicode", rules.Config{Unicode: true}, Options{CompressMap: true, CompressNext: true}},
		{"unicode squeezed", rules.Config{Unicode: true}, Options{Squeeze: true}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, part, set := compile(t, sample, tt.cfg)
			tab := Build(d, part, set, tt.opts)
			checkRoundTrip(t, tab, d, part)
			assert.Equal(t, tt.cfg.Unicode, tab.Unicode)
			assert.Len(t, tab.Actions, len(set.Rules))
		})
	}
}

func TestCompressMapUnicodeLetters(t *testing.T) {
	t.Parallel()
	d, part, set := compile(t, `word = "\p{L}+"
num = "\p{Nd}+"
`, rules.Config{Unicode: true})
	tab := Build(d, part, set, Options{CompressMap: true, CompressNext: true})
	checkRoundTrip(t, tab, d, part)

	assert.Nil(t, tab.Map.Dense)
	var dense, runs, overrides int
	for _, e := range tab.Map.Entries {
		if e.Table != nil {
			dense++
		} else {
			runs++
		}
		overrides += len(e.Overrides)
	}
	assert.Positive(t, dense)
	assert.Positive(t, runs)
	assert.Positive(t, overrides)

	squeezed := Build(d, part, set, Options{Squeeze: true})
	checkRoundTrip(t, squeezed, d, part)
	for _, e := range squeezed.Map.Entries {
		assert.Nil(t, e.Table)
	}
}

func TestCompressMapEntriesAreContiguous(t *testing.T) {
	t.Parallel()
	d, part, set := compile(t, sample, rules.Config{Unicode: true})
	tab := Build(d, part, set, Options{CompressMap: true})
	next := rune(0)
	for _, e := range tab.Map.Entries {
		assert.Equal(t, next, e.Start)
		next = e.Start + rune(e.Run)
	}
	assert.Equal(t, rune(charset.UnicodeCardinality), next)
}

func TestWindowRow(t *testing.T) {
	t.Parallel()

	r := dfa.Reject
	tests := []struct {
		name string
		next []int
		want scan.Row
	}{
		{
			name: "all reject",
			next: []int{r, r, r, r},
			want: scan.Row{Default: scan.Reject},
		},
		{
			name: "middle",
			next: []int{r, 1, 2, r, r},
			want: scan.Row{Min: 1, Len: 2, Default: scan.Reject, Next: []int32{1, 2}},
		},
		{
			name: "wraps around",
			next: []int{3, r, r, r, 4},
			want: scan.Row{Min: 4, Len: 2, Default: scan.Reject, Next: []int32{4, 3}},
		},
		{
			name: "frequent target",
			next: []int{5, 5, r, 5, 5},
			want: scan.Row{Min: 2, Len: 1, Default: 5, Next: []int32{scan.Reject}},
		},
		{
			name: "reject wins ties",
			next: []int{7, r, 7, r},
			want: scan.Row{Min: 0, Len: 3, Default: scan.Reject, Next: []int32{7, scan.Reject, 7}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row := windowRow(tt.next)
			assert.Equal(t, tt.want, row)

			tab := &scan.Tables{Classes: len(tt.next), Rows: []scan.Row{row}}
			for c, to := range tt.next {
				assert.Equal(t, to, tab.Step(0, c), "class %d", c)
			}
		})
	}
}

func TestSparseRow(t *testing.T) {
	t.Parallel()
	r := dfa.Reject
	next := []int{r, 2, r, r, 1}
	row := sparseRow(next)
	assert.Equal(t, scan.Row{Default: scan.Reject, Pairs: []scan.Pair{{Class: 1, To: 2}, {Class: 4, To: 1}}}, row)

	tab := &scan.Tables{Classes: len(next), Rows: []scan.Row{row}}
	for c, to := range next {
		assert.Equal(t, to, tab.Step(0, c))
	}
}

func TestBuildActions(t *testing.T) {
	t.Parallel()
	d, part, set := compile(t, `open<push="STR"> = '"'
close<start="STR", pop> = '"'
text<start="STR"> = '[^"]+'
comment<id=9, blockEnd="*/"> = "/\*"
skip<hidden, begin="INITIAL"> = " "
`, rules.Config{Stack: true})
	tab := Build(d, part, set, Options{CompressNext: true})

	require.Len(t, tab.Actions, 6)
	assert.Equal(t, []string{"INITIAL", "STR"}, tab.Modes)
	assert.Equal(t, scan.Action{Symbol: 0, Name: "open", Mode: scan.ModePush, Target: 1}, tab.Actions[0])
	assert.Equal(t, scan.Action{Symbol: 1, Name: "close", Mode: scan.ModePop}, tab.Actions[1])
	assert.Equal(t, scan.Action{Symbol: 9, Name: "comment", BlockEnd: "*/"}, tab.Actions[3])
	assert.Equal(t, scan.Action{Symbol: 3, Name: "skip", Hidden: true, Mode: scan.ModeBegin}, tab.Actions[4])
	assert.Equal(t, scan.ErrorSymbol, tab.Actions[5].Symbol)
}
