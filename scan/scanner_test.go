package scan_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tlex/generate"
	"github.com/gnolang/tlex/scan"
)

func compile(t *testing.T, src string, options ...string) *scan.Tables {
	t.Helper()
	opts := generate.DefaultOptions()
	for _, o := range options {
		require.NoError(t, opts.Parse(o))
	}
	opts.Check = true
	res, err := generate.Source(context.Background(), nil, "test.rl", []byte(src), opts)
	require.NoError(t, err)
	require.False(t, res.Errors(), "%v", res.Diagnostics)
	require.NotNil(t, res.Tables)
	return res.Tables
}

func collect(s *scan.Scanner) []scan.Token {
	var out []scan.Token
	for {
		tok := s.Next()
		out = append(out, tok)
		if tok.Symbol == scan.EndSymbol {
			return out
		}
	}
}

func scanAll(t *testing.T, tab *scan.Tables, input string, opts ...scan.Option) []scan.Token {
	t.Helper()
	return collect(scan.New(tab, strings.NewReader(input), opts...))
}

// values drops the end token and returns symbol and text pairs.
type value struct {
	Symbol int
	Value  string
}

func values(toks []scan.Token) []value {
	var out []value
	for _, tok := range toks {
		if tok.Symbol != scan.EndSymbol {
			out = append(out, value{tok.Symbol, tok.Value})
		}
	}
	return out
}

const calc = `id = "[A-Za-z_][A-Za-z0-9_]*"
int = "0|-?[1-9][0-9]*"
ws<hidden> = "[ \t\r\n]+"
`

func TestScanIdentifiersAndIntegers(t *testing.T) {
	t.Parallel()
	tab := compile(t, calc)
	assert.Equal(t, []scan.Token{
		{Symbol: 0, Value: "foo", Line: 1, Column: 0, Position: 0},
		{Symbol: 1, Value: "42", Line: 1, Column: 4, Position: 4},
		{Symbol: 1, Value: "-7", Line: 1, Column: 7, Position: 7},
		{Symbol: scan.EndSymbol, Line: 1, Column: 9, Position: 9},
	}, scanAll(t, tab, "foo 42 -7"))
}

func TestScanEncodingsAgree(t *testing.T) {
	t.Parallel()
	input := "alpha 0 -12 beta_2\n\tgamma 99 + x"
	want := values(scanAll(t, compile(t, calc), input))

	for _, options := range [][]string{
		{"nocompressnext"},
		{"compress"},
		{"squeeze"},
		{"nominimize"},
		{"unicode"},
		{"unicode", "nocompress"},
		{"noclasses"},
	} {
		tab := compile(t, calc, options...)
		assert.Equal(t, want, values(scanAll(t, tab, input)), "options %v", options)
	}
}

func TestScanLongestMatch(t *testing.T) {
	t.Parallel()
	tab := compile(t, `kw = "abc"
id = "[a-z0-9]+"
`)
	assert.Equal(t, []value{{1, "abc123"}}, values(scanAll(t, tab, "abc123")))
	assert.Equal(t, []value{{0, "abc"}}, values(scanAll(t, tab, "abc")))
}

func TestScanPriority(t *testing.T) {
	t.Parallel()
	tab := compile(t, `kw<id=10> = "if|else"
id<id=20> = "[a-z]+"
ws<hidden> = " +"
`)
	assert.Equal(t, []value{{10, "if"}, {20, "iff"}, {10, "else"}, {20, "elsewhere"}},
		values(scanAll(t, tab, "if iff else elsewhere")))
}

func TestScanBackup(t *testing.T) {
	t.Parallel()
	tab := compile(t, `long = "abcd"
a = "a"
`)
	require.True(t, tab.Backup)
	assert.Equal(t, []scan.Token{
		{Symbol: 1, Value: "a", Line: 1, Column: 0, Position: 0},
		{Symbol: scan.ErrorSymbol, Value: "b", Line: 1, Column: 1, Position: 1},
		{Symbol: scan.ErrorSymbol, Value: "c", Line: 1, Column: 2, Position: 2},
		{Symbol: scan.ErrorSymbol, Value: "x", Line: 1, Column: 3, Position: 3},
		{Symbol: scan.EndSymbol, Line: 1, Column: 4, Position: 4},
	}, scanAll(t, tab, "abcx"))

	assert.Equal(t, []value{{0, "abcd"}, {1, "a"}}, values(scanAll(t, tab, "abcda")))
	// input ending inside the lookahead
	assert.Equal(t, []value{{1, "a"}, {-1, "b"}}, values(scanAll(t, tab, "ab")))
}

func TestScanErrorTokens(t *testing.T) {
	t.Parallel()
	tab := compile(t, `id = "[a-z]+"`)
	assert.Equal(t, []scan.Token{
		{Symbol: 0, Value: "a", Line: 1, Column: 0, Position: 0},
		{Symbol: scan.ErrorSymbol, Value: "+", Line: 1, Column: 1, Position: 1},
		{Symbol: 0, Value: "b", Line: 1, Column: 2, Position: 2},
		{Symbol: 0, Value: "c", Line: 2, Column: 0, Position: 4},
		{Symbol: scan.EndSymbol, Line: 2, Column: 1, Position: 5},
	}, scanAll(t, tab, "a+b\nc"))
}

func TestScanStartConditions(t *testing.T) {
	t.Parallel()
	tab := compile(t, `@options stack
open<push="STR"> = '"'
text<start="STR"> = '[^"\\]+'
esc<start="STR"> = '\\.'
close<start="STR", pop> = '"'
id = "[a-z]+"
paren<pop> = "\)"
ws<hidden> = " +"
`)
	require.Equal(t, []string{"INITIAL", "STR"}, tab.Modes)

	s := scan.New(tab, strings.NewReader(`ab "x\"y z" cd`))
	assert.Equal(t, []value{
		{4, "ab"}, {0, `"`}, {1, "x"}, {2, `\"`}, {1, "y z"}, {3, `"`}, {4, "cd"},
	}, values(collect(s)))
	assert.Equal(t, 0, s.Mode())

	// popping an empty stack keeps the current mode
	s = scan.New(tab, strings.NewReader(`) ab`))
	assert.Equal(t, []value{{5, ")"}, {4, "ab"}}, values(collect(s)))
	assert.Equal(t, 0, s.Mode())
}

func TestScannerModeStack(t *testing.T) {
	t.Parallel()
	tab := compile(t, `a = "a"
b<start="B"> = "b"
`)
	s := scan.New(tab, strings.NewReader("bab"))
	s.Push(1)
	assert.Equal(t, 1, s.Mode())
	tok := s.Next()
	assert.Equal(t, 1, tok.Symbol)

	s.Pop()
	assert.Equal(t, 0, s.Mode())
	s.Pop()
	assert.Equal(t, 0, s.Mode())
	assert.Equal(t, 0, s.Next().Symbol)

	s.Begin(1)
	assert.Equal(t, value{1, "b"}, values([]scan.Token{s.Next()})[0])
}

func TestScannerUndefinedMode(t *testing.T) {
	t.Parallel()
	tab := compile(t, `a = "a"
b<start="B"> = "b"
`)
	s := scan.New(tab, strings.NewReader("aa"))
	for _, mode := range []int{-1, 2, 100} {
		s.Begin(mode)
		assert.Equal(t, 0, s.Mode())
		s.Push(mode)
		assert.Equal(t, 0, s.Mode())
	}

	s.Push(1)
	s.Pop()
	// nothing else was pushed
	s.Pop()
	assert.Equal(t, 0, s.Mode())
	assert.Equal(t, value{0, "a"}, values([]scan.Token{s.Next()})[0])
}

func TestScanBeginMode(t *testing.T) {
	t.Parallel()
	tab := compile(t, `word = "[a-z]+"
hash<begin="NUM"> = "#"
num<start="NUM", begin="INITIAL"> = "[0-9]+"
`)
	assert.Equal(t, []value{{0, "ab"}, {1, "#"}, {2, "12"}, {0, "cd"}, {-1, "3"}},
		values(scanAll(t, tab, "ab#12cd3")))
}

const comments = `comment<blockEnd="*/"> = "/\*"
id = "[a-z]+"
ws<hidden> = "[ \n]+"
`

func TestScanBlockEnd(t *testing.T) {
	t.Parallel()
	tab := compile(t, comments)
	assert.Equal(t, []scan.Token{
		{Symbol: 1, Value: "a", Line: 1, Column: 0, Position: 0},
		{Symbol: 0, Value: "/* x\ny */", Line: 1, Column: 2, Position: 2},
		{Symbol: 1, Value: "b", Line: 2, Column: 5, Position: 12},
		{Symbol: scan.EndSymbol, Line: 2, Column: 6, Position: 13},
	}, scanAll(t, tab, "a /* x\ny */ b"))

	assert.Equal(t, []value{{0, "/**/"}, {0, "/*/ */"}}, values(scanAll(t, tab, "/**/ /*/ */")))
}

func TestScanBlockEndMissingTerminator(t *testing.T) {
	t.Parallel()
	tab := compile(t, comments)
	assert.Equal(t, []value{{1, "a"}, {scan.ErrorSymbol, "/* open\nend"}},
		values(scanAll(t, tab, "a /* open\nend")))
}

func TestScanHiddenBlock(t *testing.T) {
	t.Parallel()
	tab := compile(t, `comment<hidden, blockEnd="-->"> = "<!--"
id = "[a-z]+"
`)
	assert.Equal(t, []value{{1, "a"}, {1, "b"}}, values(scanAll(t, tab, "a<!-- x -- y -->b")))
}

func TestScanBlockEndAcrossReads(t *testing.T) {
	t.Parallel()
	tab := compile(t, comments)
	body := strings.Repeat("x", 10000)
	input := "/*" + body + "*/ a"
	r := iotest.OneByteReader(strings.NewReader(input))
	assert.Equal(t, []value{{0, "/*" + body + "*/"}, {1, "a"}}, values(collect(scan.New(tab, r))))
}

func TestScanUnicode(t *testing.T) {
	t.Parallel()
	tab := compile(t, `word = "\p{L}+"
ws<hidden> = " +"
`, "unicode")
	require.True(t, tab.Unicode)

	assert.Equal(t, []scan.Token{
		{Symbol: 0, Value: "héllo", Line: 1, Column: 0, Position: 0},
		{Symbol: 0, Value: "wörld", Line: 1, Column: 6, Position: 7},
		{Symbol: 0, Value: "日本", Line: 1, Column: 12, Position: 14},
		{Symbol: scan.EndSymbol, Line: 1, Column: 14, Position: 20},
	}, scanAll(t, tab, "héllo wörld 日本"))

	assert.Equal(t, []scan.Token{
		{Symbol: 0, Value: "ab", Line: 1, Column: 0, Position: 0},
		{Symbol: scan.ErrorSymbol, Value: "\xff", Line: 1, Column: 2, Position: 2},
		{Symbol: 0, Value: "cd", Line: 1, Column: 3, Position: 3},
		{Symbol: scan.ErrorSymbol, Value: "\xe6", Line: 1, Column: 5, Position: 5},
		{Symbol: scan.ErrorSymbol, Value: "\x97", Line: 1, Column: 6, Position: 6},
		{Symbol: scan.EndSymbol, Line: 1, Column: 7, Position: 7},
	}, scanAll(t, tab, "ab\xffcd\xe6\x97"))
}

func TestScanBytes(t *testing.T) {
	t.Parallel()
	tab := compile(t, `hi = "[\x80-\xff]+"
lo = "[a-z]+"
`)
	require.False(t, tab.Unicode)
	assert.Equal(t, []scan.Token{
		{Symbol: 1, Value: "ab", Line: 1, Column: 0, Position: 0},
		{Symbol: 0, Value: "é", Line: 1, Column: 2, Position: 2},
		{Symbol: scan.EndSymbol, Line: 1, Column: 4, Position: 4},
	}, scanAll(t, tab, "abé"))
}

func TestScanWithEncoding(t *testing.T) {
	t.Parallel()
	tab := compile(t, `word = "\p{L}+"`, "unicode")
	toks := scanAll(t, tab, "caf\xe9", scan.WithEncoding("windows-1252"))
	assert.Equal(t, []value{{0, "café"}}, values(toks))

	s := scan.New(tab, strings.NewReader("abc"), scan.WithEncoding("no-such-encoding"))
	assert.Equal(t, scan.EndSymbol, s.Next().Symbol)
	assert.Error(t, s.Err())
}

func TestScanReadError(t *testing.T) {
	t.Parallel()
	tab := compile(t, calc)
	boom := errors.New("boom")
	s := scan.New(tab, io.MultiReader(strings.NewReader("ab"), iotest.ErrReader(boom)))
	assert.Equal(t, []value{{0, "ab"}}, values(collect(s)))
	assert.ErrorIs(t, s.Err(), boom)
	assert.Equal(t, scan.EndSymbol, s.Next().Symbol)
}

type stuckReader struct{}

func (stuckReader) Read([]byte) (int, error) { return 0, nil }

func TestScanNoProgress(t *testing.T) {
	t.Parallel()
	s := scan.New(compile(t, calc), stuckReader{})
	assert.Equal(t, scan.EndSymbol, s.Next().Symbol)
	assert.ErrorIs(t, s.Err(), io.ErrNoProgress)
}

func TestScanEmptyInput(t *testing.T) {
	t.Parallel()
	tab := compile(t, calc)
	assert.Equal(t, []scan.Token{{Symbol: scan.EndSymbol, Line: 1}}, scanAll(t, tab, ""))

	s := scan.New(tab, strings.NewReader(""))
	s.Next()
	assert.Equal(t, scan.EndSymbol, s.Next().Symbol)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	tab := compile(t, calc)
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("x 1\ny 2\n"), 0o644))

	s, err := scan.Open(tab, path)
	require.NoError(t, err)
	assert.Equal(t, []value{{0, "x"}, {1, "1"}, {0, "y"}, {1, "2"}}, values(collect(s)))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	s, err = scan.Open(tab, path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Next().Symbol)
	assert.NoError(t, s.Close())

	_, err = scan.Open(tab, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScannersRunInParallel(t *testing.T) {
	t.Parallel()
	tab := compile(t, calc, "unicode")
	input := strings.Repeat("foo 42 -7 bar_1\n", 200)
	want := values(scanAll(t, tab, input))

	var wg sync.WaitGroup
	got := make([][]value, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = values(collect(scan.New(tab, strings.NewReader(input))))
		}(i)
	}
	wg.Wait()
	for _, g := range got {
		assert.Equal(t, want, g)
	}
}

func TestTokenString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `1:4: 3 "abc"`, scan.Token{Symbol: 3, Value: "abc", Line: 1, Column: 4}.String())
	assert.Equal(t, "2:0: <end>", scan.Token{Symbol: scan.EndSymbol, Line: 2}.String())
	assert.Equal(t, `1:0: <error> "?"`, scan.Token{Symbol: scan.ErrorSymbol, Value: "?", Line: 1}.String())
}
