package rulefile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	src := `@options unicode, namespace="Demo", compressMap=false
/* identifiers
   and numbers */
id = "[A-Za-z_][A-Za-z0-9_]*";
int<id=7> = '0|-?[1-9][0-9]*'
// whitespace
ws<hidden, blockEnd="*/"> = "[ \t\"]+";
`
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	require.Len(t, f.Options, 3)
	assert.Equal(t, Pair{Key: "unicode", Value: true, Bare: true, Pos: Position{1, 10, 9}}, f.Options[0])
	assert.Equal(t, "Demo", f.Options[1].Value)
	assert.False(t, f.Options[1].Bare)
	assert.Equal(t, false, f.Options[2].Value)

	require.Len(t, f.Rules, 3)
	assert.Equal(t, "id", f.Rules[0].Name)
	assert.Equal(t, "[A-Za-z_][A-Za-z0-9_]*", f.Rules[0].Pattern)
	assert.Equal(t, Position{Line: 4, Column: 1, Offset: 87}, f.Rules[0].Pos)
	assert.Equal(t, Position{Line: 4, Column: 7, Offset: 93}, f.Rules[0].PatternPos)

	assert.Equal(t, "int", f.Rules[1].Name)
	assert.Equal(t, "0|-?[1-9][0-9]*", f.Rules[1].Pattern)
	require.Len(t, f.Rules[1].Attrs, 1)
	assert.Equal(t, "id", f.Rules[1].Attrs[0].Key)
	assert.Equal(t, json.Number("7"), f.Rules[1].Attrs[0].Value)

	ws := f.Rules[2]
	assert.Equal(t, `[ \t\"]+`, ws.Pattern)
	require.Len(t, ws.Attrs, 2)
	assert.Equal(t, "hidden", ws.Attrs[0].Key)
	assert.True(t, ws.Attrs[0].Bare)
	assert.Equal(t, "*/", ws.Attrs[1].Value)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		src      string
		pos      Position
		expected string
		msg      string
	}{
		{
			name:     "missing equals",
			src:      "id \"a\"",
			pos:      Position{Line: 1, Column: 4, Offset: 3},
			expected: "'='",
		},
		{
			name: "unterminated pattern",
			src:  "a = \"abc\nb = \"x\"",
			pos:  Position{Line: 1, Column: 5, Offset: 4},
			msg:  "unterminated pattern",
		},
		{
			name:     "missing pattern",
			src:      "a = b",
			pos:      Position{Line: 1, Column: 5, Offset: 4},
			expected: "quoted pattern",
		},
		{
			name:     "bad attribute list",
			src:      "a<id=1 hidden> = \"x\"",
			pos:      Position{Line: 1, Column: 8, Offset: 7},
			expected: "',' or '>'",
		},
		{
			name: "bad value",
			src:  "@options namespace=Demo",
			pos:  Position{Line: 1, Column: 20, Offset: 19},
			msg:  "invalid value Demo",
		},
		{
			name: "unknown directive",
			src:  "@include \"x\"",
			pos:  Position{Line: 1, Column: 1, Offset: 0},
			msg:  "unknown directive @include",
		},
		{
			name: "unterminated comment",
			src:  "\n  /* never closed",
			pos:  Position{Line: 2, Column: 3, Offset: 3},
			msg:  "unterminated comment",
		},
		{
			name:     "stray symbol",
			src:      "a = \"x\"\n= \"y\"",
			pos:      Position{Line: 2, Column: 1, Offset: 8},
			expected: "rule name or @options",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.src))
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.pos, perr.Pos)
			assert.Equal(t, tt.expected, perr.Expected)
			assert.Equal(t, tt.msg, perr.Msg)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte("// nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, f.Rules)
	assert.Empty(t, f.Options)
}
