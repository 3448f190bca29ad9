package diag

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/tlex/internal/types"
)

func TestCollector(t *testing.T) {
	t.Parallel()
	c := New("rules.rl")
	assert.False(t, c.Errors())

	c.Warnf("unmatched-rule", token.Position{Line: 4, Column: 1}, "rule %q never matches", "kw")
	assert.False(t, c.Errors(), "warnings must not gate the pipeline")

	c.Errorf("duplicate-id", token.Position{Line: 2, Column: 3}, "duplicate id %d", 3)
	c.Errorf("syntax", token.Position{Line: 2, Column: 1}, "bad pattern")
	assert.True(t, c.Errors())

	errs, warns := c.Counts()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 1, warns)

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "syntax", all[0].Rule)
	assert.Equal(t, "duplicate-id", all[1].Rule)
	assert.Equal(t, "unmatched-rule", all[2].Rule)
	assert.Equal(t, "rules.rl", all[1].Filename)
	assert.Equal(t, all[1].Start, all[1].End)
	assert.Equal(t, tt.SeverityWarning, all[2].Severity)
	assert.Equal(t, "rules.rl:2:3: error: duplicate id 3", all[1].String())
}
