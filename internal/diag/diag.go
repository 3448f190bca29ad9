// Package diag accumulates the diagnostics of one rule file compilation.
package diag

import (
	"fmt"
	"go/token"
	"sort"
	"sync"

	tt "github.com/gnolang/tlex/internal/types"
)

// Collector records errors and warnings. Recording never aborts the
// pipeline; callers check Errors between stages.
type Collector struct {
	mu       sync.Mutex
	filename string
	items    []tt.Diagnostic
	errors   int
	warnings int
}

func New(filename string) *Collector {
	return &Collector{filename: filename}
}

func (c *Collector) Filename() string { return c.filename }

// Add records d, filling in the file name when it is missing.
func (c *Collector) Add(d tt.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d.Filename == "" {
		d.Filename = c.filename
	}
	if d.End.Line == 0 {
		d.End = d.Start
	}
	if d.Severity == tt.SeverityError {
		c.errors++
	} else {
		c.warnings++
	}
	c.items = append(c.items, d)
}

// Errorf records an error at pos.
func (c *Collector) Errorf(rule string, pos token.Position, format string, args ...interface{}) {
	c.Add(tt.Diagnostic{
		Rule:     rule,
		Severity: tt.SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Start:    pos,
	})
}

// Warnf records a warning at pos.
func (c *Collector) Warnf(rule string, pos token.Position, format string, args ...interface{}) {
	c.Add(tt.Diagnostic{
		Rule:     rule,
		Severity: tt.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Start:    pos,
	})
}

// Errors reports whether any error has been recorded.
func (c *Collector) Errors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors > 0
}

// Counts returns the number of errors and warnings recorded so far.
func (c *Collector) Counts() (errors, warnings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors, c.warnings
}

// All returns the diagnostics ordered by position. Diagnostics at the
// same position keep their recording order.
func (c *Collector) All() []tt.Diagnostic {
	c.mu.Lock()
	out := append([]tt.Diagnostic(nil), c.items...)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Start, out[j].Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}
