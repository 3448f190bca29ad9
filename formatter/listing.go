package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/tlex/generate"
	tt "github.com/gnolang/tlex/internal/types"
)

const listingMargin = 7 // width of "%5d  "

// Listing writes the rule source with line numbers. Each diagnostic is
// printed below the line it refers to, with a marker under its column.
func Listing(w io.Writer, res *generate.Result) error {
	lines := NewSourceCode(res.Source).Lines
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	byLine := map[int][]tt.Diagnostic{}
	last := len(lines)
	for _, d := range res.Diagnostics {
		line := d.Start.Line
		if line > last {
			line = last
		}
		byLine[line] = append(byLine[line], d)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "//  tlex listing of %s\n\n", res.Filename)
	for _, d := range byLine[0] {
		fmt.Fprintf(&b, "// %s %s: %s\n", strings.ToLower(d.Severity.String()), d.Rule, d.Message)
	}
	for i, line := range lines {
		fmt.Fprintf(&b, "%5d  %s\n", i+1, expandTabs(line))
		for _, d := range byLine[i+1] {
			col := visualColumn(line, d.Start.Column)
			fmt.Fprintf(&b, "%s^ %s %s: %s\n", strings.Repeat("-", listingMargin+col), strings.ToLower(d.Severity.String()), d.Rule, d.Message)
		}
	}

	errs, warnings := res.Counts()
	fmt.Fprintf(&b, "\n// errors: %d, warnings: %d\n", errs, warnings)
	if res.Options.Summary {
		b.WriteString("\n")
		if err := Summary(&b, res); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
