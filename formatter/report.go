package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/tlex/generate"
	tt "github.com/gnolang/tlex/internal/types"
)

// Report writes diagnostics in the msbuild format read by editors and
// build tools: file(line,col): error code: message.
func Report(w io.Writer, diags []tt.Diagnostic) error {
	for _, d := range diags {
		if _, err := fmt.Fprintln(w, msbuild(d)); err != nil {
			return err
		}
	}
	return nil
}

func msbuild(d tt.Diagnostic) string {
	severity := strings.ToLower(d.Severity.String())
	if d.Start.Line == 0 {
		return fmt.Sprintf("%s: %s %s: %s", d.Filename, severity, d.Rule, d.Message)
	}
	return fmt.Sprintf("%s(%d,%d): %s %s: %s", d.Filename, d.Start.Line, d.Start.Column, severity, d.Rule, d.Message)
}

// Summary writes the statistics of one generator run.
func Summary(w io.Writer, res *generate.Result) error {
	s := res.Stats
	errs, warnings := res.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "tlex summary for %s\n", res.Filename)
	fmt.Fprintf(&b, "  rules: %d, start conditions: %d\n", s.Rules, s.Modes)
	if res.Tables != nil {
		alphabet := "bytes"
		if res.Tables.Unicode {
			alphabet = "unicode"
		}
		fmt.Fprintf(&b, "  alphabet: %s, symbol classes: %d\n", alphabet, s.Classes)
		fmt.Fprintf(&b, "  nfa states: %d, dfa states: %d, final states: %d\n", s.NFAStates, s.DFAStates, s.States)
		if res.Tables.Map.Dense != nil {
			fmt.Fprintf(&b, "  class map: %d dense entries\n", s.MapEntries)
		} else {
			fmt.Fprintf(&b, "  class map: %d compressed entries\n", s.MapEntries)
		}
		fmt.Fprintf(&b, "  next-state table: %d entries\n", s.NextEntries)
		if s.Backup {
			fmt.Fprintf(&b, "  backup: needed\n")
		}
	}
	fmt.Fprintf(&b, "  errors: %d, warnings: %d\n", errs, warnings)
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "  elapsed: %d msec\n", s.Elapsed.Milliseconds())
	}
	_, err := io.WriteString(w, b.String())
	return err
}
