package types

import (
	"fmt"
	"go/token"
	"strings"
)

// Severity grades a diagnostic. Only errors suppress code emission.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic represents a problem found while compiling a rule file.
type Diagnostic struct {
	Rule     string // short code, e.g. "duplicate-id"
	Severity Severity
	Filename string
	Message  string
	Note     string
	Start    token.Position
	End      token.Position
}

func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

// Position formats the start of the diagnostic as file:line:column.
func (d Diagnostic) Position() string {
	if d.Start.Line == 0 {
		return d.Filename
	}
	return fmt.Sprintf("%s:%d:%d", d.Filename, d.Start.Line, d.Start.Column)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Position(), strings.ToLower(d.Severity.String()), d.Message)
}
