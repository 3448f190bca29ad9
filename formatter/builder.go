package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"

	tt "github.com/gnolang/tlex/internal/types"
)

const tabWidth = 8

// rule set
const (
	UnmatchedRule  = "unmatched-rule"
	DuplicateID    = "duplicate-id"
	InvalidPattern = "invalid-pattern"
	SyntaxError    = "syntax"
	InvalidOption  = "invalid-option"
)

// pointRules locate a single symbol, so they are marked with a caret. The
// other rules point at the start of a rule and underline its name.
var pointRules = map[string]bool{
	InvalidPattern: true,
	SyntaxError:    true,
	InvalidOption:  true,
}

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// issueFormatter is the interface that wraps the IssueTemplate method.
// The template is executed with an *issueView.
type issueFormatter interface {
	IssueTemplate() string
}

func getIssueFormatter(rule string) issueFormatter {
	switch rule {
	case UnmatchedRule:
		return &UnmatchedRuleFormatter{}
	case DuplicateID:
		return &DuplicateIDFormatter{}
	default:
		return &GeneralIssueFormatter{}
	}
}

var templateFuncs = template.FuncMap{
	"suggestion": suggestion,
	"note":       note,
}

// GenerateFormattedIssue formats diagnostics into a human-readable string
// with the offending rule file line.
func GenerateFormattedIssue(issues []tt.Diagnostic, code *SourceCode) string {
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString(buildIssue(issue, code, getIssueFormatter(issue.Rule)))
	}
	return b.String()
}

func buildIssue(issue tt.Diagnostic, code *SourceCode, formatter issueFormatter) string {
	tmpl, err := template.New("issue").Funcs(templateFuncs).Parse(formatter.IssueTemplate())
	if err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newIssueView(issue, code)); err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	return buf.String()
}

// issueView is one diagnostic resolved against its source line.
type issueView struct {
	tt.Diagnostic
	line    string // tab expanded
	hasLine bool
	gutter  string // blank line number column
	from    int    // display offsets of the marker, inclusive
	to      int
}

func newIssueView(d tt.Diagnostic, code *SourceCode) *issueView {
	v := &issueView{Diagnostic: d}
	lineNo := d.Start.Line
	v.gutter = strings.Repeat(" ", len(fmt.Sprint(lineNo))+1)
	if code == nil || lineNo < 1 || lineNo > len(code.Lines) {
		return v
	}

	raw := code.Lines[lineNo-1]
	v.line = expandTabs(raw)
	v.hasLine = true
	v.from = visualColumn(raw, d.Start.Column)
	v.to = v.from

	switch {
	case d.End.Line == lineNo && d.End.Column > d.Start.Column:
		v.to = visualColumn(raw, d.End.Column)
	case d.End.Line > lineNo:
		v.to = len([]rune(v.line)) - 1
	case !pointRules[d.Rule]:
		if n := identLen(raw, d.Start.Column); n > 1 {
			v.to = visualColumn(raw, d.Start.Column+n-1)
		}
	}
	if v.to < v.from {
		v.to = v.from
	}
	return v
}

// Header prints the severity, the rule and the location.
func (v *issueView) Header() string {
	var s string
	switch v.Severity {
	case tt.SeverityError:
		s = errorStyle.Sprint("error: ")
	case tt.SeverityWarning:
		s = warningStyle.Sprint("warning: ")
	}
	s += ruleStyle.Sprintf("%s\n", v.Rule)
	s += lineStyle.Sprintf("%s--> ", v.gutter[1:])
	if v.Start.Line > 0 {
		return s + fileStyle.Sprintf("%s:%d:%d", v.Filename, v.Start.Line, v.Start.Column)
	}
	return s + fileStyle.Sprint(v.Filename)
}

// Snippet prints the numbered source line, if there is one.
func (v *issueView) Snippet() string {
	s := lineStyle.Sprintf("%s|\n", v.gutter)
	if v.hasLine {
		s += lineStyle.Sprintf("%d | %s\n", v.Start.Line, v.line)
	}
	return s
}

// Marker prints the caret or underline below the snippet, then the
// message. Without a source line only the message is printed.
func (v *issueView) Marker() string {
	s := lineStyle.Sprintf("%s| ", v.gutter)
	if !v.hasLine {
		return s + messageStyle.Sprintf("%s\n", v.Message)
	}
	mark := "~"
	if pointRules[v.Rule] && v.from == v.to {
		mark = "^"
	}
	s += strings.Repeat(" ", v.from)
	s += messageStyle.Sprintf("%s\n", strings.Repeat(mark, v.to-v.from+1))
	s += lineStyle.Sprintf("%s= ", v.gutter)
	return s + messageStyle.Sprintf("%s\n", v.Message)
}

func suggestion(text string) string {
	if text == "" {
		return ""
	}
	return suggestionStyle.Sprint("Suggestion: ") + lineStyle.Sprintf("%s\n", text)
}

func note(text string) string {
	if text == "" {
		return ""
	}
	return suggestionStyle.Sprint("Note: ") + lineStyle.Sprintf("%s\n", text)
}

// visualColumn returns the display offset of the 1-based code point
// column in line, with tab stops every tabWidth.
func visualColumn(line string, column int) int {
	col := 0
	i := 1
	for _, ch := range line {
		if i >= column {
			break
		}
		i++
		if ch == '\t' {
			col += tabWidth - col%tabWidth
		} else {
			col++
		}
	}
	return col
}

func expandTabs(line string) string {
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var b strings.Builder
	col := 0
	for _, ch := range line {
		if ch == '\t' {
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(ch)
		col++
	}
	return b.String()
}

// identLen returns the length in code points of the rule name starting at
// the 1-based column, or 0 if none starts there.
func identLen(line string, column int) int {
	n := 0
	i := 1
	for _, ch := range line {
		if i < column {
			i++
			continue
		}
		if ch != '_' && !('a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || n > 0 && '0' <= ch && ch <= '9') {
			break
		}
		n++
	}
	return n
}
