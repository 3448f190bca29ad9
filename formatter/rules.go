package formatter

// UnmatchedRuleFormatter explains rules shadowed by earlier ones.
type UnmatchedRuleFormatter struct{}

func (f *UnmatchedRuleFormatter) IssueTemplate() string {
	return `{{.Header}}
{{.Snippet}}{{.Marker -}}
{{suggestion "earlier rules win ties; move this rule above the rules that match the same text"}}{{note .Note}}
`
}

type DuplicateIDFormatter struct{}

func (f *DuplicateIDFormatter) IssueTemplate() string {
	return `{{.Header}}
{{.Snippet}}{{.Marker}}{{note .Note -}}
{{suggestion "give one rule another id, or drop its id to have one assigned"}}
`
}
