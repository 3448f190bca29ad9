// Package rules turns rule definitions into compiled, prioritized rules.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/token"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/diag"
	"github.com/gnolang/tlex/internal/regex"
	"github.com/gnolang/tlex/internal/rulefile"
	tt "github.com/gnolang/tlex/internal/types"
)

// Diagnostic codes reported while compiling rules.
const (
	CodeNoRules       = "no-rules"
	CodeDuplicateID   = "duplicate-id"
	CodeDuplicateRule = "duplicate-rule"
	CodeInvalidID     = "invalid-id"
	CodeAttribute     = "invalid-attribute"
	CodeUnknownAttr   = "unknown-attribute"
	CodePattern       = "invalid-pattern"
	CodeMode          = "invalid-mode"
)

const (
	// InitialMode is the name of start condition 0.
	InitialMode = "INITIAL"
	// ErrorID is the symbol returned by the implicit catch-all rule.
	ErrorID = -1
)

var ErrNoRules = errors.New("no rules to compile")

// Rule is a compiled rule. It is immutable once Compile returns.
type Rule struct {
	Ordinal     int // declaration order; lower wins ties
	ID          int
	Name        string
	Pattern     string
	Tree        regex.Node
	StartStates []int
	Attrs       []Attr
	Pos         token.Position

	// Implicit marks the catch-all error rule appended after user rules.
	Implicit bool
}

// Hidden reports whether the rule continues scanning instead of
// returning a token.
func (r *Rule) Hidden() bool {
	for _, a := range r.Attrs {
		if _, ok := a.(HiddenAttr); ok {
			return true
		}
	}
	return false
}

// BlockEnd returns the block terminator, or "" for plain rules.
func (r *Rule) BlockEnd() string {
	for _, a := range r.Attrs {
		if b, ok := a.(BlockEndAttr); ok {
			return b.Terminator
		}
	}
	return ""
}

// Mode returns the start condition change of the rule.
func (r *Rule) Mode() ModeAttr {
	for _, a := range r.Attrs {
		if m, ok := a.(ModeAttr); ok {
			return m
		}
	}
	return ModeAttr{}
}

// ActiveIn reports whether the rule is active in start condition mode.
func (r *Rule) ActiveIn(mode int) bool {
	i := sort.SearchInts(r.StartStates, mode)
	return i < len(r.StartStates) && r.StartStates[i] == mode
}

// Config carries the options that influence rule compilation.
type Config struct {
	Filename string
	Unicode  bool
	FoldCase bool
	Stack    bool
}

func (c Config) cardinality() int {
	if c.Unicode {
		return charset.UnicodeCardinality
	}
	return charset.ByteCardinality
}

// Set is the compiled rule set: user rules in declaration order followed
// by the implicit error rule.
type Set struct {
	Rules       []*Rule
	Modes       []string
	Cardinality int
}

// User returns the rules written in the source, without the error rule.
func (s *Set) User() []*Rule {
	if n := len(s.Rules); n > 0 && s.Rules[n-1].Implicit {
		return s.Rules[:n-1]
	}
	return s.Rules
}

// ModeIndex returns the index of a start condition, or -1.
func (s *Set) ModeIndex(name string) int {
	for i, m := range s.Modes {
		if m == name {
			return i
		}
	}
	return -1
}

type compiler struct {
	cfg   Config
	c     *diag.Collector
	set   *Set
	modes map[string]int
}

// Compile validates defs and builds the rule set. Problems are recorded
// in c; the returned set holds every rule that compiled and is usable as
// long as c holds no errors.
func Compile(defs []rulefile.Definition, cfg Config, c *diag.Collector) *Set {
	comp := &compiler{
		cfg:   cfg,
		c:     c,
		set:   &Set{Modes: []string{InitialMode}, Cardinality: cfg.cardinality()},
		modes: map[string]int{InitialMode: 0},
	}
	if len(defs) == 0 {
		c.Errorf(CodeNoRules, token.Position{Filename: cfg.Filename}, "%s", ErrNoRules)
		return comp.set
	}

	type pending struct {
		rule  *Rule
		start StartAttr
	}
	var all []pending
	seen := map[string]token.Position{}
	for i, def := range defs {
		r := &Rule{
			Ordinal: i,
			ID:      -1,
			Name:    def.Name,
			Pattern: def.Pattern,
			Pos:     comp.position(def.Pos),
		}
		if prev, ok := seen[def.Name]; ok {
			c.Errorf(CodeDuplicateRule, r.Pos, "rule %q already defined at %d:%d", def.Name, prev.Line, prev.Column)
		} else {
			seen[def.Name] = r.Pos
		}
		start := comp.attrs(r, def.Attrs)
		r.Tree = comp.pattern(def)
		comp.set.Rules = append(comp.set.Rules, r)
		all = append(all, pending{r, start})
	}

	for _, p := range all {
		comp.checkModeTarget(p.rule)
	}
	for _, p := range all {
		p.rule.StartStates = comp.resolveStart(p.rule, p.start)
	}
	comp.assignIDs()
	comp.appendErrorRule()
	return comp.set
}

func (comp *compiler) position(p rulefile.Position) token.Position {
	return token.Position{Filename: comp.cfg.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// attrs converts the written attributes into variants. The start
// attribute is returned separately; it is resolved once every mode name
// is known.
func (comp *compiler) attrs(r *Rule, pairs []rulefile.Pair) StartAttr {
	var start StartAttr
	hasMode := false
	for _, p := range pairs {
		pos := comp.position(p.Pos)
		switch strings.ToLower(p.Key) {
		case "id":
			id, ok := intValue(p.Value)
			if !ok || id < 0 {
				comp.c.Errorf(CodeInvalidID, pos, "id of rule %q must be a non-negative integer, got %v", r.Name, p.Value)
				continue
			}
			r.Attrs = append(r.Attrs, IDAttr{ID: id})
		case "hidden":
			b, ok := p.Value.(bool)
			if !ok {
				comp.c.Errorf(CodeAttribute, pos, "hidden must be a boolean")
				continue
			}
			if b {
				r.Attrs = append(r.Attrs, HiddenAttr{})
			}
		case "blockend":
			s, ok := p.Value.(string)
			if !ok || s == "" {
				comp.c.Errorf(CodeAttribute, pos, "blockEnd must be a non-empty string")
				continue
			}
			r.Attrs = append(r.Attrs, BlockEndAttr{Terminator: s})
		case "start":
			s, ok := p.Value.(string)
			if !ok || strings.TrimSpace(s) == "" {
				comp.c.Errorf(CodeAttribute, pos, "start must be a list of start condition names")
				continue
			}
			start = comp.parseStart(s)
			r.Attrs = append(r.Attrs, start)
		case "begin", "push", "pop":
			m, ok := comp.modeAttr(strings.ToLower(p.Key), p, pos)
			if !ok {
				continue
			}
			if hasMode {
				comp.c.Errorf(CodeMode, pos, "rule %q changes the start condition more than once", r.Name)
				continue
			}
			hasMode = true
			r.Attrs = append(r.Attrs, m)
		default:
			comp.c.Warnf(CodeUnknownAttr, pos, "unknown attribute %q on rule %q is ignored", p.Key, r.Name)
			r.Attrs = append(r.Attrs, UnknownAttr{Key: p.Key, Value: p.Value})
		}
	}
	return start
}

func (comp *compiler) modeAttr(key string, p rulefile.Pair, pos token.Position) (ModeAttr, bool) {
	if key != "begin" && !comp.cfg.Stack {
		comp.c.Errorf(CodeMode, pos, "%s requires the stack option", key)
		return ModeAttr{}, false
	}
	if key == "pop" {
		b, ok := p.Value.(bool)
		if !ok {
			comp.c.Errorf(CodeAttribute, pos, "pop must be a boolean")
			return ModeAttr{}, false
		}
		return ModeAttr{Op: ModePop}, b
	}
	target, ok := p.Value.(string)
	if !ok || target == "" {
		comp.c.Errorf(CodeAttribute, pos, "%s must name a start condition", key)
		return ModeAttr{}, false
	}
	op := ModeBegin
	if key == "push" {
		op = ModePush
	}
	comp.mode(target)
	return ModeAttr{Op: op, Target: target}, true
}

func (comp *compiler) parseStart(s string) StartAttr {
	if strings.TrimSpace(s) == "*" {
		return StartAttr{All: true}
	}
	var out StartAttr
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		comp.mode(name)
		out.States = append(out.States, name)
	}
	return out
}

func (comp *compiler) mode(name string) int {
	if i, ok := comp.modes[name]; ok {
		return i
	}
	i := len(comp.set.Modes)
	comp.modes[name] = i
	comp.set.Modes = append(comp.set.Modes, name)
	return i
}

func (comp *compiler) resolveStart(r *Rule, start StartAttr) []int {
	if start.All {
		out := make([]int, len(comp.set.Modes))
		for i := range out {
			out[i] = i
		}
		return out
	}
	if len(start.States) == 0 {
		return []int{0}
	}
	var out []int
	for _, name := range start.States {
		out = append(out, comp.modes[name])
	}
	sort.Ints(out)
	return dedup(out)
}

// checkModeTarget warns about a mode switch into a start condition that
// no rule is declared in.
func (comp *compiler) checkModeTarget(r *Rule) {
	m := r.Mode()
	if m.Op != ModeBegin && m.Op != ModePush || m.Target == InitialMode {
		return
	}
	for _, a := range comp.set.Rules {
		for _, attr := range a.Attrs {
			if s, ok := attr.(StartAttr); ok && (s.All || contains(s.States, m.Target)) {
				return
			}
		}
	}
	comp.c.Warnf(CodeMode, r.Pos, "start condition %q of rule %q has no rules", m.Target, r.Name)
}

func (comp *compiler) pattern(def rulefile.Definition) regex.Node {
	flags := regex.Flags{Cardinality: comp.cfg.cardinality(), FoldCase: comp.cfg.FoldCase}
	tree, err := regex.Parse(def.Pattern, flags)
	if err == nil {
		return tree
	}
	pos := comp.position(def.PatternPos)
	var serr *regex.SyntaxError
	if errors.As(err, &serr) {
		pos.Offset += serr.Offset
		pos.Column += utf8.RuneCountInString(def.Pattern[:serr.Offset])
		comp.c.Errorf(CodePattern, pos, "rule %q: %s", def.Name, serr.Message)
	} else {
		comp.c.Errorf(CodePattern, pos, "rule %q: %v", def.Name, err)
	}
	return nil
}

// assignIDs validates explicit ids and gives every other rule the lowest
// integer not taken by an explicit id, in rule order.
func (comp *compiler) assignIDs() {
	owner := map[int]*Rule{}
	for _, r := range comp.set.Rules {
		for _, a := range r.Attrs {
			id, ok := a.(IDAttr)
			if !ok {
				continue
			}
			if prev, dup := owner[id.ID]; dup {
				comp.c.Add(duplicateID(id.ID, prev, r))
				continue
			}
			owner[id.ID] = r
			r.ID = id.ID
		}
	}

	next := 0
	for _, r := range comp.set.Rules {
		if r.ID >= 0 {
			continue
		}
		for owner[next] != nil {
			next++
		}
		r.ID = next
		owner[next] = r
	}
}

func duplicateID(id int, first, second *Rule) tt.Diagnostic {
	return tt.Diagnostic{
		Rule:     CodeDuplicateID,
		Severity: tt.SeverityError,
		Message: fmt.Sprintf("duplicate id %d: rule %q at %d:%d and rule %q at %d:%d",
			id, first.Name, first.Pos.Line, first.Pos.Column, second.Name, second.Pos.Line, second.Pos.Column),
		Note:  fmt.Sprintf("id %d was first given to rule %q", id, first.Name),
		Start: second.Pos,
	}
}

// ErrorSet is the symbol set of the implicit error rule: any symbol but
// a newline.
func ErrorSet(cardinality int) charset.Set {
	return charset.Single('\n').Complement(cardinality)
}

func (comp *compiler) appendErrorRule() {
	states := make([]int, len(comp.set.Modes))
	for i := range states {
		states[i] = i
	}
	comp.set.Rules = append(comp.set.Rules, &Rule{
		Ordinal:     len(comp.set.Rules),
		ID:          ErrorID,
		Name:        "error",
		Pattern:     ".",
		Tree:        regex.NewSet(ErrorSet(comp.set.Cardinality)),
		StartStates: states,
		Implicit:    true,
	})
}

// FindClasses partitions the alphabet by every leaf set of every rule.
// With classes disabled each byte is its own class.
func FindClasses(s *Set, classes bool) *charset.Partition {
	if !classes && s.Cardinality == charset.ByteCardinality {
		return charset.Identity(s.Cardinality)
	}
	p := charset.New(s.Cardinality)
	for _, r := range s.Rules {
		if r.Tree == nil {
			continue
		}
		for _, set := range regex.Sets(r.Tree) {
			p.Refine(set)
		}
	}
	return p
}

func intValue(v rulefile.Value) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i > 1<<31-1 {
		return 0, false
	}
	return int(i), true
}

func dedup(xs []int) []int {
	var out []int
	for _, x := range xs {
		if len(out) == 0 || out[len(out)-1] != x {
			out = append(out, x)
		}
	}
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
