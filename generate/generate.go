// Package generate runs the scanner generator pipeline: rule source in,
// Go scanner source out.
package generate

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/dfa"
	"github.com/gnolang/tlex/internal/diag"
	"github.com/gnolang/tlex/internal/emit"
	"github.com/gnolang/tlex/internal/nfa"
	"github.com/gnolang/tlex/internal/rulefile"
	"github.com/gnolang/tlex/internal/rules"
	"github.com/gnolang/tlex/internal/tables"
	tt "github.com/gnolang/tlex/internal/types"
	"github.com/gnolang/tlex/scan"
)

// Diagnostic codes reported by the pipeline itself.
const (
	CodeSyntax     = "syntax"
	CodeOption     = "invalid-option"
	CodeUnmatched  = "unmatched-rule"
	CodeEmptyMatch = "empty-match"
	CodeNoAccept   = "no-accept"
)

// Stats describes the automata and tables built for one rule file.
type Stats struct {
	Rules       int
	Modes       int
	Classes     int
	NFAStates   int
	DFAStates   int // before minimization
	States      int
	MapEntries  int // dense symbols, or class map entries when compressed
	NextEntries int // stored successors over all rows
	Backup      bool
	Elapsed     time.Duration
}

// Result is the outcome of one generator run.
type Result struct {
	Filename    string
	Source      []byte // the rule source
	Options     Options
	Diagnostics []tt.Diagnostic
	Rules       *rules.Set
	Tables      *scan.Tables
	Stats       Stats
	// Code is the emitted scanner. It is nil when errors were found or
	// emission was not asked for.
	Code []byte
}

// Errors reports whether any diagnostic is an error.
func (r *Result) Errors() bool {
	for _, d := range r.Diagnostics {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Counts returns the number of errors and warnings.
func (r *Result) Counts() (errs, warnings int) {
	for _, d := range r.Diagnostics {
		if d.IsError() {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// File reads and compiles the rule file at path.
func File(ctx context.Context, logger *zap.Logger, path string, opts Options) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	return Source(ctx, logger, path, src, opts)
}

// Source compiles the rule source src. Problems with the rules are
// returned as diagnostics in the result; the error is reserved for
// cancellation and failures of the generator itself.
func Source(ctx context.Context, logger *zap.Logger, filename string, src []byte, opts Options) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("file", filename))
	begin := time.Now()

	p := &pipeline{
		ctx:    ctx,
		log:    log,
		c:      diag.New(filename),
		result: &Result{Filename: filename, Source: src},
	}
	err := p.run(src, opts)
	p.result.Diagnostics = p.c.All()
	p.result.Stats.Elapsed = time.Since(begin)
	if err != nil {
		return nil, err
	}
	errs, warnings := p.c.Counts()
	log.Debug("done", zap.Int("errors", errs), zap.Int("warnings", warnings), zap.Duration("elapsed", p.result.Stats.Elapsed))
	return p.result, nil
}

type pipeline struct {
	ctx    context.Context
	log    *zap.Logger
	c      *diag.Collector
	result *Result
}

func (p *pipeline) run(src []byte, opts Options) error {
	f, err := rulefile.Parse(src)
	if err != nil {
		var perr *rulefile.Error
		if !errors.As(err, &perr) {
			return err
		}
		p.c.Errorf(CodeSyntax, p.position(perr.Pos), "%s", syntaxMessage(perr))
		p.result.Options = opts
		return nil
	}

	for _, o := range f.Options {
		if err := opts.Set(o.Key, o.Value); err != nil {
			p.c.Errorf(CodeOption, p.position(o.Pos), "%v", err)
		}
	}
	opts.Lock()
	p.result.Options = opts
	if p.c.Errors() {
		return nil
	}
	p.log.Debug("parsed", zap.Int("rules", len(f.Rules)), zap.Int("options", len(f.Options)))

	set := rules.Compile(f.Rules, rules.Config{
		Filename: p.c.Filename(),
		Unicode:  opts.Unicode,
		FoldCase: opts.CaseInsensitive,
		Stack:    opts.Stack,
	}, p.c)
	p.result.Rules = set
	p.result.Stats.Rules = len(set.User())
	p.result.Stats.Modes = len(set.Modes)
	if p.c.Errors() || opts.ParseOnly {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}

	part := rules.FindClasses(set, opts.Classes)
	automaton := nfa.Build(set, part)
	p.log.Debug("nfa built", zap.Int("classes", part.Len()), zap.Int("states", len(automaton.States)))

	d := dfa.Convert(automaton)
	p.result.Stats.NFAStates = len(automaton.States)
	p.result.Stats.DFAStates = len(d.States)
	p.log.Debug("dfa built", zap.Int("states", len(d.States)))
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if opts.Minimize {
		d.Minimize()
		p.log.Debug("dfa minimized", zap.Int("states", len(d.States)))
	}
	p.check(set, d)

	t := tables.Build(d, part, set, opts.Tables())
	p.result.Tables = t
	p.measure(t, part)
	p.log.Debug("tables built", zap.Int("map", p.result.Stats.MapEntries), zap.Int("next", p.result.Stats.NextEntries))
	if opts.Check {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}

	code, err := emit.Generate(emit.Config{
		Package:  opts.Namespace,
		Class:    className(opts, p.c.Filename()),
		Source:   filepath.Base(p.c.Filename()),
		Options:  opts.Summarize(),
		CodePage: opts.CodePage,
		Info:     opts.Info,
	}, set, t)
	if err != nil {
		return err
	}
	p.result.Code = code
	return nil
}

// check reports rules that can never produce a token.
func (p *pipeline) check(set *rules.Set, d *dfa.DFA) {
	user := len(set.User())
	unmatched := d.Unmatched(user)
	if !d.Accepting() || len(unmatched) == user {
		p.c.Warnf(CodeNoAccept, token.Position{Filename: p.c.Filename()}, "no rule can ever match; the scanner only returns errors")
		return
	}
	for _, o := range unmatched {
		r := set.Rules[o]
		p.c.Warnf(CodeUnmatched, r.Pos, "rule %q never matches; earlier rules take all of its input", r.Name)
	}
	for _, o := range d.EmptyMatches() {
		r := set.Rules[o]
		p.c.Warnf(CodeEmptyMatch, r.Pos, "rule %q matches the empty string, which is never returned", r.Name)
	}
}

func (p *pipeline) measure(t *scan.Tables, part *charset.Partition) {
	s := &p.result.Stats
	s.Classes = part.Len()
	s.States = len(t.Rows)
	s.Backup = t.Backup
	if t.Map.Dense != nil {
		s.MapEntries = len(t.Map.Dense)
	} else {
		s.MapEntries = len(t.Map.Entries)
	}
	for _, r := range t.Rows {
		s.NextEntries += len(r.Next) + len(r.Pairs)
	}
}

func (p *pipeline) position(pos rulefile.Position) token.Position {
	return token.Position{Filename: p.c.Filename(), Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}

func syntaxMessage(e *rulefile.Error) string {
	if e.Expected != "" {
		return "expected " + e.Expected
	}
	return e.Msg
}

// className picks the prefix of the emitted names: the class option, or
// one derived from the output file, or from the rule file.
func className(opts Options, filename string) string {
	if opts.Class != "" {
		return opts.Class
	}
	if opts.Output != "" && opts.Output != "-" {
		return emit.ClassName(opts.Output)
	}
	return emit.ClassName(filename)
}
