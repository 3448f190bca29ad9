// Package emit renders scanner tables as Go source.
package emit

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/gnolang/tlex/internal/rules"
	"github.com/gnolang/tlex/scan"
)

const (
	scanPath = "github.com/gnolang/tlex/scan"

	// Header marks the emitted files as generated.
	Header = "Code generated by tlex. DO NOT EDIT."

	DefaultPackage = "lexer"
	DefaultClass   = "Scanner"

	perLine = 16
)

var ErrInvalidName = errors.New("invalid identifier")

// Config names the emitted code.
type Config struct {
	Package  string // defaults to DefaultPackage
	Class    string // prefix of the exported names
	Source   string // rule file, shown in the header
	Options  []string
	CodePage string // decode input from this encoding by default
	Info     bool   // add the source and options to the header
}

// ClassName derives an exported name from a file name: "calc_lexer.go"
// gives "CalcLexer".
func ClassName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	name := Exported(base)
	if name == "" {
		return DefaultClass
	}
	return name
}

// Exported turns a rule or file name into an exported Go identifier.
func Exported(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteByte('X')
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unexported(s string) string {
	for i, r := range s {
		return string(unicode.ToLower(r)) + s[i+len(string(r)):]
	}
	return s
}

// Generate renders the scanner for set as a formatted Go file. The
// output only depends on its inputs.
func Generate(cfg Config, set *rules.Set, t *scan.Tables) ([]byte, error) {
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	if cfg.Class == "" {
		cfg.Class = DefaultClass
	}
	if !token.IsIdentifier(cfg.Package) {
		return nil, fmt.Errorf("%w: package %q", ErrInvalidName, cfg.Package)
	}
	if !token.IsIdentifier(cfg.Class) || !token.IsExported(cfg.Class) {
		return nil, fmt.Errorf("%w: class %q must be an exported identifier", ErrInvalidName, cfg.Class)
	}

	f := jen.NewFile(cfg.Package)
	f.HeaderComment(Header)
	if cfg.Info {
		if cfg.Source != "" {
			f.HeaderComment("Source: " + filepath.ToSlash(cfg.Source))
		}
		if len(cfg.Options) > 0 {
			f.HeaderComment("Options: " + strings.Join(cfg.Options, ", "))
		}
		f.HeaderComment(fmt.Sprintf("States: %d, symbol classes: %d.", len(t.Rows), t.Classes))
	}

	symbols(f, cfg.Class, set)
	f.Line()

	tablesVar := unexported(cfg.Class) + "Tables"
	f.Var().Id(tablesVar).Op("=").Op("&").Qual(scanPath, "Tables").Custom(multi(), tableFields(t)...)
	f.Line()

	constructors(f, cfg, tablesVar)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return buf.Bytes(), nil
}

func symbols(f *jen.File, class string, set *rules.Set) {
	f.Comment(fmt.Sprintf("Token symbols returned by %s scanners.", class))
	defs := []jen.Code{
		jen.Id(class + "End").Op("=").Qual(scanPath, "EndSymbol"),
		jen.Id(class + "Error").Op("=").Qual(scanPath, "ErrorSymbol"),
	}
	used := map[string]bool{class + "End": true, class + "Error": true}
	for _, r := range set.User() {
		name := class + Exported(r.Name)
		if used[name] {
			name = fmt.Sprintf("%s%d", name, r.ID)
		}
		used[name] = true
		defs = append(defs, jen.Id(name).Op("=").Lit(r.ID))
	}
	f.Const().Defs(defs...)
}

func constructors(f *jen.File, cfg Config, tablesVar string) {
	opts := jen.Id("opts").Op("...")
	var prelude []jen.Code
	if cfg.CodePage != "" {
		prelude = append(prelude,
			jen.Id("opts").Op("=").Append(
				jen.Index().Qual(scanPath, "Option").Values(jen.Qual(scanPath, "WithEncoding").Call(jen.Lit(cfg.CodePage))),
				opts,
			),
		)
	}

	f.Comment(fmt.Sprintf("New%s returns a scanner reading r.", cfg.Class))
	f.Func().Id("New"+cfg.Class).Params(
		jen.Id("r").Qual("io", "Reader"),
		jen.Id("opts").Op("...").Qual(scanPath, "Option"),
	).Op("*").Qual(scanPath, "Scanner").Block(
		append(prelude, jen.Return(jen.Qual(scanPath, "New").Call(jen.Id(tablesVar), jen.Id("r"), opts)))...,
	)
	f.Line()

	f.Comment(fmt.Sprintf("Open%s returns a scanner reading the file at path. The file is closed", cfg.Class))
	f.Comment("once the end token has been returned, or by Close.")
	f.Func().Id("Open"+cfg.Class).Params(
		jen.Id("path").String(),
		jen.Id("opts").Op("...").Qual(scanPath, "Option"),
	).Params(jen.Op("*").Qual(scanPath, "Scanner"), jen.Error()).Block(
		append(prelude, jen.Return(jen.Qual(scanPath, "Open").Call(jen.Id(tablesVar), jen.Id("path"), opts)))...,
	)
}

func multi() jen.Options {
	return jen.Options{Open: "{", Close: "}", Separator: ",", Multi: true}
}

func field(name string, value jen.Code) jen.Code {
	return jen.Id(name).Op(":").Add(value)
}

func tableFields(t *scan.Tables) []jen.Code {
	var out []jen.Code
	if t.Unicode {
		out = append(out, field("Unicode", jen.True()))
	}
	out = append(out,
		field("Classes", jen.Lit(t.Classes)),
		field("Map", jen.Qual(scanPath, "ClassMap").Custom(multi(), classMap(t.Map)...)),
		field("Rows", jen.Index().Qual(scanPath, "Row").Custom(multi(), rows(t.Rows)...)),
		field("Accept", int32Slice(t.Accept)),
		field("Starts", int32Slice(t.Starts)),
		field("Modes", stringSlice(t.Modes)),
		field("Actions", jen.Index().Qual(scanPath, "Action").Custom(multi(), actions(t.Actions)...)),
	)
	if t.Backup {
		out = append(out, field("Backup", jen.True()))
	}
	return out
}

func classMap(m scan.ClassMap) []jen.Code {
	if m.Dense != nil {
		return []jen.Code{field("Dense", uint16Slice(m.Dense))}
	}
	entries := make([]jen.Code, 0, len(m.Entries))
	for _, e := range m.Entries {
		items := []jen.Code{field("Start", jen.Lit(int(e.Start))), field("Run", jen.Lit(int(e.Run)))}
		if e.Table != nil {
			items = append(items, field("Table", uint16Slice(e.Table)))
		} else {
			items = append(items, field("Default", jen.Lit(int(e.Default))))
		}
		if len(e.Overrides) > 0 {
			overrides := make([]jen.Code, 0, len(e.Overrides))
			for _, o := range e.Overrides {
				overrides = append(overrides, jen.Values(field("Symbol", jen.Lit(int(o.Symbol))), field("Class", jen.Lit(int(o.Class)))))
			}
			items = append(items, field("Overrides", jen.Index().Qual(scanPath, "Override").Values(overrides...)))
		}
		entries = append(entries, jen.Values(items...))
	}
	return []jen.Code{field("Entries", jen.Index().Qual(scanPath, "MapEntry").Custom(multi(), entries...))}
}

func rows(rs []scan.Row) []jen.Code {
	out := make([]jen.Code, 0, len(rs))
	for _, r := range rs {
		var items []jen.Code
		if r.Min != 0 {
			items = append(items, field("Min", jen.Lit(int(r.Min))))
		}
		if r.Len != 0 {
			items = append(items, field("Len", jen.Lit(int(r.Len))))
		}
		items = append(items, field("Default", jen.Lit(int(r.Default))))
		if r.Next != nil {
			items = append(items, field("Next", jen.Index().Int32().Values(ints32(r.Next)...)))
		}
		if r.Pairs != nil {
			pairs := make([]jen.Code, 0, len(r.Pairs))
			for _, p := range r.Pairs {
				pairs = append(pairs, jen.Values(field("Class", jen.Lit(int(p.Class))), field("To", jen.Lit(int(p.To)))))
			}
			items = append(items, field("Pairs", jen.Index().Qual(scanPath, "Pair").Values(pairs...)))
		}
		out = append(out, jen.Values(items...))
	}
	return out
}

var modeNames = map[scan.ModeOp]string{
	scan.ModeBegin: "ModeBegin",
	scan.ModePush:  "ModePush",
	scan.ModePop:   "ModePop",
}

func actions(as []scan.Action) []jen.Code {
	out := make([]jen.Code, 0, len(as))
	for _, a := range as {
		items := []jen.Code{field("Symbol", jen.Lit(a.Symbol)), field("Name", jen.Lit(a.Name))}
		if a.Hidden {
			items = append(items, field("Hidden", jen.True()))
		}
		if a.BlockEnd != "" {
			items = append(items, field("BlockEnd", jen.Lit(a.BlockEnd)))
		}
		if name, ok := modeNames[a.Mode]; ok {
			items = append(items, field("Mode", jen.Qual(scanPath, name)))
			if a.Mode != scan.ModePop {
				items = append(items, field("Target", jen.Lit(a.Target)))
			}
		}
		out = append(out, jen.Values(items...))
	}
	return out
}

func ints32(xs []int32) []jen.Code {
	out := make([]jen.Code, len(xs))
	for i, x := range xs {
		out[i] = jen.Lit(int(x))
	}
	return out
}

func int32Slice(xs []int32) jen.Code {
	return jen.Index().Int32().Values(ints32(xs)...)
}

func stringSlice(xs []string) jen.Code {
	items := make([]jen.Code, len(xs))
	for i, x := range xs {
		items[i] = jen.Lit(x)
	}
	return jen.Index().String().Values(items...)
}

// uint16Slice renders long tables with a fixed number of values per line.
func uint16Slice(xs []uint16) jen.Code {
	if len(xs) <= perLine {
		items := make([]jen.Code, len(xs))
		for i, x := range xs {
			items[i] = jen.Lit(int(x))
		}
		return jen.Index().Uint16().Values(items...)
	}
	var lines []jen.Code
	for lo := 0; lo < len(xs); lo += perLine {
		hi := min(lo+perLine, len(xs))
		items := make([]jen.Code, 0, hi-lo)
		for _, x := range xs[lo:hi] {
			items = append(items, jen.Lit(int(x)))
		}
		lines = append(lines, jen.List(items...))
	}
	return jen.Index().Uint16().Custom(multi(), lines...)
}
