package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tlex/formatter"
	"github.com/gnolang/tlex/generate"
)

// ErrDiagnostics is returned when a rule file had errors. The errors
// themselves have already been reported.
var ErrDiagnostics = errors.New("errors found in rule files")

var errOutputWithMany = errors.New("--output needs a single rule file")

type optionFlag struct {
	flag   string
	option string
	value  bool
	usage  string
}

// boolOptions are applied in this order. unicode comes first so that the
// options depending on the alphabet see it.
var boolOptions = []optionFlag{
	{"unicode", "unicode", false, "Use the Unicode alphabet instead of bytes"},
	{"classes", "classes", false, "Use character equivalence classes"},
	{"case-insensitive", "caseInsensitive", false, "Match letters regardless of case"},
	{"minimize", "minimize", true, "Minimize the automaton"},
	{"compress-map", "compressMap", false, "Compress the symbol class map"},
	{"compress-next", "compressNext", true, "Compress the next-state table"},
	{"compress", "compress", false, "Compress the class map and the next-state table"},
	{"squeeze", "squeeze", false, "Compress both tables as far as possible"},
	{"stack", "stack", false, "Allow push and pop of start conditions"},
	{"check", "check", false, "Build the tables without writing a scanner"},
	{"parse-only", "parseOnly", false, "Only check the rule file"},
	{"summary", "summary", false, "Print a summary of the generated tables"},
	{"listing", "listing", false, "Write a listing file next to each rule file"},
	{"info", "info", true, "Describe the source and options in the scanner header"},
}

var stringOptions = []struct{ flag, short, usage string }{
	{"output", "o", "Output file, or - for standard output"},
	{"namespace", "", "Package name of the generated scanner"},
	{"class", "", "Prefix of the generated names"},
	{"codepage", "", "Encoding the scanner decodes its input from"},
}

var genCmd = &cobra.Command{
	Use:   "gen [paths...]",
	Short: "Generate scanners from rule files",
	Long: `Generates a Go scanner for every rule file. Directories are searched
for .rl and .lex files.
Example) tlex gen --unicode -o lexer/calc.go calc.rl`,
	RunE: runGen,
}

func init() {
	addOptionFlags(genCmd)
}

func addOptionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	for _, o := range boolOptions {
		flags.Bool(o.flag, o.value, o.usage)
	}
	for _, o := range stringOptions {
		flags.StringP(o.flag, o.short, "", o.usage)
	}
	flags.StringArrayP("option", "O", nil, "Set an option by name, as name or name=value")
	flags.Bool("msbuild", false, "Report diagnostics as file(line,col): severity code: message")
}

func runGen(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("please provide rule files or directories")
	}
	opts, err := readOptions(cmd, cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return newGenerator(cmd, opts).run(ctx, args, opts)
}

// readOptions builds the options of one run: the defaults, then the
// configuration file, then -O options, then the option flags that were set.
func readOptions(cmd *cobra.Command, configPath string) (generate.Options, error) {
	opts := generate.DefaultOptions()

	explicit := configPath != ""
	if !explicit {
		configPath = generate.ConfigFile
	}
	config, err := generate.LoadConfig(configPath)
	switch {
	case err == nil:
		if err := config.Apply(&opts); err != nil {
			return opts, fmt.Errorf("%s: %w", configPath, err)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
	default:
		return opts, err
	}

	flags := cmd.Flags()
	raw, err := flags.GetStringArray("option")
	if err != nil {
		return opts, err
	}
	for _, o := range raw {
		if err := opts.Parse(o); err != nil {
			return opts, err
		}
	}
	for _, o := range boolOptions {
		if !flags.Changed(o.flag) {
			continue
		}
		v, err := flags.GetBool(o.flag)
		if err != nil {
			return opts, err
		}
		if err := opts.Set(o.option, v); err != nil {
			return opts, err
		}
	}
	for _, o := range stringOptions {
		if !flags.Changed(o.flag) {
			continue
		}
		v, err := flags.GetString(o.flag)
		if err != nil {
			return opts, err
		}
		if err := opts.Set(o.flag, v); err != nil {
			return opts, err
		}
	}
	if verbose {
		opts.Verbose = true
	}
	return opts, nil
}

type generator struct {
	logger  *zap.Logger
	stdout  io.Writer
	stderr  io.Writer
	msbuild bool
	process generate.Processor
}

func newGenerator(cmd *cobra.Command, opts generate.Options) *generator {
	l := logger
	if opts.Verbose && !verbose {
		if dev, err := newLogger(true); err == nil {
			l = dev
		}
	}
	msbuild, _ := cmd.Flags().GetBool("msbuild")
	return &generator{
		logger:  l,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
		msbuild: msbuild,
		process: generate.File,
	}
}

// run generates the scanners for paths. It returns ErrDiagnostics when
// any rule file had errors.
func (g *generator) run(ctx context.Context, paths []string, opts generate.Options) error {
	results, err := generate.ProcessPaths(ctx, g.logger, paths, opts, g.process)
	if err != nil {
		return err
	}
	if len(results) > 1 && opts.Output != "" && opts.Output != generate.Stdout {
		return errOutputWithMany
	}

	failed := false
	for _, res := range results {
		if err := g.report(res); err != nil {
			return err
		}
		if res.Errors() {
			failed = true
			continue
		}
		out := generate.OutputPath(res.Filename, res.Options)
		if err := generate.WriteCode(res, out, g.stdout); err != nil {
			return err
		}
		if res.Code != nil && g.logger != nil {
			g.logger.Debug("scanner written", zap.String("file", res.Filename), zap.String("output", out))
		}
	}
	if failed {
		return ErrDiagnostics
	}
	return nil
}

// report prints the diagnostics of res and writes its listing and summary
// when they are wanted.
func (g *generator) report(res *generate.Result) error {
	if len(res.Diagnostics) > 0 {
		if g.msbuild {
			if err := formatter.Report(g.stderr, res.Diagnostics); err != nil {
				return err
			}
		} else {
			code := formatter.NewSourceCode(res.Source)
			fmt.Fprint(g.stderr, formatter.GenerateFormattedIssue(res.Diagnostics, code))
		}
	}

	if res.Options.Listing || len(res.Diagnostics) > 0 {
		var buf bytes.Buffer
		if err := formatter.Listing(&buf, res); err != nil {
			return err
		}
		if err := generate.WriteFile(listingPath(res.Filename), buf.Bytes()); err != nil {
			return err
		}
	}

	if res.Options.Summary {
		w := g.stdout
		if generate.OutputPath(res.Filename, res.Options) == generate.Stdout {
			w = g.stderr
		}
		return formatter.Summary(w, res)
	}
	return nil
}

func listingPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".lst"
}
