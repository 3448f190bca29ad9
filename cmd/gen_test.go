package cmd

import (
	"bytes"
	"context"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/tlex/generate"
	tt "github.com/gnolang/tlex/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, logger *zap.Logger, path string, opts generate.Options) (*generate.Result, error) {
	args := m.Called(path)
	res, _ := args.Get(0).(*generate.Result)
	return res, args.Error(1)
}

func createTempFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("id = \"[a-z]+\"\n"), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func newTestGenerator(p *mockProcessor) (*generator, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &generator{
		logger:  zap.NewNop(),
		stdout:  &stdout,
		stderr:  &stderr,
		process: p.Process,
	}, &stdout, &stderr
}

func TestGeneratorWritesCode(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "calc.rl")

	p := new(mockProcessor)
	p.On("Process", paths[0]).Return(&generate.Result{
		Filename: paths[0],
		Options:  generate.DefaultOptions(),
		Code:     []byte("package lexer\n"),
	}, nil)
	g, stdout, stderr := newTestGenerator(p)

	require.NoError(t, g.run(context.Background(), paths, generate.DefaultOptions()))
	p.AssertExpectations(t)

	code, err := os.ReadFile(filepath.Join(filepath.Dir(paths[0]), "calc.go"))
	require.NoError(t, err)
	assert.Equal(t, "package lexer\n", string(code))
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
	assert.NoFileExists(t, filepath.Join(filepath.Dir(paths[0]), "calc.lst"))
}

func TestGeneratorReportsErrors(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "dup.rl")
	src := []byte("id = \"a\"\nid = \"b\"\n")

	res := &generate.Result{
		Filename: paths[0],
		Source:   src,
		Options:  generate.DefaultOptions(),
		Diagnostics: []tt.Diagnostic{{
			Rule:     "duplicate-rule",
			Severity: tt.SeverityError,
			Filename: paths[0],
			Start:    token.Position{Line: 2, Column: 1},
			Message:  `rule "id" already defined at 1:1`,
		}},
	}

	for _, msbuild := range []bool{false, true} {
		p := new(mockProcessor)
		p.On("Process", paths[0]).Return(res, nil)
		g, _, stderr := newTestGenerator(p)
		g.msbuild = msbuild

		err := g.run(context.Background(), paths, generate.DefaultOptions())
		assert.ErrorIs(t, err, ErrDiagnostics)
		if msbuild {
			assert.Equal(t, paths[0]+`(2,1): error duplicate-rule: rule "id" already defined at 1:1`+"\n", stderr.String())
		} else {
			assert.Contains(t, stderr.String(), "error: duplicate-rule")
			assert.Contains(t, stderr.String(), `2 | id = "b"`)
		}
	}

	dir := filepath.Dir(paths[0])
	assert.NoFileExists(t, filepath.Join(dir, "dup.go"))
	listing, err := os.ReadFile(filepath.Join(dir, "dup.lst"))
	require.NoError(t, err)
	assert.Contains(t, string(listing), "-------^ error duplicate-rule")
	assert.Contains(t, string(listing), "// errors: 1, warnings: 0")
}

func TestGeneratorStdoutAndSummary(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "calc.rl")
	opts := generate.DefaultOptions()
	opts.Output = generate.Stdout
	opts.Summary = true

	p := new(mockProcessor)
	p.On("Process", paths[0]).Return(&generate.Result{
		Filename: paths[0],
		Options:  opts,
		Code:     []byte("package lexer\n"),
	}, nil)
	g, stdout, stderr := newTestGenerator(p)

	require.NoError(t, g.run(context.Background(), paths, opts))
	assert.Equal(t, "package lexer\n", stdout.String())
	assert.Contains(t, stderr.String(), "tlex summary for "+paths[0])
}

func TestGeneratorListing(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "calc.rl")
	opts := generate.DefaultOptions()
	opts.Listing = true

	p := new(mockProcessor)
	p.On("Process", paths[0]).Return(&generate.Result{
		Filename: paths[0],
		Source:   []byte("id = \"[a-z]+\"\n"),
		Options:  opts,
	}, nil)
	g, _, _ := newTestGenerator(p)

	require.NoError(t, g.run(context.Background(), paths, opts))
	listing, err := os.ReadFile(filepath.Join(filepath.Dir(paths[0]), "calc.lst"))
	require.NoError(t, err)
	assert.Contains(t, string(listing), `    1  id = "[a-z]+"`)
}

func TestGeneratorOutputWithManyFiles(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "a.rl", "b.rl")
	opts := generate.DefaultOptions()
	opts.Output = "out.go"

	p := new(mockProcessor)
	for _, path := range paths {
		p.On("Process", path).Return(&generate.Result{Filename: path, Options: opts}, nil)
	}
	g, _, _ := newTestGenerator(p)

	assert.ErrorIs(t, g.run(context.Background(), paths, opts), errOutputWithMany)
}

func TestGeneratorProcessError(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "a.rl")
	p := new(mockProcessor)
	p.On("Process", paths[0]).Return(nil, os.ErrPermission)
	g, _, _ := newTestGenerator(p)

	assert.ErrorIs(t, g.run(context.Background(), paths, generate.DefaultOptions()), os.ErrPermission)
}

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addOptionFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestReadOptions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	config := filepath.Join(dir, "tlex.yaml")
	require.NoError(t, generate.WriteConfig(config, generate.Config{
		Options: []string{"stack", "namespace=fromconfig"},
	}))

	tests := []struct {
		name   string
		args   []string
		config string
		check  func(t *testing.T, o generate.Options)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, o generate.Options) {
				assert.Equal(t, generate.DefaultOptions(), o)
			},
		},
		{
			name: "flags",
			args: []string{"--unicode", "--minimize=false", "-o", "-", "--class", "Calc", "--case-insensitive"},
			check: func(t *testing.T, o generate.Options) {
				assert.True(t, o.Unicode)
				assert.True(t, o.CaseInsensitive)
				assert.False(t, o.Minimize)
				assert.Equal(t, generate.Stdout, o.Output)
				assert.Equal(t, "Calc", o.Class)
				assert.True(t, o.EffectiveCompressMap())
			},
		},
		{
			name: "raw options",
			args: []string{"-O", "squeeze", "-O", "codepage=utf-16"},
			check: func(t *testing.T, o generate.Options) {
				assert.True(t, o.Squeeze)
				assert.Equal(t, "utf-16", o.CodePage)
			},
		},
		{
			name:   "config then flags",
			args:   []string{"--namespace", "fromflag"},
			config: config,
			check: func(t *testing.T, o generate.Options) {
				assert.True(t, o.Stack)
				assert.Equal(t, "fromflag", o.Namespace)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := readOptions(newFlagCommand(t, tt.args...), tt.config)
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestReadOptionsErrors(t *testing.T) {
	t.Parallel()
	_, err := readOptions(newFlagCommand(t, "--unicode", "--classes=false"), "")
	assert.ErrorIs(t, err, generate.ErrInconsistent)

	_, err = readOptions(newFlagCommand(t, "-O", "turbo"), "")
	assert.ErrorIs(t, err, generate.ErrUnknownOption)

	_, err = readOptions(newFlagCommand(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListingPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("rules", "calc.lst"), listingPath(filepath.Join("rules", "calc.rl")))
	assert.Equal(t, "calc.lst", listingPath("calc"))
}

func TestExecuteGenerates(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "calc.rl")
	require.NoError(t, os.WriteFile(input, []byte("id = \"[a-z]+\"\nint = \"[0-9]+\"\nws<hidden> = \" +\"\n"), 0o644))
	output := filepath.Join(dir, "lexer", "calc_lexer.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(output), 0o755))

	rootCmd.SetArgs([]string{"gen", "--namespace", "calc", "-o", output, input})
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	code, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(code), "package calc")
	assert.Contains(t, string(code), "func NewCalcLexer(")
}
