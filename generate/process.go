package generate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/renameio"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/tlex/internal/finder"
)

// Stdout is the output name that sends the scanner to standard output.
const Stdout = "-"

// OutputPath returns where the scanner generated from input goes: the
// output option, or input with a .go extension.
func OutputPath(input string, opts Options) string {
	if opts.Output != "" {
		return opts.Output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".go"
}

// WriteCode writes the emitted scanner of res to path, or to stdout when
// path is Stdout. Files are replaced atomically.
func WriteCode(res *Result, path string, stdout io.Writer) error {
	if res.Code == nil {
		return nil
	}
	if path == Stdout {
		_, err := stdout.Write(res.Code)
		return err
	}
	return WriteFile(path, res.Code)
}

// WriteFile atomically replaces the file at path with data.
func WriteFile(path string, data []byte) error {
	f, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("failed to open temporary file: %w", err)
	}
	defer f.Cleanup()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Chmod(0o644); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// Processor compiles one rule file.
type Processor func(ctx context.Context, logger *zap.Logger, path string, opts Options) (*Result, error)

// ProcessPaths compiles every rule file named by paths. Directories are
// searched for rule files and processed concurrently with a progress bar.
// Results come back in path order.
func ProcessPaths(ctx context.Context, logger *zap.Logger, paths []string, opts Options, process Processor) ([]*Result, error) {
	if process == nil {
		process = File
	}
	var files []string
	showProgress := false
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := finder.New(path).Find()
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			files = append(files, f.Path)
		}
		showProgress = true
	}

	var bar *progressbar.ProgressBar
	if showProgress && len(files) > 1 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("generating"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	results := make([]*Result, len(files))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := process(ctx, logger, file, opts)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", file), zap.Error(err))
				}
				return fmt.Errorf("%s: %w", file, err)
			}
			results[i] = res
			if bar != nil {
				mu.Lock()
				_ = bar.Add(1)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return results, nil
}
