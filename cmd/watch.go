package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tlex/internal/cache"
	"github.com/gnolang/tlex/internal/finder"
)

const watchDelay = 100 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Regenerate scanners whenever their rule files change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide rule files or directories")
		}
		opts, err := readOptions(cmd, cfgFile)
		if err != nil {
			return err
		}
		g := newGenerator(cmd, opts)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		w, err := newWatcher(logger, args)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := g.run(ctx, args, opts); err != nil && !errors.Is(err, ErrDiagnostics) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", strings.Join(args, ", "))

		seen := cache.New(0)
		key := strings.Join(opts.Summarize(), ",")
		return w.run(ctx, func(path string) {
			if seen.Fresh(path, key) {
				logger.Debug("rule file unchanged", zap.String("file", path))
				return
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := g.run(ctx, []string{path}, opts)
			switch {
			case err == nil:
				_ = seen.Set(path, key)
			case !errors.Is(err, ErrDiagnostics):
				logger.Error("Error regenerating scanner", zap.String("file", path), zap.Error(err))
			}
		})
	},
}

func init() {
	addOptionFlags(watchCmd)
}

// watcher reports rule files that were written. Directories are watched
// with their subdirectories; single files through their directory.
type watcher struct {
	fs     *fsnotify.Watcher
	logger *zap.Logger
	finder *finder.Finder
	files  map[string]bool // watched on their own
	dirs   map[string]bool // watched for every rule file
	delay  time.Duration
}

func newWatcher(logger *zap.Logger, paths []string) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &watcher{
		fs:     fs,
		logger: logger,
		finder: finder.New("."),
		files:  map[string]bool{},
		dirs:   map[string]bool{},
		delay:  watchDelay,
	}
	for _, path := range paths {
		if err := w.add(path); err != nil {
			fs.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[filepath.Clean(path)] = true
		return w.fs.Add(filepath.Dir(path))
	}
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		w.dirs[filepath.Clean(p)] = true
		return w.fs.Add(p)
	})
	if err != nil {
		return fmt.Errorf("error adding directory to watcher: %w", err)
	}
	return nil
}

func (w *watcher) Close() error { return w.fs.Close() }

// run calls handle for every changed rule file until ctx is done. Changes
// arriving within the delay are handled once.
func (w *watcher) run(ctx context.Context, handle func(path string)) error {
	pending := map[string]bool{}
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(event, pending)
			if len(pending) > 0 && fire == nil {
				fire = time.After(w.delay)
			}
		case <-fire:
			fire = nil
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			clear(pending)
			for _, name := range names {
				handle(name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *watcher) handleFileEvent(event fsnotify.Event, pending map[string]bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Clean(event.Name)
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.add(name); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("dir", name), zap.Error(err))
			}
			return
		}
	}
	if w.files[name] || w.dirs[filepath.Dir(name)] && w.finder.IsRuleFile(name) {
		w.logger.Debug("rule file changed", zap.String("file", name))
		pending[name] = true
	}
}
