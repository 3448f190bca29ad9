// Package finder locates rule files under a directory.
package finder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions are the rule file extensions searched by default.
var Extensions = []string{".rl", ".lex"}

type FileInfo struct {
	Path string
	Size int64
}

type Finder struct {
	rootDir    string
	extensions []string
}

// New returns a finder for rootDir. Without extensions it looks for
// Extensions.
func New(rootDir string, extensions ...string) *Finder {
	if len(extensions) == 0 {
		extensions = Extensions
	}
	return &Finder{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Find walks the tree and returns the rule files sorted by path. Hidden
// directories are skipped.
func (f *Finder) Find() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(f.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != f.rootDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if f.isTargetFile(path) {
			files = append(files, FileInfo{Path: path, Size: info.Size()})
		}
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// IsRuleFile reports whether path has one of the finder's extensions.
func (f *Finder) IsRuleFile(path string) bool { return f.isTargetFile(path) }

func (f *Finder) isTargetFile(path string) bool {
	ext := filepath.Ext(path)
	for _, targetExt := range f.extensions {
		if strings.EqualFold(ext, targetExt) {
			return true
		}
	}
	return false
}
