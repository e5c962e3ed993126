// Package discover finds the text files of a repository checked out on disk
// and normalizes them into file records.
package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/repochunk/pkg/types"
)

// DefaultMaxFileSize skips files over 1 MiB
const DefaultMaxFileSize = 1 << 20

// binarySniffLen is how much of a file is checked for NUL bytes
const binarySniffLen = 8 << 10

// ErrNotDirectory is returned when the root is not a directory
var ErrNotDirectory = errors.New("root is not a directory")

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"vendor":        {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	"build":         {},
	"dist":          {},
	"target":        {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	".idea":         {},
	".vscode":       {},
}

// Options controls which files are returned
type Options struct {
	// MaxFileSize in bytes. 0 uses DefaultMaxFileSize; negative disables the limit.
	MaxFileSize int64

	// IncludeExtensions restricts results to these extensions (".go" or "go").
	// Empty accepts every text file.
	IncludeExtensions []string

	// ExcludePatterns use .gitignore syntax and apply on top of the
	// repository's own .gitignore.
	ExcludePatterns []string

	IncludeHidden bool

	// Workers bounds concurrent file reads. 0 uses GOMAXPROCS.
	Workers int
}

// Files walks root and returns its text files sorted by path. Paths are
// relative to root and slash-separated; line endings are normalized to \n.
// Directories such as .git, node_modules and vendor are never entered. Every
// .gitignore found on the way applies to the paths below its directory.
func Files(ctx context.Context, root string, opts Options) ([]types.FileRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	exts := make(map[string]struct{}, len(opts.IncludeExtensions))
	for _, e := range opts.IncludeExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	// .gitignore files by the slash-separated directory holding them, "." for
	// root. Each matches paths relative to its own directory.
	gitignores := make(map[string]*ignore.GitIgnore)
	if gi := loadGitignore(root); gi != nil {
		gitignores["."] = gi
	}
	var excludes *ignore.GitIgnore
	if len(opts.ExcludePatterns) > 0 {
		excludes = ignore.CompileIgnoreLines(opts.ExcludePatterns...)
	}
	ignored := func(rel string, dir bool) bool {
		suffix := ""
		if dir {
			suffix = "/"
		}
		if excludes != nil && excludes.MatchesPath(rel+suffix) {
			return true
		}
		for base := parentDir(rel); ; base = parentDir(base) {
			if gi, ok := gitignores[base]; ok {
				sub := rel
				if base != "." {
					sub = strings.TrimPrefix(rel, base+"/")
				}
				if gi.MatchesPath(sub + suffix) {
					return true
				}
			}
			if base == "." {
				return false
			}
		}
	}

	var candidates []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		name := d.Name()
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		hidden := strings.HasPrefix(name, ".")

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || (hidden && !opts.IncludeHidden) || ignored(rel, true) {
				return filepath.SkipDir
			}
			if gi := loadGitignore(path); gi != nil {
				gitignores[rel] = gi
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}
		if ignored(rel, false) {
			return nil
		}
		if len(exts) > 0 {
			if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
				return nil
			}
		}
		if maxSize > 0 {
			fi, err := d.Info()
			if err != nil || fi.Size() > maxSize {
				return nil
			}
		}

		candidates = append(candidates, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]*types.FileRecord, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return nil // vanished or unreadable
			}
			if IsBinary(data) {
				return nil
			}
			rec := types.NewFileRecord(rel, Normalize(string(data)))
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]types.FileRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// IsBinary reports whether data looks like a binary file: a NUL byte in the
// first 8 KiB, or content that is not valid UTF-8.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return true
	}
	return !utf8.Valid(data)
}

// Normalize converts CRLF and lone CR line endings to LF.
func Normalize(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// parentDir returns the directory of a slash-separated relative path, "."
// at the top level.
func parentDir(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return "."
}

func loadGitignore(dir string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
