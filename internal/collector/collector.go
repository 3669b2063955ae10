// Package collector enumerates analyzable source files under a scan root.
package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/siftlab/sift/internal/errs"
)

// FileEntry represents a candidate source file.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the scan root.
	RelPath string

	// Content is the raw file content.
	Content []byte

	// SHA256 is the hex hash of the content.
	SHA256 string
}

// Options controls which files are collected.
type Options struct {
	// Extensions is the set of file extensions to include (with leading dot).
	// Defaults to DefaultExtensions when empty.
	Extensions []string

	// Exclude holds additional gitignore-style patterns to skip.
	Exclude []string
}

// DefaultExtensions is the default include filter.
var DefaultExtensions = []string{".py"}

// vcsDirs are version-control metadata directories, skipped by name match
// anywhere in the tree.
var vcsDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
	".bzr": true,
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	"node_modules/",
	".sift/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".eggs/",
	"*.egg-info/",
	".pytest_cache/",
	".mypy_cache/",
	"*.pyc",
	"*.pyo",
	".DS_Store",
}

// Collect walks the root depth-first and returns every file matching the
// extension filter, minus VCS metadata, default ignores, and .gitignore
// matches. The order is the lexical WalkDir order, deterministic for a
// fixed directory snapshot.
//
// A missing root fails with a path_not_found error; this is fatal to the
// scan and never retried.
func Collect(root string, opts Options) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.E(errs.KindPathNotFound, "collector.Collect", err)
	}
	if !info.IsDir() {
		return nil, errs.Errorf(errs.KindPathNotFound, "collector.Collect", "%s is not a directory", root)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	matcher := buildMatcher(root, opts.Exclude)

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !extSet[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hash := sha256.Sum256(content)

		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: relPath,
			Content: content,
			SHA256:  hex.EncodeToString(hash[:]),
		})
		return nil
	})
	if err != nil {
		return nil, errs.E(errs.KindParseFailure, "collector.Collect", err)
	}

	return entries, nil
}

// buildMatcher combines default ignores, caller excludes, and any .gitignore
// at the root into a single matcher.
func buildMatcher(root string, exclude []string) gitignore.Matcher {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(exclude))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	for _, p := range exclude {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	patterns = append(patterns, loadGitignore(root)...)
	return gitignore.NewMatcher(patterns)
}

// loadGitignore loads .gitignore patterns from the scan root.
func loadGitignore(root string) []gitignore.Pattern {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

// shouldSkipDir checks if a directory should be pruned from the walk.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if vcsDirs[name] {
		return true
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
