package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/siftlab/sift/internal/knowledge"
)

// debounceWindow batches rapid filesystem events into a single re-scan.
const debounceWindow = 2 * time.Second

// Watch monitors root for source changes and re-scans automatically.
// Blocks until the context is cancelled.
func Watch(ctx context.Context, root string, store *knowledge.Store, opts Options) error {
	matcher, err := loadGitignoreMatcher(root)
	if err != nil {
		matcher = nil // Continue without gitignore
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the entire tree recursively.
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if shouldIgnoreDir(info.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = []string{".py"}
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounceWindow)
	batchTimer.Stop() // Don't start yet

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories get added to the watch set.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !shouldIgnoreDir(info.Name(), event.Name, root, matcher) {
						_ = watcher.Add(event.Name)
					}
					continue
				}
			}

			if !shouldWatchFile(event.Name, root, extensions, matcher) {
				continue
			}

			relPath, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			changed[relPath] = true
			batchTimer.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			fmt.Printf("Re-scanning after %d change(s)...\n", len(changed))

			// Dependency edges cross files, so a changed file re-scans
			// the whole tree rather than patching the graph in place.
			for relPath := range changed {
				if _, err := os.Stat(filepath.Join(root, relPath)); os.IsNotExist(err) {
					if err := store.ReplaceFindings(relPath, nil); err != nil {
						fmt.Fprintf(os.Stderr, "Error clearing %s: %v\n", relPath, err)
					}
				}
			}
			report, err := Scan(ctx, root, store, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error re-scanning: %v\n", err)
			} else {
				fmt.Printf("  %d file(s), %d finding(s)\n", len(report.Files), len(report.Findings))
			}
			changed = make(map[string]bool)
		}
	}
}

// shouldWatchFile checks if a path is a watchable source file.
func shouldWatchFile(path, root string, extensions []string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if matcher != nil {
		pathParts := strings.Split(relPath, string(filepath.Separator))
		if matcher.Match(pathParts, false) {
			return false
		}
	}
	ext := filepath.Ext(path)
	for _, want := range extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// shouldIgnoreDir checks if a directory is excluded from watching.
func shouldIgnoreDir(name, path, root string, matcher gitignore.Matcher) bool {
	ignoredDirs := []string{
		".git",
		"node_modules",
		"vendor",
		".sift",
		"__pycache__",
		".venv",
		"venv",
		"dist",
		"build",
	}
	for _, ignored := range ignoredDirs {
		if name == ignored {
			return true
		}
	}
	if matcher != nil {
		relPath, _ := filepath.Rel(root, path)
		pathParts := strings.Split(relPath, string(filepath.Separator))
		return matcher.Match(pathParts, true)
	}
	return false
}

// loadGitignoreMatcher loads a gitignore matcher from the tree root.
func loadGitignoreMatcher(root string) (gitignore.Matcher, error) {
	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), nil
}
