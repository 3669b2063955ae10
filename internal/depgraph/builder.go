package depgraph

import (
	"path"
	"strings"

	"github.com/siftlab/sift/internal/imports"
)

// Builder converts per-file import records into a dependency graph.
//
// Build returns a fresh graph on every call, so repeated builds over the
// same input are idempotent: no edge duplication, no state carried over.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build constructs the graph for the given file set. Every file becomes a
// node even when it has no imports, so completeness checks can see isolated
// files. Relative imports resolve to sibling paths within the file set and
// produce File→File edges; everything else produces a File→Module edge.
func (b *Builder) Build(files map[string][]imports.Record) *Graph {
	g := NewGraph()

	known := make(map[string]bool, len(files))
	for filePath := range files {
		known[normalize(filePath)] = true
		g.AddNode(&Node{ID: filePath, Kind: NodeFile})
	}

	for filePath, records := range files {
		for _, rec := range records {
			if rec.Module == "" && rec.RelativeDepth == 0 {
				continue
			}

			if target, ok := resolveLocal(filePath, rec, known); ok {
				g.AddEdge(filePath, target, rec.Symbols)
				continue
			}

			moduleID := rec.Module
			if moduleID == "" {
				// "from . import x" with no resolvable sibling: attribute the
				// dependency to the package itself.
				moduleID = path.Dir(normalize(filePath))
				if moduleID == "." {
					continue
				}
			}
			g.AddNode(&Node{
				ID:       moduleID,
				Kind:     NodeModule,
				Category: Categorize(rec.Module, rec.RelativeDepth),
			})
			g.AddEdge(filePath, moduleID, rec.Symbols)
		}
	}

	return g
}

// resolveLocal maps a relative import onto a file in the scanned set.
// "from .utils import x" in pkg/mod.py resolves against pkg/utils.py, with
// each extra leading dot climbing one directory. Both module files and
// package __init__ files are candidates.
func resolveLocal(source string, rec imports.Record, known map[string]bool) (string, bool) {
	if rec.RelativeDepth == 0 {
		return "", false
	}

	dir := path.Dir(normalize(source))
	for i := 1; i < rec.RelativeDepth; i++ {
		dir = path.Dir(dir)
	}

	base := dir
	if rec.Module != "" {
		modPath := strings.ReplaceAll(rec.Module, ".", "/")
		base = path.Join(dir, modPath)
	}

	for _, candidate := range []string{base + ".py", path.Join(base, "__init__.py")} {
		if known[candidate] {
			return denormalize(candidate, source), true
		}
	}

	// "from . import sibling" imports module files as symbols.
	if rec.Module == "" {
		for _, sym := range rec.Symbols {
			candidate := path.Join(dir, sym+".py")
			if known[candidate] {
				return denormalize(candidate, source), true
			}
		}
	}

	return "", false
}

// normalize converts OS-specific separators to forward slashes for
// resolution.
func normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// denormalize restores the separator style of the original file set so
// resolved targets match node IDs exactly.
func denormalize(p, reference string) string {
	if strings.Contains(reference, "\\") {
		return strings.ReplaceAll(p, "/", "\\")
	}
	return p
}
