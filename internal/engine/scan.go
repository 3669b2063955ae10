// Package engine orchestrates the analysis pipeline: collect, parse,
// extract imports, build the dependency graph, detect patterns, and persist
// the results.
package engine

import (
	"context"
	"log"
	"runtime"
	"sort"
	"sync"

	"github.com/siftlab/sift/internal/clusters"
	"github.com/siftlab/sift/internal/collector"
	"github.com/siftlab/sift/internal/depgraph"
	"github.com/siftlab/sift/internal/detect"
	"github.com/siftlab/sift/internal/embeddings"
	"github.com/siftlab/sift/internal/errs"
	"github.com/siftlab/sift/internal/imports"
	"github.com/siftlab/sift/internal/knowledge"
	"github.com/siftlab/sift/internal/parsers"
)

// ProgressFunc is called with phase name and progress (0.0-1.0).
type ProgressFunc func(phase string, progress float64)

// Options configures a scan.
type Options struct {
	// Extensions overrides the collector's include filter.
	Extensions []string

	// Exclude holds extra ignore patterns.
	Exclude []string

	// Clusters are pre-computed cluster assignments from an external
	// collaborator, keyed by file path. Consumed as-is when present.
	Clusters []clusters.Assignment

	// LocalClusters derives assignments with the local TF-IDF grouper when
	// no pre-computed clusters are supplied.
	LocalClusters bool

	// Workers bounds the parse/detect pools. Defaults to GOMAXPROCS.
	Workers int

	// Progress receives phase updates; may be nil.
	Progress ProgressFunc
}

// PairCount is one directory-level dependency with its edge count.
type PairCount struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Report is the knowledge representation of one scan. A partially failed
// scan still carries everything that was successfully built, plus the
// skipped files.
type Report struct {
	Root         string                    `json:"root"`
	Files        []string                  `json:"files"`
	SkippedFiles []string                  `json:"skipped_files"`
	Findings     []detect.Finding          `json:"findings"`
	Complexity   []detect.FileMetrics      `json:"complexity"`
	Metrics      depgraph.Metrics          `json:"metrics"`
	DepCounts    map[string]int            `json:"dependency_counts"`
	Cycles       [][]string                `json:"cycles"`
	ModulePairs  []PairCount               `json:"module_pairs"`
	Patterns     []clusters.PatternSummary `json:"patterns"`

	// Graph is the full dependency graph, for callers that query beyond
	// the serialized summary. Not serialized.
	Graph *depgraph.Graph `json:"-"`
}

// Scan runs the full pipeline over the tree rooted at root. The store may
// be nil for a dry run; when present, findings, pattern summaries, and the
// relationship graph are persisted to it.
func Scan(ctx context.Context, root string, store *knowledge.Store, opts Options) (*Report, error) {
	report := &Report{Root: root}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Phase 1: collection. A missing root is fatal.
	progress("Collecting files", 0.0)
	entries, err := collector.Collect(root, collector.Options{
		Extensions: opts.Extensions,
		Exclude:    opts.Exclude,
	})
	if err != nil {
		return nil, err
	}
	progress("Collecting files", 1.0)

	// Phase 2: parsing, parallel across files. Syntax and decode errors
	// skip the file; anything else fails the scan.
	progress("Parsing", 0.0)
	files, skipped, err := parseAll(ctx, entries, workers)
	if err != nil {
		return nil, err
	}
	report.SkippedFiles = skipped
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	report.Files = paths
	progress("Parsing", 1.0)

	// Phase 3: import extraction. Needs every file before graph building,
	// since relative-import resolution sees the whole file set.
	progress("Extracting imports", 0.0)
	recordsByFile := make(map[string][]imports.Record, len(files))
	for _, path := range paths {
		records, err := imports.Extract(files[path])
		if err != nil {
			// Malformed imports in one file never abort the scan.
			log.Printf("sift: skipping imports for %s: %v", path, err)
			recordsByFile[path] = nil
			continue
		}
		recordsByFile[path] = records
	}
	progress("Extracting imports", 1.0)

	// Phase 4: dependency graph.
	progress("Building dependency graph", 0.0)
	graph := depgraph.NewBuilder().Build(recordsByFile)
	report.Graph = graph
	report.Metrics = graph.ComputeMetrics()
	report.Cycles = graph.Cycles()
	report.DepCounts = make(map[string]int, len(paths))
	for _, path := range paths {
		report.DepCounts[path] = graph.OutDegree(path)
	}
	pairs := graph.ModulePairs()
	for _, p := range depgraph.SortedModulePairs(pairs) {
		report.ModulePairs = append(report.ModulePairs, PairCount{
			Source: p.Source,
			Target: p.Target,
			Count:  pairs[p],
		})
	}
	progress("Building dependency graph", 1.0)

	// Phase 5: pattern detection, parallel across files.
	progress("Detecting patterns", 0.0)
	findings, metrics := detectAll(files, paths, workers)
	report.Findings = findings
	report.Complexity = metrics
	progress("Detecting patterns", 1.0)

	// Phase 6: cluster summaries.
	assignments := opts.Clusters
	if len(assignments) == 0 && opts.LocalClusters {
		progress("Grouping similar code", 0.0)
		assignments = embeddings.Group(blockTexts(files), embeddings.DefaultEps, embeddings.DefaultMinSamples)
		progress("Grouping similar code", 1.0)
	}
	if len(assignments) > 0 {
		report.Patterns = clusters.Summarize(assignments, blockTexts(files))
	}

	// Phase 7: persistence.
	if store != nil {
		progress("Persisting knowledge", 0.0)
		if err := persist(store, report); err != nil {
			return report, err
		}
		progress("Persisting knowledge", 1.0)
	}

	return report, nil
}

// parseAll parses entries with a bounded worker pool. It returns the parsed
// set keyed by rel path plus the skipped files in collection order.
func parseAll(ctx context.Context, entries []collector.FileEntry, workers int) (map[string]*parsers.SourceFile, []string, error) {
	registry := parsers.NewRegistry()

	var (
		mu       sync.Mutex
		files    = make(map[string]*parsers.SourceFile, len(entries))
		skipSet  = make(map[string]bool)
		fatalErr error
	)

	jobs := make(chan collector.FileEntry)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				parser := registry.ForPath(entry.RelPath)
				if parser == nil {
					continue
				}
				f, err := parser.Parse(entry.RelPath, entry.Content)
				mu.Lock()
				switch {
				case err == nil:
					files[entry.RelPath] = f
				case errs.IsKind(err, errs.KindParseFailure):
					if fatalErr == nil {
						fatalErr = err
					}
				default:
					// ErrSyntax and decode problems: skip and log.
					log.Printf("sift: skipping %s: %v", entry.RelPath, err)
					skipSet[entry.RelPath] = true
				}
				mu.Unlock()
			}
		}()
	}

loop:
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			break loop
		case jobs <- entry:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, nil, err
	}
	if fatalErr != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, nil, errs.E(errs.KindParseFailure, "engine.Scan", fatalErr)
	}

	var skipped []string
	for _, entry := range entries {
		if skipSet[entry.RelPath] {
			skipped = append(skipped, entry.RelPath)
		}
	}
	return files, skipped, nil
}

// detectAll runs the detector over every file in parallel and returns
// findings and metrics in path order.
func detectAll(files map[string]*parsers.SourceFile, paths []string, workers int) ([]detect.Finding, []detect.FileMetrics) {
	detector := detect.NewDetector()

	findingsByFile := make([][]detect.Finding, len(paths))
	metricsByFile := make([]*detect.FileMetrics, len(paths))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				f, m := detector.Detect(files[paths[idx]])
				findingsByFile[idx] = f
				metricsByFile[idx] = m
			}
		}()
	}
	for idx := range paths {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var findings []detect.Finding
	var metrics []detect.FileMetrics
	for idx := range paths {
		findings = append(findings, findingsByFile[idx]...)
		if m := metricsByFile[idx]; m != nil {
			metrics = append(metrics, *m)
		}
	}
	return findings, metrics
}

// persist writes findings, pattern summaries, and the relationship graph to
// the knowledge store.
func persist(store *knowledge.Store, report *Report) error {
	byFile := make(map[string][]detect.Finding)
	for _, f := range report.Findings {
		byFile[f.File] = append(byFile[f.File], f)
	}
	// Files with no findings still get a replace, clearing stale results.
	for _, path := range report.Files {
		if err := store.ReplaceFindings(path, byFile[path]); err != nil {
			return err
		}
	}

	for _, p := range report.Patterns {
		payload := map[string]any{
			"cluster_id": p.ClusterID,
			"examples":   p.Examples,
		}
		if _, err := store.Store(p.PatternType, payload, p.Frequency); err != nil {
			return err
		}
	}

	var edges [][2]string
	for _, e := range report.Graph.Edges() {
		edges = append(edges, [2]string{e.Source, e.Target})
	}
	store.BuildGraph(report.Graph.Nodes(), edges)
	return nil
}

// blockTexts maps file paths to their source text for cluster naming.
func blockTexts(files map[string]*parsers.SourceFile) map[string]string {
	out := make(map[string]string, len(files))
	for path, f := range files {
		out[path] = string(f.Content)
	}
	return out
}
