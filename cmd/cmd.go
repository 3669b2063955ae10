// Package cmd provides CLI command implementations for sift.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/siftlab/sift/internal/clusters"
	"github.com/siftlab/sift/internal/engine"
	"github.com/siftlab/sift/internal/knowledge"
	"github.com/siftlab/sift/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ScanCmd analyzes a source tree and persists the results.
type ScanCmd struct {
	Path     string   `arg:"" optional:"" default:"." help:"Path to source tree"`
	Exclude  []string `help:"Extra exclude patterns"`
	Clusters string   `help:"JSON file with pre-computed cluster assignments"`
	Group    bool     `help:"Derive code groups locally with TF-IDF clustering"`
	JSON     bool     `help:"Emit the full report as JSON"`
}

// Run executes the scan command.
func (c *ScanCmd) Run() error {
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	siftDir := filepath.Join(root, ".sift")
	if err := os.MkdirAll(siftDir, 0o755); err != nil {
		return fmt.Errorf("creating .sift directory: %w", err)
	}

	store, err := knowledge.Open(filepath.Join(siftDir, "badger"), false)
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}
	defer func() { _ = store.Close() }()

	opts := engine.Options{
		Exclude:       c.Exclude,
		LocalClusters: c.Group,
	}
	if c.Clusters != "" {
		assignments, err := readAssignments(c.Clusters)
		if err != nil {
			return err
		}
		opts.Clusters = assignments
	}
	if !c.JSON {
		color.Green("Scanning %s", root)
		opts.Progress = func(phase string, pct float64) {
			fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	start := time.Now()
	report, err := engine.Scan(context.Background(), root, store, opts)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if !c.JSON {
		fmt.Println() // Newline after progress
	}

	if err := writeReport(siftDir, report); err != nil {
		return err
	}

	meta := map[string]any{
		"version":    Version,
		"name":       filepath.Base(root),
		"path":       root,
		"files":      len(report.Files),
		"findings":   len(report.Findings),
		"scanned_at": time.Now().UTC().Format(time.RFC3339),
	}
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(siftDir, "meta.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	color.Green("\n✓ Scan complete")
	fmt.Printf("  Files:         %d\n", len(report.Files))
	if len(report.SkippedFiles) > 0 {
		fmt.Printf("  Skipped:       %d\n", len(report.SkippedFiles))
	}
	fmt.Printf("  Dependencies:  %d\n", report.Metrics.TotalDependencies)
	fmt.Printf("  Findings:      %d\n", len(report.Findings))
	fmt.Printf("  Cycles:        %d\n", len(report.Cycles))
	fmt.Printf("  Duration:      %.2fs\n", time.Since(start).Seconds())

	return nil
}

// PatternsCmd lists stored pattern records.
type PatternsCmd struct {
	Type string `arg:"" optional:"" help:"Pattern type to filter by"`
	JSON bool   `help:"Emit JSON"`
}

// Run executes the patterns command.
func (c *PatternsCmd) Run() error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Retrieve(c.Type)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No patterns stored. Run 'sift scan --group' first.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s (frequency %d)\n", color.CyanString(r.PatternType), r.Frequency)
		if examples, ok := r.Payload["examples"].([]any); ok {
			for _, ex := range examples {
				if s, ok := ex.(string); ok {
					fmt.Printf("  - %s\n", firstLine(s))
				}
			}
		}
	}
	return nil
}

// DepsCmd reports on the dependency graph of the last scan.
type DepsCmd struct {
	View      string `arg:"" optional:"" default:"metrics" enum:"metrics,cycles,complex,pairs" help:"What to show (metrics|cycles|complex|pairs)"`
	Threshold int    `default:"5" help:"Dependency-count threshold for the complex view"`
	JSON      bool   `help:"Emit JSON"`
}

// Run executes the deps command.
func (c *DepsCmd) Run() error {
	report, err := readLastReport()
	if err != nil {
		return err
	}

	switch c.View {
	case "cycles":
		if c.JSON {
			return printJSON(report.Cycles)
		}
		if len(report.Cycles) == 0 {
			color.Green("No circular dependencies")
			return nil
		}
		color.Yellow("Found %d circular dependencies:", len(report.Cycles))
		for _, cycle := range report.Cycles {
			fmt.Print("  ")
			for i, node := range cycle {
				if i > 0 {
					fmt.Print(" -> ")
				}
				fmt.Print(node)
			}
			fmt.Printf(" -> %s\n", cycle[0])
		}
	case "complex":
		type complexFile struct {
			File  string `json:"file"`
			Count int    `json:"dependency_count"`
		}
		var complexFiles []complexFile
		for file, count := range report.DepCounts {
			if count > c.Threshold {
				complexFiles = append(complexFiles, complexFile{file, count})
			}
		}
		sort.Slice(complexFiles, func(i, j int) bool {
			if complexFiles[i].Count != complexFiles[j].Count {
				return complexFiles[i].Count > complexFiles[j].Count
			}
			return complexFiles[i].File < complexFiles[j].File
		})
		if c.JSON {
			return printJSON(complexFiles)
		}
		if len(complexFiles) == 0 {
			fmt.Printf("No files with more than %d dependencies\n", c.Threshold)
			return nil
		}
		for _, cf := range complexFiles {
			fmt.Printf("%s imports %d modules\n", cf.File, cf.Count)
		}
	case "pairs":
		if c.JSON {
			return printJSON(report.ModulePairs)
		}
		if len(report.ModulePairs) == 0 {
			fmt.Println("No cross-package dependencies")
			return nil
		}
		for _, p := range report.ModulePairs {
			fmt.Printf("%s -> %s (%d)\n", p.Source, p.Target, p.Count)
		}
	default:
		if c.JSON {
			return printJSON(report.Metrics)
		}
		m := report.Metrics
		fmt.Printf("Files:               %d\n", m.TotalFiles)
		fmt.Printf("Dependencies:        %d\n", m.TotalDependencies)
		fmt.Printf("Avg deps per file:   %.2f\n", m.AvgDependencies)
		if m.MaxDepth < 0 {
			fmt.Println("Max depth:           cyclic")
		} else {
			fmt.Printf("Max depth:           %d\n", m.MaxDepth)
		}
		fmt.Printf("Density:             %.4f\n", m.Density)
		fmt.Printf("Independent files:   %d\n", m.FilesWithNoDependencies)
		for _, file := range m.FilesWithMostDependencies {
			fmt.Printf("Most dependencies:   %s\n", file)
		}
		for _, file := range m.MostDependedUponFiles {
			fmt.Printf("Most depended upon:  %s\n", file)
		}
	}
	return nil
}

// FindingsCmd lists stored findings.
type FindingsCmd struct {
	File string `arg:"" optional:"" help:"Only show findings for this file"`
	JSON bool   `help:"Emit JSON"`
}

// Run executes the findings command.
func (c *FindingsCmd) Run() error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	byFile, err := store.AllFindings()
	if err != nil {
		return err
	}
	if c.File != "" {
		findings := byFile[c.File]
		if c.JSON {
			return printJSON(findings)
		}
		if len(findings) == 0 {
			fmt.Printf("No findings for %s\n", c.File)
			return nil
		}
		for _, f := range findings {
			fmt.Printf("%s:%d %s/%s\n", f.File, f.Line, f.Category, f.Subtype)
		}
		return nil
	}

	if c.JSON {
		return printJSON(byFile)
	}
	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)
	total := 0
	for _, file := range files {
		fmt.Printf("%s\n", color.CyanString(file))
		for _, f := range byFile[file] {
			fmt.Printf("  %d: %s/%s\n", f.Line, f.Category, f.Subtype)
		}
		total += len(byFile[file])
	}
	if total == 0 {
		fmt.Println("No findings stored. Run 'sift scan' first.")
	}
	return nil
}

// WatchCmd enables watch mode with live re-scanning.
type WatchCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to source tree"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	siftDir := filepath.Join(root, ".sift")
	if err := os.MkdirAll(siftDir, 0o755); err != nil {
		return fmt.Errorf("creating .sift directory: %w", err)
	}
	store, err := knowledge.Open(filepath.Join(siftDir, "badger"), false)
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	// Initial scan so the watcher starts from a fresh baseline.
	if _, err := engine.Scan(ctx, root, store, engine.Options{}); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	err = engine.Watch(ctx, root, store, engine.Options{})
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to scanned source tree"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := knowledge.Open(filepath.Join(root, ".sift", "badger"), false)
	if err != nil {
		return fmt.Errorf("opening knowledge store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Rebuild the in-memory relationship graph before serving queries.
	if _, err := engine.Scan(ctx, root, store, engine.Options{}); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	server := mcp.NewServer(store)

	// No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows scan status for the current tree.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	metaPath := filepath.Join(root, ".sift", "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no scan found at %s. Run 'sift scan' first", root)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing meta.json: %w", err)
	}

	fmt.Printf("Scan status for %s\n", root)
	if version, ok := meta["version"].(string); ok {
		fmt.Printf("  Version:       %s\n", version)
	}
	if scannedAt, ok := meta["scanned_at"].(string); ok {
		fmt.Printf("  Last scanned:  %s\n", scannedAt)
	}
	if files, ok := meta["files"].(float64); ok {
		fmt.Printf("  Files:         %.0f\n", files)
	}
	if findings, ok := meta["findings"].(float64); ok {
		fmt.Printf("  Findings:      %.0f\n", findings)
	}

	return nil
}

// CleanCmd deletes scan data for the current tree.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	siftDir := filepath.Join(root, ".sift")
	if _, err := os.Stat(siftDir); os.IsNotExist(err) {
		return fmt.Errorf("no scan data found at %s. Nothing to clean", root)
	}

	if !c.Force {
		fmt.Printf("Delete scan data at %s? [y/N] ", siftDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(siftDir); err != nil {
		return fmt.Errorf("deleting scan data: %w", err)
	}

	color.Green("Deleted %s", siftDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

func loadStore() (*knowledge.Store, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	dbPath := filepath.Join(root, ".sift", "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no scan found at %s. Run 'sift scan' first", root)
	}

	store, err := knowledge.Open(dbPath, true)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}
	return store, nil
}

func writeReport(siftDir string, report *engine.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(siftDir, "report.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing report.json: %w", err)
	}
	return nil
}

func readLastReport() (*engine.Report, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(root, ".sift", "report.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no scan found at %s. Run 'sift scan' first", root)
		}
		return nil, fmt.Errorf("reading report.json: %w", err)
	}
	var report engine.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report.json: %w", err)
	}
	return &report, nil
}

func readAssignments(path string) ([]clusters.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cluster assignments: %w", err)
	}
	var assignments []clusters.Assignment
	if err := json.Unmarshal(data, &assignments); err != nil {
		return nil, fmt.Errorf("parsing cluster assignments: %w", err)
	}
	return assignments, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if len(s) > 80 {
		return s[:80]
	}
	return s
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Scan     ScanCmd     `cmd:"" help:"Analyze a source tree and persist the results"`
	Patterns PatternsCmd `cmd:"" help:"List stored pattern records"`
	Deps     DepsCmd     `cmd:"" help:"Report on the dependency graph"`
	Findings FindingsCmd `cmd:"" help:"List stored findings"`
	Watch    WatchCmd    `cmd:"" help:"Watch mode with live re-scanning"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Status   StatusCmd   `cmd:"" help:"Show scan status for current tree"`
	Clean    CleanCmd    `cmd:"" help:"Delete scan data for current tree"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("sift"),
		kong.Description("Static analysis engine for Python codebases"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}
