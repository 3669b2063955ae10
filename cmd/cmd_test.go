package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlab/sift/internal/clusters"
	"github.com/siftlab/sift/internal/engine"
)

// chdir switches the working directory for one test and restores it after.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "def handler(event):", firstLine("def handler(event):\n    return event\n"))
	assert.Equal(t, "short", firstLine("short"))
	assert.Equal(t, "", firstLine(""))

	long := strings.Repeat("x", 200)
	assert.Equal(t, strings.Repeat("x", 80), firstLine(long))
}

func TestReadAssignments(t *testing.T) {
	t.Parallel()

	t.Run("ValidFile", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "clusters.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"block_id": "a.py", "cluster_id": 0},
			{"block_id": "b.py", "cluster_id": -1}
		]`), 0o644))

		got, err := readAssignments(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, clusters.Assignment{BlockID: "a.py", ClusterID: 0}, got[0])
		assert.Equal(t, clusters.Assignment{BlockID: "b.py", ClusterID: clusters.Noise}, got[1])
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		_, err := readAssignments(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "clusters.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		_, err := readAssignments(path)
		require.Error(t, err)
	})
}

func TestReportRoundTrip(t *testing.T) {
	root := t.TempDir()
	siftDir := filepath.Join(root, ".sift")
	require.NoError(t, os.MkdirAll(siftDir, 0o755))

	report := &engine.Report{
		Root:  root,
		Files: []string{"a.py", "b.py"},
		DepCounts: map[string]int{
			"a.py": 2,
			"b.py": 0,
		},
		Cycles: [][]string{{"a.py", "b.py"}},
		ModulePairs: []engine.PairCount{
			{Source: "api", Target: "core", Count: 3},
		},
	}
	require.NoError(t, writeReport(siftDir, report))

	chdir(t, root)
	got, err := readLastReport()
	require.NoError(t, err)

	assert.Equal(t, report.Files, got.Files)
	assert.Equal(t, report.DepCounts, got.DepCounts)
	assert.Equal(t, report.Cycles, got.Cycles)
	assert.Equal(t, report.ModulePairs, got.ModulePairs)
}

func TestReadLastReportMissing(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := readLastReport()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Run 'sift scan' first")
}

func TestScanCmd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("PASSWORD = \"hunter2\"\n"), 0o644))

	cmd := &ScanCmd{Path: root, JSON: true}
	require.NoError(t, cmd.Run())

	// A scan leaves the store, report, and metadata behind.
	assert.DirExists(t, filepath.Join(root, ".sift", "badger"))
	assert.FileExists(t, filepath.Join(root, ".sift", "report.json"))
	assert.FileExists(t, filepath.Join(root, ".sift", "meta.json"))

	chdir(t, root)
	report, err := readLastReport()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, report.Files)

	var subtypes []string
	for _, f := range report.Findings {
		subtypes = append(subtypes, f.Subtype)
	}
	assert.Contains(t, subtypes, "hardcoded_credential")
}

func TestLoadStoreWithoutScan(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := loadStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Run 'sift scan' first")
}
