package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph(ids ...string) *Graph {
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(fileNode(id))
	}
	for i := 0; i+1 < len(ids); i++ {
		g.AddEdge(ids[i], ids[i+1], nil)
	}
	return g
}

func TestGraph_Cycles(t *testing.T) {
	t.Parallel()

	t.Run("AcyclicIsEmpty", func(t *testing.T) {
		t.Parallel()
		g := chainGraph("a.py", "b.py", "c.py")
		assert.Empty(t, g.Cycles())
	})

	t.Run("ThreeNodeCycle", func(t *testing.T) {
		t.Parallel()
		g := chainGraph("a.py", "b.py", "c.py")
		g.AddEdge("c.py", "a.py", nil)

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a.py", "b.py", "c.py"}, cycles[0])
	})

	t.Run("CycleReportedOnceFromSmallestNode", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		for _, id := range []string{"x.py", "m.py", "b.py"} {
			g.AddNode(fileNode(id))
		}
		g.AddEdge("x.py", "m.py", nil)
		g.AddEdge("m.py", "b.py", nil)
		g.AddEdge("b.py", "x.py", nil)

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, "b.py", cycles[0][0])
	})

	t.Run("TwoNodeCycle", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))
		g.AddNode(fileNode("b.py"))
		g.AddEdge("a.py", "b.py", nil)
		g.AddEdge("b.py", "a.py", nil)

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a.py", "b.py"}, cycles[0])
	})

	t.Run("TwoIndependentCycles", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		for _, id := range []string{"a.py", "b.py", "c.py", "d.py"} {
			g.AddNode(fileNode(id))
		}
		g.AddEdge("a.py", "b.py", nil)
		g.AddEdge("b.py", "a.py", nil)
		g.AddEdge("c.py", "d.py", nil)
		g.AddEdge("d.py", "c.py", nil)

		assert.Len(t, g.Cycles(), 2)
	})
}

func TestGraph_ComplexModules(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"hub.py", "a.py", "b.py", "c.py"} {
		g.AddNode(fileNode(id))
	}
	g.AddEdge("hub.py", "a.py", nil)
	g.AddEdge("hub.py", "b.py", nil)
	g.AddEdge("c.py", "hub.py", nil)

	// hub has total degree 3; the threshold is strict.
	assert.Equal(t, []string{"hub.py"}, g.ComplexModules(2))
	assert.Empty(t, g.ComplexModules(3))
}

func TestGraph_ComputeMetrics(t *testing.T) {
	t.Parallel()

	t.Run("EmptyGraph", func(t *testing.T) {
		t.Parallel()
		m := NewGraph().ComputeMetrics()
		assert.Equal(t, 0, m.TotalFiles)
		assert.Equal(t, 0, m.TotalDependencies)
		assert.Equal(t, 0.0, m.AvgDependencies)
		assert.Equal(t, 0, m.MaxDepth)
	})

	t.Run("Chain", func(t *testing.T) {
		t.Parallel()
		m := chainGraph("a.py", "b.py", "c.py").ComputeMetrics()

		assert.Equal(t, 3, m.TotalFiles)
		assert.Equal(t, 2, m.TotalDependencies)
		assert.InDelta(t, 2.0/3.0, m.AvgDependencies, 1e-9)
		assert.Equal(t, 2, m.MaxDepth)
		assert.InDelta(t, 2.0/6.0, m.Density, 1e-9)
		assert.Equal(t, []string{"a.py", "b.py"}, m.FilesWithMostDependencies)
		assert.Equal(t, []string{"b.py", "c.py"}, m.MostDependedUponFiles)
		assert.Equal(t, 1, m.FilesWithNoDependencies)
	})

	t.Run("CyclicDepthSentinel", func(t *testing.T) {
		t.Parallel()
		g := chainGraph("a.py", "b.py")
		g.AddEdge("b.py", "a.py", nil)

		m := g.ComputeMetrics()
		assert.Equal(t, MaxDepthCyclic, m.MaxDepth)
	})

	t.Run("ModuleNodesExcludedFromFileCounts", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))
		g.AddNode(&Node{ID: "os", Kind: NodeModule, Category: CategoryStandard})
		g.AddEdge("a.py", "os", nil)

		m := g.ComputeMetrics()
		assert.Equal(t, 1, m.TotalFiles)
		// The module node never imports anything but is not a file.
		assert.Equal(t, 0, m.FilesWithNoDependencies)
	})
}

func TestGraph_ModulePairs(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"api/handlers.py", "api/routes.py", "core/models.py", "core/db.py"} {
		g.AddNode(fileNode(id))
	}
	g.AddNode(&Node{ID: "os", Kind: NodeModule, Category: CategoryStandard})

	g.AddEdge("api/handlers.py", "core/models.py", nil)
	g.AddEdge("api/routes.py", "core/models.py", nil)
	g.AddEdge("api/handlers.py", "api/routes.py", nil) // same module, excluded
	g.AddEdge("core/db.py", "os", nil)                 // module target, excluded

	pairs := g.ModulePairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, 2, pairs[ModulePair{Source: "api", Target: "core"}])

	sorted := SortedModulePairs(pairs)
	require.Len(t, sorted, 1)
	assert.Equal(t, "api", sorted[0].Source)
	assert.Equal(t, "core", sorted[0].Target)
}
