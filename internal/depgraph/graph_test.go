package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNode(id string) *Node {
	return &Node{ID: id, Kind: NodeFile}
}

func TestGraph_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("AddSingle", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))

		assert.Equal(t, 1, g.NodeCount())
		require.NotNil(t, g.GetNode("a.py"))
		assert.Equal(t, NodeFile, g.GetNode("a.py").Kind)
	})

	t.Run("ReplaceExisting", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(&Node{ID: "requests", Kind: NodeModule, Category: CategoryThirdParty})
		g.AddNode(&Node{ID: "requests", Kind: NodeModule, Category: CategoryStandard})

		assert.Equal(t, 1, g.NodeCount())
		assert.Equal(t, CategoryStandard, g.GetNode("requests").Category)
	})
}

func TestGraph_AddEdge(t *testing.T) {
	t.Parallel()

	t.Run("AddsEdge", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))
		g.AddNode(fileNode("b.py"))

		assert.True(t, g.AddEdge("a.py", "b.py", []string{"helper"}))
		assert.Equal(t, 1, g.EdgeCount())
		assert.True(t, g.HasEdge("a.py", "b.py"))
		assert.False(t, g.HasEdge("b.py", "a.py"))
	})

	t.Run("RejectsSelfLoop", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))

		assert.False(t, g.AddEdge("a.py", "a.py", nil))
		assert.Equal(t, 0, g.EdgeCount())
	})

	t.Run("RejectsMissingEndpoint", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))

		assert.False(t, g.AddEdge("a.py", "ghost.py", nil))
		assert.Equal(t, 0, g.EdgeCount())
	})

	t.Run("DuplicateMergesSymbols", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(fileNode("a.py"))
		g.AddNode(fileNode("b.py"))

		require.True(t, g.AddEdge("a.py", "b.py", []string{"foo"}))
		assert.False(t, g.AddEdge("a.py", "b.py", []string{"bar", "foo"}))

		assert.Equal(t, 1, g.EdgeCount())
		edge := g.GetEdge("a.py", "b.py")
		require.NotNil(t, edge)
		assert.Equal(t, []string{"bar", "foo"}, edge.Symbols)
	})
}

func TestGraph_Queries(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(fileNode("a.py"))
	g.AddNode(fileNode("b.py"))
	g.AddNode(fileNode("c.py"))
	g.AddNode(&Node{ID: "os", Kind: NodeModule, Category: CategoryStandard})
	g.AddEdge("a.py", "b.py", nil)
	g.AddEdge("a.py", "c.py", nil)
	g.AddEdge("b.py", "c.py", nil)
	g.AddEdge("a.py", "os", nil)

	t.Run("Nodes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"a.py", "b.py", "c.py", "os"}, g.Nodes())
	})

	t.Run("NodesByKind", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"a.py", "b.py", "c.py"}, g.NodesByKind(NodeFile))
		assert.Equal(t, []string{"os"}, g.NodesByKind(NodeModule))
	})

	t.Run("SuccessorsSorted", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"b.py", "c.py", "os"}, g.Successors("a.py"))
	})

	t.Run("Predecessors", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"a.py", "b.py"}, g.Predecessors("c.py"))
	})

	t.Run("Degrees", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 3, g.OutDegree("a.py"))
		assert.Equal(t, 0, g.InDegree("a.py"))
		assert.Equal(t, 2, g.InDegree("c.py"))
		assert.Equal(t, 0, g.OutDegree("os"))
	})

	t.Run("EdgesOrdered", func(t *testing.T) {
		t.Parallel()
		edges := g.Edges()
		require.Len(t, edges, 4)
		assert.Equal(t, "a.py", edges[0].Source)
		assert.Equal(t, "b.py", edges[0].Target)
		assert.Equal(t, EdgeImports, edges[0].Kind)
	})
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	t.Run("RelativeAlwaysLocal", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, CategoryLocal, Categorize("os", 1))
		assert.Equal(t, CategoryLocal, Categorize("", 2))
	})

	t.Run("StandardLibrary", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, CategoryStandard, Categorize("os", 0))
		assert.Equal(t, CategoryStandard, Categorize("os.path", 0))
		assert.Equal(t, CategoryStandard, Categorize("collections", 0))
	})

	t.Run("ThirdParty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, CategoryThirdParty, Categorize("requests", 0))
		assert.Equal(t, CategoryThirdParty, Categorize("numpy.linalg", 0))
	})
}
