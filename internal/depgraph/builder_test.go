package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlab/sift/internal/imports"
)

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("EveryFileBecomesNode", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"a.py": nil,
			"b.py": nil,
		})

		assert.Equal(t, 2, g.NodeCount())
		assert.Equal(t, 0, g.EdgeCount())
		assert.Equal(t, []string{"a.py", "b.py"}, g.NodesByKind(NodeFile))
	})

	t.Run("ExternalModuleEdge", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"a.py": {{SourceFile: "a.py", Kind: imports.KindDirect, Module: "os"}},
		})

		require.NotNil(t, g.GetNode("os"))
		assert.Equal(t, NodeModule, g.GetNode("os").Kind)
		assert.Equal(t, CategoryStandard, g.GetNode("os").Category)
		assert.True(t, g.HasEdge("a.py", "os"))
	})

	t.Run("RelativeResolvesToSibling", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"pkg/mod.py":   {{SourceFile: "pkg/mod.py", Kind: imports.KindFromImport, Module: "utils", RelativeDepth: 1, Symbols: []string{"helper"}}},
			"pkg/utils.py": nil,
		})

		assert.True(t, g.HasEdge("pkg/mod.py", "pkg/utils.py"))
		assert.Nil(t, g.GetNode("utils"))
	})

	t.Run("RelativeResolvesToPackageInit", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"pkg/mod.py":          {{SourceFile: "pkg/mod.py", Kind: imports.KindFromImport, Module: "sub", RelativeDepth: 1, Symbols: []string{"x"}}},
			"pkg/sub/__init__.py": nil,
		})

		assert.True(t, g.HasEdge("pkg/mod.py", "pkg/sub/__init__.py"))
	})

	t.Run("DoubleDotClimbsDirectory", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"pkg/sub/mod.py": {{SourceFile: "pkg/sub/mod.py", Kind: imports.KindFromImport, Module: "core", RelativeDepth: 2, Symbols: []string{"User"}}},
			"pkg/core.py":    nil,
		})

		assert.True(t, g.HasEdge("pkg/sub/mod.py", "pkg/core.py"))
	})

	t.Run("BareRelativeImportsSibling", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"pkg/mod.py":     {{SourceFile: "pkg/mod.py", Kind: imports.KindFromImport, RelativeDepth: 1, Symbols: []string{"sibling"}}},
			"pkg/sibling.py": nil,
		})

		assert.True(t, g.HasEdge("pkg/mod.py", "pkg/sibling.py"))
	})

	t.Run("UnresolvedRelativeFallsBackToPackage", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"pkg/mod.py": {{SourceFile: "pkg/mod.py", Kind: imports.KindFromImport, RelativeDepth: 1, Symbols: []string{"ghost"}}},
		})

		require.NotNil(t, g.GetNode("pkg"))
		assert.Equal(t, NodeModule, g.GetNode("pkg").Kind)
		assert.Equal(t, CategoryLocal, g.GetNode("pkg").Category)
		assert.True(t, g.HasEdge("pkg/mod.py", "pkg"))
	})

	t.Run("RootLevelBareRelativeSkipped", func(t *testing.T) {
		t.Parallel()
		g := NewBuilder().Build(map[string][]imports.Record{
			"mod.py": {{SourceFile: "mod.py", Kind: imports.KindFromImport, RelativeDepth: 1, Symbols: []string{"ghost"}}},
		})

		assert.Equal(t, 1, g.NodeCount())
		assert.Equal(t, 0, g.EdgeCount())
	})

	t.Run("Idempotent", func(t *testing.T) {
		t.Parallel()
		files := map[string][]imports.Record{
			"a.py": {
				{SourceFile: "a.py", Kind: imports.KindDirect, Module: "os"},
				{SourceFile: "a.py", Kind: imports.KindFromImport, Module: "os", Symbols: []string{"path"}},
			},
			"b.py": nil,
		}

		b := NewBuilder()
		first := b.Build(files)
		second := b.Build(files)

		assert.Equal(t, first.NodeCount(), second.NodeCount())
		assert.Equal(t, first.EdgeCount(), second.EdgeCount())
		// Two records to the same module stay one edge with merged symbols.
		assert.Equal(t, 1, second.EdgeCount())
		assert.Equal(t, []string{"path"}, second.GetEdge("a.py", "os").Symbols)
	})
}
