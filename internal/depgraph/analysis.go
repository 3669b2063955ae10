package depgraph

import (
	"path"
	"sort"
)

// MaxDepthCyclic is the Metrics.MaxDepth sentinel when the graph has a cycle
// and longest-path is undefined.
const MaxDepthCyclic = -1

// Metrics summarizes the structure of the dependency graph.
type Metrics struct {
	AvgDependencies           float64  `json:"avg_dependencies"`
	MaxDepth                  int      `json:"max_depth"`
	Density                   float64  `json:"density"`
	TotalFiles                int      `json:"total_files"`
	TotalDependencies         int      `json:"total_dependencies"`
	FilesWithMostDependencies []string `json:"files_with_most_dependencies"`
	MostDependedUponFiles     []string `json:"most_depended_upon_files"`
	FilesWithNoDependencies   int      `json:"files_with_no_dependencies"`
}

// ModulePair is a directory-level dependency between two modules.
type ModulePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Cycles returns every elementary circuit in the graph, each cycle listed
// once starting from its lexically smallest node. The result is empty
// (never an error) on an acyclic graph.
func (g *Graph) Cycles() [][]string {
	ids := g.Nodes()
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}

	succs := make(map[string][]string, len(ids))
	for _, id := range ids {
		succs[id] = g.Successors(id)
	}

	var cycles [][]string
	var pathStack []string
	onPath := make(map[string]bool)

	var dfs func(start, v string)
	dfs = func(start, v string) {
		for _, w := range succs[v] {
			if order[w] < order[start] {
				// Cycles through smaller nodes were found when that node
				// was the start.
				continue
			}
			if w == start {
				cycle := make([]string, len(pathStack))
				copy(cycle, pathStack)
				cycles = append(cycles, cycle)
				continue
			}
			if onPath[w] {
				continue
			}
			pathStack = append(pathStack, w)
			onPath[w] = true
			dfs(start, w)
			pathStack = pathStack[:len(pathStack)-1]
			delete(onPath, w)
		}
	}

	for _, start := range ids {
		pathStack = pathStack[:0]
		pathStack = append(pathStack, start)
		onPath = map[string]bool{start: true}
		dfs(start, start)
	}

	return cycles
}

// ComplexModules returns nodes whose total degree strictly exceeds the
// threshold; ties at the threshold are excluded. Sorted by node ID.
func (g *Graph) ComplexModules(threshold int) []string {
	var out []string
	for _, id := range g.Nodes() {
		if g.InDegree(id)+g.OutDegree(id) > threshold {
			out = append(out, id)
		}
	}
	return out
}

// ComputeMetrics derives structural metrics from the current graph.
func (g *Graph) ComputeMetrics() Metrics {
	files := g.NodesByKind(NodeFile)
	all := g.Nodes()
	edges := g.EdgeCount()

	m := Metrics{
		TotalFiles:        len(files),
		TotalDependencies: edges,
	}

	if len(files) > 0 {
		m.AvgDependencies = float64(edges) / float64(len(files))
	}
	if n := len(all); n > 1 {
		m.Density = float64(edges) / float64(n*(n-1))
	}

	maxOut, maxIn := 0, 0
	for _, id := range all {
		if d := g.OutDegree(id); d > maxOut {
			maxOut = d
		}
		if d := g.InDegree(id); d > maxIn {
			maxIn = d
		}
	}
	for _, id := range all {
		if maxOut > 0 && g.OutDegree(id) == maxOut {
			m.FilesWithMostDependencies = append(m.FilesWithMostDependencies, id)
		}
		if maxIn > 0 && g.InDegree(id) == maxIn {
			m.MostDependedUponFiles = append(m.MostDependedUponFiles, id)
		}
	}

	for _, id := range files {
		if g.OutDegree(id) == 0 {
			m.FilesWithNoDependencies++
		}
	}

	m.MaxDepth = g.longestPath()
	return m
}

// longestPath returns the number of edges on the longest path through the
// graph, or MaxDepthCyclic when a cycle makes the question undefined.
func (g *Graph) longestPath() int {
	ids := g.Nodes()
	indeg := make(map[string]int, len(ids))
	for _, id := range ids {
		indeg[id] = g.InDegree(id)
	}

	// Kahn's ordering; leftovers mean a cycle.
	var queue []string
	for _, id := range ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	depth := make(map[string]int, len(ids))
	visited := 0
	longest := 0
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		visited++
		for _, w := range g.Successors(v) {
			if depth[v]+1 > depth[w] {
				depth[w] = depth[v] + 1
				if depth[w] > longest {
					longest = depth[w]
				}
			}
			indeg[w]--
			if indeg[w] == 0 {
				queue = append(queue, w)
			}
		}
	}

	if visited < len(ids) {
		return MaxDepthCyclic
	}
	return longest
}

// ModulePairs aggregates file-level edges into directory-level dependency
// counts. A file's module is its containing directory; pairs inside the
// same module are excluded.
func (g *Graph) ModulePairs() map[ModulePair]int {
	pairs := make(map[ModulePair]int)
	for _, e := range g.Edges() {
		src := g.GetNode(e.Source)
		dst := g.GetNode(e.Target)
		if src == nil || dst == nil || src.Kind != NodeFile || dst.Kind != NodeFile {
			continue
		}
		srcMod := path.Dir(normalize(e.Source))
		dstMod := path.Dir(normalize(e.Target))
		if srcMod == dstMod {
			continue
		}
		pairs[ModulePair{Source: srcMod, Target: dstMod}]++
	}
	return pairs
}

// SortedModulePairs returns the pairs in deterministic order for display.
func SortedModulePairs(pairs map[ModulePair]int) []ModulePair {
	out := make([]ModulePair, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}
