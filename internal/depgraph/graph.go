package depgraph

import (
	"sort"
	"sync"
)

// Graph is an in-memory directed dependency graph.
//
// Nodes are keyed by ID. Edges are unique per (source, target, kind);
// re-adding an existing edge merges its symbol list instead of duplicating
// the edge. Self-loops are rejected. Adjacency maps keep degree and
// neighbor queries O(result).
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	// outgoing[source][target] and incoming[target][source] point at the
	// same Edge values.
	outgoing map[string]map[string]*Edge
	incoming map[string]map[string]*Edge

	edgeCount int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string]map[string]*Edge),
		incoming: make(map[string]map[string]*Edge),
	}
}

// AddNode inserts a node, replacing any existing node with the same ID.
func (g *Graph) AddNode(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[node.ID] = node
}

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// AddEdge inserts an imports edge. Both endpoints must already exist.
// A duplicate (source, target, kind) merges symbols and reports false;
// self-loops are rejected and report false.
func (g *Graph) AddEdge(source, target string, symbols []string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if source == target {
		return false
	}
	if g.nodes[source] == nil || g.nodes[target] == nil {
		return false
	}

	if existing, ok := g.outgoing[source][target]; ok {
		existing.Symbols = mergeSymbols(existing.Symbols, symbols)
		return false
	}

	edge := &Edge{
		Source:  source,
		Target:  target,
		Kind:    EdgeImports,
		Symbols: sortedStrings(symbols),
	}
	if g.outgoing[source] == nil {
		g.outgoing[source] = make(map[string]*Edge)
	}
	g.outgoing[source][target] = edge
	if g.incoming[target] == nil {
		g.incoming[target] = make(map[string]*Edge)
	}
	g.incoming[target][source] = edge
	g.edgeCount++
	return true
}

// HasEdge reports whether a direct source→target edge exists.
func (g *Graph) HasEdge(source, target string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.outgoing[source][target]
	return ok
}

// GetEdge returns the edge between the ordered pair, or nil.
func (g *Graph) GetEdge(source, target string) *Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.outgoing[source][target]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// Nodes returns all node IDs in sorted order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodesByKind returns IDs of nodes with the given kind, sorted.
func (g *Graph) NodesByKind(kind NodeKind) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for id, n := range g.nodes {
		if n.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges, ordered by (source, target).
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := make([]*Edge, 0, g.edgeCount)
	for _, targets := range g.outgoing {
		for _, e := range targets {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// Successors returns target IDs of outgoing edges, sorted.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for target := range g.outgoing[id] {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Predecessors returns source IDs of incoming edges, sorted.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var in []string
	for source := range g.incoming[id] {
		in = append(in, source)
	}
	sort.Strings(in)
	return in
}

// OutDegree returns the number of outgoing edges.
func (g *Graph) OutDegree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.outgoing[id])
}

// InDegree returns the number of incoming edges.
func (g *Graph) InDegree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incoming[id])
}

// mergeSymbols unions two symbol lists, sorted.
func mergeSymbols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
