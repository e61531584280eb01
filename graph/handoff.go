package graph

import (
	"fmt"
	"sort"
	"sync"
)

// HandoffGraph is the directed graph of permitted agent-to-agent handoffs.
//
// An edge from → to means agent from may transfer control to agent to.
// The graph is the single source of truth for routing: the engine rejects
// any route not backed by an edge.
type HandoffGraph struct {
	mu    sync.RWMutex
	nodes map[string]struct{}
	edges map[string]map[string]struct{}
}

// NewHandoffGraph creates an empty graph.
func NewHandoffGraph() *HandoffGraph {
	return &HandoffGraph{
		nodes: make(map[string]struct{}),
		edges: make(map[string]map[string]struct{}),
	}
}

// AddNode declares an agent. Adding an existing node is a no-op.
func (g *HandoffGraph) AddNode(id string) error {
	if id == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[id] = struct{}{}
	return nil
}

// AddEdge permits from to hand off to to. Both nodes must already exist.
func (g *HandoffGraph) AddEdge(from, to string) error {
	if from == to {
		return &EngineError{
			Message: fmt.Sprintf("agent %s cannot hand off to itself", from),
			Code:    CodeHandoffRejected,
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{from, to} {
		if _, ok := g.nodes[id]; !ok {
			return &EngineError{
				Message: "unknown node: " + id,
				Code:    CodeNodeNotFound,
			}
		}
	}

	if g.edges[from] == nil {
		g.edges[from] = make(map[string]struct{})
	}
	g.edges[from][to] = struct{}{}
	return nil
}

// HasNode reports whether id was declared.
func (g *HandoffGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Allows reports whether the edge from → to exists.
func (g *HandoffGraph) Allows(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[from][to]
	return ok
}

// Targets returns the handoff targets of from, sorted.
func (g *HandoffGraph) Targets(from string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.edges[from]))
	for to := range g.edges[from] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every declared node, sorted.
func (g *HandoffGraph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Validate checks that root exists. Nodes unreachable from root are
// permitted but returned so callers can warn about them.
func (g *HandoffGraph) Validate(root string) (unreachable []string, err error) {
	if root == "" {
		return nil, &EngineError{Message: "root agent not set", Code: CodeNoStartNode}
	}
	if !g.HasNode(root) {
		return nil, &EngineError{Message: "root agent does not exist: " + root, Code: CodeNodeNotFound}
	}

	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Targets(cur) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, id := range g.Nodes() {
		if !seen[id] {
			unreachable = append(unreachable, id)
		}
	}
	return unreachable, nil
}
