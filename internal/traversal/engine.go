package traversal

import (
	"sort"
	"strings"

	"github.com/fabriclens/engine/internal/models"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// Traversal bounds. Caller-supplied depths must fall inside [MinDepth,
// MaxDepth]; pathfinding additionally enforces a hard hop cap regardless of
// what the caller asked for.
const (
	MinDepth        = 1
	MaxDepth        = 20
	shortestPathCap = 15
	maxCycleResults = 100
	maxChainResults = 200
)

// ReachableNode is one node in a bounded reachability result, carrying the
// minimum hop-depth at which it was first reached.
type ReachableNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Depth int    `json:"depth"`
}

// PathNode is one hop on a path.
type PathNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PathResult is the outcome of a shortest-path query.
type PathResult struct {
	Found bool       `json:"found"`
	Hops  int        `json:"hops"`
	Nodes []PathNode `json:"nodes,omitempty"`
}

// Cycle is one directed dependency cycle.
type Cycle struct {
	Length int        `json:"length"`
	Nodes  []PathNode `json:"nodes"`
}

// CrossBoundaryDependency is a dependency edge whose endpoints resolve to
// different workspaces.
type CrossBoundaryDependency struct {
	EdgeID          string `json:"edge_id"`
	SourceID        string `json:"source_id"`
	SourceName      string `json:"source_name"`
	SourceWorkspace string `json:"source_workspace"`
	TargetID        string `json:"target_id"`
	TargetName      string `json:"target_name"`
	TargetWorkspace string `json:"target_workspace"`
}

// CentralityEntry ranks one item by its degree sum.
type CentralityEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	InDegree       int    `json:"in_degree"`
	OutDegree      int    `json:"out_degree"`
	ExternalDegree int    `json:"external_degree"`
	Score          int    `json:"score"`
}

// ImpactedItem is one downstream item in a table impact result, with the
// shortest depth and one representative name-path from a direct consumer.
type ImpactedItem struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Depth int      `json:"depth"`
	Path  []string `json:"path"`
}

// TableImpactResult answers "what breaks if this table changes".
type TableImpactResult struct {
	Found           bool            `json:"found"`
	Table           *models.Table   `json:"table,omitempty"`
	DirectConsumers []ReachableNode `json:"direct_consumers"`
	DownstreamItems []ImpactedItem  `json:"downstream_items"`
}

// Chain is one maximal dependency path.
type Chain struct {
	Depth int        `json:"depth"`
	Nodes []PathNode `json:"nodes"`
}

// Engine runs bounded graph algorithms over an immutable index.
type Engine struct {
	idx *Index
}

// NewEngine indexes the snapshot and returns a query engine.
func NewEngine(g *models.LineageGraph) *Engine {
	return &Engine{idx: NewIndex(g)}
}

func validateDepth(maxDepth int) error {
	if maxDepth < MinDepth || maxDepth > MaxDepth {
		return appErr.Newf(appErr.CodeInvalid, "max depth must be between %d and %d", MinDepth, MaxDepth).
			WithMeta("max_depth", maxDepth)
	}
	return nil
}

// Upstream returns every node the given node reads from, directly or
// transitively, up to maxDepth hops. A nonexistent id yields an empty
// result, not an error.
func (e *Engine) Upstream(id string, maxDepth int) ([]ReachableNode, error) {
	if err := validateDepth(maxDepth); err != nil {
		return nil, err
	}
	return e.reach(id, maxDepth, e.idx.in, func(edge models.Edge) string { return edge.SourceID }), nil
}

// Downstream returns every node fed by the given node up to maxDepth hops.
func (e *Engine) Downstream(id string, maxDepth int) ([]ReachableNode, error) {
	if err := validateDepth(maxDepth); err != nil {
		return nil, err
	}
	return e.reach(id, maxDepth, e.idx.out, func(edge models.Edge) string { return edge.TargetID }), nil
}

// reach is a breadth-first bounded closure. Results are deduplicated by node
// identity: a node reachable via multiple paths appears once, at the
// shortest depth.
func (e *Engine) reach(start string, maxDepth int, adj map[string][]models.Edge, next func(models.Edge) string) []ReachableNode {
	result := []ReachableNode{}
	if !e.idx.has(start) {
		return result
	}

	type entry struct {
		id    string
		depth int
	}
	seen := map[string]int{start: 0}
	queue := []entry{{id: start}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range adj[cur.id] {
			nid := next(edge)
			if _, ok := seen[nid]; ok {
				continue
			}
			seen[nid] = cur.depth + 1
			result = append(result, ReachableNode{
				ID:    nid,
				Name:  e.idx.nodeName(nid),
				Type:  e.idx.nodeType(nid),
				Depth: cur.depth + 1,
			})
			queue = append(queue, entry{id: nid, depth: cur.depth + 1})
		}
	}
	return result
}

// ShortestPath finds an unweighted shortest path between two nodes, treating
// every edge type as undirected. The search never exceeds the hard hop cap,
// independent of the caller-supplied bound.
func (e *Engine) ShortestPath(from, to string, maxDepth int) (*PathResult, error) {
	if err := validateDepth(maxDepth); err != nil {
		return nil, err
	}
	limit := maxDepth
	if limit > shortestPathCap {
		limit = shortestPathCap
	}

	if !e.idx.has(from) || !e.idx.has(to) {
		return &PathResult{}, nil
	}
	if from == to {
		return &PathResult{Found: true, Nodes: []PathNode{{ID: from, Name: e.idx.nodeName(from)}}}, nil
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	depth := 0

	for len(queue) > 0 && depth < limit {
		depth++
		var nextQueue []string
		for _, cur := range queue {
			for _, nid := range e.idx.neighbors[cur] {
				if _, ok := prev[nid]; ok {
					continue
				}
				prev[nid] = cur
				if nid == to {
					return &PathResult{Found: true, Hops: depth, Nodes: e.assemblePath(prev, to)}, nil
				}
				nextQueue = append(nextQueue, nid)
			}
		}
		queue = nextQueue
	}
	return &PathResult{}, nil
}

func (e *Engine) assemblePath(prev map[string]string, to string) []PathNode {
	var rev []string
	for id := to; id != ""; id = prev[id] {
		rev = append(rev, id)
	}
	nodes := make([]PathNode, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		nodes = append(nodes, PathNode{ID: rev[i], Name: e.idx.nodeName(rev[i])})
	}
	return nodes
}

// FindCycles enumerates directed cycles in the internal dependency subgraph
// up to maxLen hops. Each traversal path carries its own visited set, so a
// cyclic graph terminates and duplicate rotations collapse to one cycle.
func (e *Engine) FindCycles(maxLen int) ([]Cycle, error) {
	if err := validateDepth(maxLen); err != nil {
		return nil, err
	}

	cycles := []Cycle{}
	seen := map[string]struct{}{}

	var walk func(start, cur string, path []string, onPath map[string]struct{})
	walk = func(start, cur string, path []string, onPath map[string]struct{}) {
		if len(cycles) >= maxCycleResults || len(path) > maxLen {
			return
		}
		for _, edge := range e.idx.out[cur] {
			if edge.Type != models.EdgeTypeInternal {
				continue
			}
			nid := edge.TargetID
			if nid == start {
				key := canonicalCycleKey(path)
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					nodes := make([]PathNode, 0, len(path))
					for _, id := range path {
						nodes = append(nodes, PathNode{ID: id, Name: e.idx.nodeName(id)})
					}
					cycles = append(cycles, Cycle{Length: len(path), Nodes: nodes})
				}
				continue
			}
			if _, visited := onPath[nid]; visited {
				continue
			}
			onPath[nid] = struct{}{}
			walk(start, nid, append(path, nid), onPath)
			delete(onPath, nid)
		}
	}

	for _, id := range sortedItemIDs(e.idx) {
		walk(id, id, []string{id}, map[string]struct{}{id: {}})
	}

	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i].Length != cycles[j].Length {
			return cycles[i].Length < cycles[j].Length
		}
		return cycles[i].Nodes[0].ID < cycles[j].Nodes[0].ID
	})
	return cycles, nil
}

// canonicalCycleKey rotates the cycle so its smallest id comes first, making
// every rotation of the same cycle hash identically.
func canonicalCycleKey(path []string) string {
	minAt := 0
	for i, id := range path {
		if id < path[minAt] {
			minAt = i
		}
	}
	parts := make([]string, 0, len(path))
	for i := 0; i < len(path); i++ {
		parts = append(parts, path[(minAt+i)%len(path)])
	}
	return strings.Join(parts, "->")
}

func sortedItemIDs(idx *Index) []string {
	ids := make([]string, 0, len(idx.items))
	for id := range idx.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CrossBoundaryDependencies returns internal dependency edges whose
// endpoints resolve to different workspaces.
func (e *Engine) CrossBoundaryDependencies() []CrossBoundaryDependency {
	deps := []CrossBoundaryDependency{}
	for _, id := range sortedItemIDs(e.idx) {
		for _, edge := range e.idx.out[id] {
			if edge.Type != models.EdgeTypeInternal {
				continue
			}
			srcWS := e.idx.itemWorkspace(edge.SourceID)
			dstWS := e.idx.itemWorkspace(edge.TargetID)
			if srcWS == "" || dstWS == "" || srcWS == dstWS {
				continue
			}
			deps = append(deps, CrossBoundaryDependency{
				EdgeID:          edge.ID,
				SourceID:        edge.SourceID,
				SourceName:      e.idx.nodeName(edge.SourceID),
				SourceWorkspace: e.idx.workspaces[srcWS].Name,
				TargetID:        edge.TargetID,
				TargetName:      e.idx.nodeName(edge.TargetID),
				TargetWorkspace: e.idx.workspaces[dstWS].Name,
			})
		}
	}
	return deps
}

// Centrality ranks items by in-degree + out-degree + external-degree. Ties
// break by name ascending so output ordering is deterministic.
func (e *Engine) Centrality(topN int) ([]CentralityEntry, error) {
	if topN < 1 || topN > 100 {
		return nil, appErr.Newf(appErr.CodeInvalid, "topN must be between 1 and 100").WithMeta("top_n", topN)
	}

	entries := make([]CentralityEntry, 0, len(e.idx.items))
	for id, it := range e.idx.items {
		entry := CentralityEntry{ID: id, Name: it.Name}
		for _, edge := range e.idx.in[id] {
			if edge.Type == models.EdgeTypeExternal {
				entry.ExternalDegree++
			} else {
				entry.InDegree++
			}
		}
		entry.OutDegree = countInternal(e.idx.out[id])
		entry.Score = entry.InDegree + entry.OutDegree + entry.ExternalDegree
		if entry.Score > 0 {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries, nil
}

func countInternal(edges []models.Edge) int {
	n := 0
	for _, e := range edges {
		if e.Type == models.EdgeTypeInternal {
			n++
		}
	}
	return n
}

// TableImpact resolves a table by exact id or case-insensitive name
// substring (first match wins), collects its direct consumers via mirror and
// uses-table edges, then expands each consumer's downstream closure up to
// maxDepth, merging by item id at the shortest depth with one representative
// name-path.
func (e *Engine) TableImpact(tableRef string, maxDepth int) (*TableImpactResult, error) {
	if strings.TrimSpace(tableRef) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "table reference must not be empty")
	}
	if err := validateDepth(maxDepth); err != nil {
		return nil, err
	}

	table, ok := e.resolveTable(tableRef)
	if !ok {
		return &TableImpactResult{DirectConsumers: []ReachableNode{}, DownstreamItems: []ImpactedItem{}}, nil
	}

	result := &TableImpactResult{
		Found:           true,
		Table:           &table,
		DirectConsumers: []ReachableNode{},
		DownstreamItems: []ImpactedItem{},
	}

	consumers := []string{}
	consumerSeen := map[string]struct{}{}
	for _, edge := range e.idx.tableOut[table.ID] {
		if _, dup := consumerSeen[edge.TargetID]; dup {
			continue
		}
		consumerSeen[edge.TargetID] = struct{}{}
		consumers = append(consumers, edge.TargetID)
		result.DirectConsumers = append(result.DirectConsumers, ReachableNode{
			ID:   edge.TargetID,
			Name: e.idx.nodeName(edge.TargetID),
			Type: e.idx.nodeType(edge.TargetID),
		})
	}

	merged := map[string]ImpactedItem{}
	for _, consumer := range consumers {
		e.expandImpact(consumer, maxDepth, consumerSeen, merged)
	}

	for _, item := range merged {
		result.DownstreamItems = append(result.DownstreamItems, item)
	}
	sort.Slice(result.DownstreamItems, func(i, j int) bool {
		a, b := result.DownstreamItems[i], result.DownstreamItems[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.Name < b.Name
	})
	return result, nil
}

func (e *Engine) resolveTable(ref string) (models.Table, bool) {
	if t, ok := e.idx.tables[ref]; ok {
		return t, true
	}
	needle := strings.ToLower(ref)
	for _, id := range e.idx.tableOrder {
		t := e.idx.tables[id]
		if strings.Contains(strings.ToLower(t.Name), needle) {
			return t, true
		}
	}
	return models.Table{}, false
}

// expandImpact walks the internal dependency closure below one direct
// consumer, recording each newly reached item (or a shorter route to one).
func (e *Engine) expandImpact(consumer string, maxDepth int, directs map[string]struct{}, merged map[string]ImpactedItem) {
	type entry struct {
		id    string
		depth int
		path  []string
	}
	queue := []entry{{id: consumer, path: []string{e.idx.nodeName(consumer)}}}
	seen := map[string]int{consumer: 0}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range e.idx.out[cur.id] {
			if edge.Type != models.EdgeTypeInternal {
				continue
			}
			nid := edge.TargetID
			if d, ok := seen[nid]; ok && d <= cur.depth+1 {
				continue
			}
			seen[nid] = cur.depth + 1
			path := append(append([]string{}, cur.path...), e.idx.nodeName(nid))
			if _, direct := directs[nid]; !direct {
				if existing, ok := merged[nid]; !ok || cur.depth+1 < existing.Depth {
					merged[nid] = ImpactedItem{
						ID:    nid,
						Name:  e.idx.nodeName(nid),
						Depth: cur.depth + 1,
						Path:  path,
					}
				}
			}
			queue = append(queue, entry{id: nid, depth: cur.depth + 1, path: path})
		}
	}
}

// DeepChains enumerates maximal internal dependency paths with at least
// minDepth hops, deepest first. A path is maximal when it starts at a node
// with no internal producer and cannot extend further downstream.
func (e *Engine) DeepChains(minDepth int) ([]Chain, error) {
	if err := validateDepth(minDepth); err != nil {
		return nil, err
	}

	chains := []Chain{}
	var walk func(cur string, path []string, onPath map[string]struct{})
	walk = func(cur string, path []string, onPath map[string]struct{}) {
		if len(chains) >= maxChainResults {
			return
		}
		extended := false
		for _, edge := range e.idx.out[cur] {
			if edge.Type != models.EdgeTypeInternal {
				continue
			}
			if _, visited := onPath[edge.TargetID]; visited {
				continue
			}
			extended = true
			onPath[edge.TargetID] = struct{}{}
			walk(edge.TargetID, append(path, edge.TargetID), onPath)
			delete(onPath, edge.TargetID)
		}
		if !extended && len(path)-1 >= minDepth {
			nodes := make([]PathNode, 0, len(path))
			for _, id := range path {
				nodes = append(nodes, PathNode{ID: id, Name: e.idx.nodeName(id)})
			}
			chains = append(chains, Chain{Depth: len(path) - 1, Nodes: nodes})
		}
	}

	for _, id := range sortedItemIDs(e.idx) {
		if countInternal(e.idx.in[id]) > 0 {
			continue
		}
		walk(id, []string{id}, map[string]struct{}{id: {}})
	}

	sort.Slice(chains, func(i, j int) bool {
		if chains[i].Depth != chains[j].Depth {
			return chains[i].Depth > chains[j].Depth
		}
		return chains[i].Nodes[0].ID < chains[j].Nodes[0].ID
	})
	return chains, nil
}
