// Package traversal answers read-only reachability and analytics queries
// over a lineage snapshot. Every operation is side-effect-free and bounded:
// caller-supplied depths are validated up front and cyclic graphs can never
// cause non-termination.
package traversal

import (
	"github.com/fabriclens/engine/internal/models"
)

// Index is an in-memory adjacency structure over one snapshot. It is built
// once and never mutated, so any number of queries may run concurrently.
type Index struct {
	workspaces map[string]models.Workspace
	items      map[string]models.FabricItem
	sources    map[string]models.ExternalSource
	tables     map[string]models.Table

	// out/in hold dependency and consumption edges (internal, external) in
	// flow direction: source feeds target.
	out map[string][]models.Edge
	in  map[string][]models.Edge

	// tableOut holds mirror/uses_table edges from table nodes to consumers.
	tableOut map[string][]models.Edge

	// neighbors is the undirected view over every edge type, used only for
	// pathfinding.
	neighbors map[string][]string

	tableOrder []string
}

// NewIndex builds the adjacency structure from a snapshot.
func NewIndex(g *models.LineageGraph) *Index {
	idx := &Index{
		workspaces: map[string]models.Workspace{},
		items:      map[string]models.FabricItem{},
		sources:    map[string]models.ExternalSource{},
		tables:     map[string]models.Table{},
		out:        map[string][]models.Edge{},
		in:         map[string][]models.Edge{},
		tableOut:   map[string][]models.Edge{},
		neighbors:  map[string][]string{},
	}
	if g == nil {
		return idx
	}

	for _, w := range g.Workspaces {
		idx.workspaces[w.ID] = w
	}
	for _, it := range g.Items {
		idx.items[it.ID] = it
	}
	for _, s := range g.ExternalSources {
		idx.sources[s.ID] = s
	}
	for _, t := range g.Tables {
		idx.tables[t.ID] = t
		idx.tableOrder = append(idx.tableOrder, t.ID)
	}

	for _, e := range g.Edges {
		switch e.Type {
		case models.EdgeTypeInternal, models.EdgeTypeExternal:
			idx.out[e.SourceID] = append(idx.out[e.SourceID], e)
			idx.in[e.TargetID] = append(idx.in[e.TargetID], e)
		case models.EdgeTypeMirror, models.EdgeTypeUsesTable:
			idx.tableOut[e.SourceID] = append(idx.tableOut[e.SourceID], e)
		}
		idx.neighbors[e.SourceID] = append(idx.neighbors[e.SourceID], e.TargetID)
		idx.neighbors[e.TargetID] = append(idx.neighbors[e.TargetID], e.SourceID)
	}

	return idx
}

// has reports whether any node with the id exists.
func (idx *Index) has(id string) bool {
	if _, ok := idx.items[id]; ok {
		return true
	}
	if _, ok := idx.sources[id]; ok {
		return true
	}
	if _, ok := idx.tables[id]; ok {
		return true
	}
	_, ok := idx.workspaces[id]
	return ok
}

// nodeName resolves a display name for any node id.
func (idx *Index) nodeName(id string) string {
	if it, ok := idx.items[id]; ok {
		return it.Name
	}
	if s, ok := idx.sources[id]; ok {
		return s.DisplayName
	}
	if t, ok := idx.tables[id]; ok {
		return t.Name
	}
	if w, ok := idx.workspaces[id]; ok {
		return w.Name
	}
	return id
}

// nodeType resolves a node's type label.
func (idx *Index) nodeType(id string) string {
	if it, ok := idx.items[id]; ok {
		return it.Type
	}
	if _, ok := idx.sources[id]; ok {
		return "external_source"
	}
	if _, ok := idx.tables[id]; ok {
		return "table"
	}
	if _, ok := idx.workspaces[id]; ok {
		return "workspace"
	}
	return ""
}

// itemWorkspace resolves an item id to its workspace id, or "".
func (idx *Index) itemWorkspace(id string) string {
	if it, ok := idx.items[id]; ok {
		return it.WorkspaceID
	}
	return ""
}
