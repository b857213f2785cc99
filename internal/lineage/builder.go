package lineage

import (
	"fmt"
	"time"

	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/pkg/hash"
)

// buildContext owns every lookup table for a single build invocation. No
// state survives across builds; rebuilding from identical input yields
// identical node and edge id sets.
type buildContext struct {
	graph *models.LineageGraph

	workspaceIdx map[string]struct{}
	itemIdx      map[string]struct{}
	known        map[string]struct{}
	sourceIdx    map[string]struct{}
	tableIdx     map[string]struct{}
	edgeIdx      map[string]struct{}

	skipped int
}

func newBuildContext(source string) *buildContext {
	return &buildContext{
		graph: &models.LineageGraph{
			Workspaces:      []models.Workspace{},
			Items:           []models.FabricItem{},
			ExternalSources: []models.ExternalSource{},
			Tables:          []models.Table{},
			Edges:           []models.Edge{},
			GeneratedAt:     time.Now().UTC(),
			Source:          source,
		},
		workspaceIdx: map[string]struct{}{},
		itemIdx:      map[string]struct{}{},
		known:        map[string]struct{}{},
		sourceIdx:    map[string]struct{}{},
		tableIdx:     map[string]struct{}{},
		edgeIdx:      map[string]struct{}{},
	}
}

// BuildGraph turns a flat record stream into a deduplicated lineage snapshot
// plus derived stats. Construction is best-effort: records with malformed
// connections are skipped and counted, never fatal.
//
// Two full passes are required. Pass 1 collects the workspace and item node
// sets; Pass 2 re-scans every record to build edges, because classifying a
// OneLake reference as internal or external needs the complete known-item
// set from Pass 1.
func BuildGraph(records []Record, source string) (*models.LineageGraph, *models.GraphStats) {
	ctx := newBuildContext(source)

	for i := range records {
		ctx.collectNodes(&records[i])
	}
	for i := range records {
		ctx.collectEdges(&records[i])
	}

	stats := computeStats(ctx.graph, ctx.skipped)
	return ctx.graph, stats
}

// collectNodes is Pass 1: workspaces and items only.
func (c *buildContext) collectNodes(rec *Record) {
	if !isMissing(rec.WorkspaceID) {
		if _, ok := c.workspaceIdx[rec.WorkspaceID]; !ok {
			c.workspaceIdx[rec.WorkspaceID] = struct{}{}
			c.graph.Workspaces = append(c.graph.Workspaces, models.Workspace{
				ID:   rec.WorkspaceID,
				Name: rec.WorkspaceName,
			})
		}
	}
	if !isMissing(rec.ItemID) {
		if _, ok := c.itemIdx[rec.ItemID]; !ok {
			c.itemIdx[rec.ItemID] = struct{}{}
			c.known[rec.ItemID] = struct{}{}
			c.graph.Items = append(c.graph.Items, models.FabricItem{
				ID:          rec.ItemID,
				Name:        rec.ItemName,
				Type:        rec.ItemType,
				WorkspaceID: rec.WorkspaceID,
			})
		}
	}
}

// collectEdges is Pass 2: connections, tables, and mirrored tables.
func (c *buildContext) collectEdges(rec *Record) {
	if isMissing(rec.ItemID) {
		return
	}
	if rec.SourceConnection != nil {
		c.handleConnection(rec)
	}
	if len(rec.MirroredTables) > 0 {
		c.handleMirroredTables(rec)
	}
}

func (c *buildContext) handleConnection(rec *Record) {
	ref, err := Normalize(rec.SourceConnection)
	if err != nil {
		c.skipped++
		return
	}

	switch v := ref.(type) {
	case OneLakeRef:
		c.handleOneLake(rec, v)
	case SnowflakeRef:
		sourceID := c.addSource(v)
		c.addEdge(sourceID, rec.ItemID, models.EdgeTypeExternal, map[string]string{"source_type": v.Kind()})
		if v.Table != "" {
			tableID := c.addTable(sourceID, TableRef{Schema: v.Schema, Name: v.Table}, v.Database, v.FullPath(), models.TableTypeExternal)
			c.addTableEdges(sourceID, tableID, rec.ItemID, models.EdgeTypeUsesTable)
		}
	case BlobRef:
		c.handlePathSource(rec, v, v.Path)
	case S3Ref:
		c.handlePathSource(rec, v, v.Key)
	default:
		sourceID := c.addSource(ref)
		c.addEdge(sourceID, rec.ItemID, models.EdgeTypeExternal, map[string]string{"source_type": ref.Kind()})
	}
}

// handleOneLake classifies a OneLake reference. A reference to a known item
// becomes an internal dependency edge; an absent or unknown item id is
// downgraded to an external source, never an error.
func (c *buildContext) handleOneLake(rec *Record, ref OneLakeRef) {
	path := ref.Path
	if path == "" {
		path = rec.ShortcutPath
	}

	_, known := c.known[ref.ItemID]
	if ref.ItemID != "" && known && ref.ItemID != rec.ItemID {
		meta := map[string]string{}
		if rec.ShortcutName != "" {
			meta["shortcut_name"] = rec.ShortcutName
		}
		if path != "" {
			meta["shortcut_path"] = path
		}
		c.addEdge(ref.ItemID, rec.ItemID, models.EdgeTypeInternal, meta)
		if tr, ok := ParseTablePath(path); ok {
			tableID := c.addTable(ref.ItemID, tr, "", path, models.TableTypeShortcut)
			c.addTableEdges(ref.ItemID, tableID, rec.ItemID, models.EdgeTypeUsesTable)
		}
		return
	}

	sourceID := c.addSource(ref)
	c.addEdge(sourceID, rec.ItemID, models.EdgeTypeExternal, map[string]string{"source_type": ref.Kind()})
	if tr, ok := ParseTablePath(path); ok {
		tableID := c.addTable(sourceID, tr, "", path, models.TableTypeShortcut)
		c.addTableEdges(sourceID, tableID, rec.ItemID, models.EdgeTypeUsesTable)
	}
}

func (c *buildContext) handlePathSource(rec *Record, ref Ref, path string) {
	sourceID := c.addSource(ref)
	c.addEdge(sourceID, rec.ItemID, models.EdgeTypeExternal, map[string]string{"source_type": ref.Kind()})
	if tr, ok := ParseTablePath(path); ok {
		tableID := c.addTable(sourceID, tr, "", path, models.TableTypeExternal)
		c.addTableEdges(sourceID, tableID, rec.ItemID, models.EdgeTypeUsesTable)
	}
}

// handleMirroredTables links replicated tables to the mirroring item. When
// the record carries a parseable full definition, the upstream database
// becomes an external source shared by every item mirroring it, so the same
// table collapses to one node across items.
func (c *buildContext) handleMirroredTables(rec *Record) {
	providerID := ""
	if rec.FullDefinition != nil {
		if ref, err := Normalize(rec.FullDefinition); err == nil {
			providerID = c.addSource(ref)
			c.addEdge(providerID, rec.ItemID, models.EdgeTypeExternal, map[string]string{"source_type": ref.Kind()})
		} else {
			c.skipped++
		}
	}

	for _, mt := range rec.MirroredTables {
		if isMissing(mt.TableName) {
			continue
		}
		fullPath := mt.TableName
		if mt.SchemaName != "" {
			fullPath = mt.SchemaName + "." + mt.TableName
		}
		tableID := c.addTable(providerID, TableRef{Schema: mt.SchemaName, Name: mt.TableName}, "", fullPath, models.TableTypeMirrored)
		meta := map[string]string{}
		if mt.Status != "" {
			meta["status"] = mt.Status
		}
		c.addEdge(tableID, rec.ItemID, models.EdgeTypeMirror, meta)
		if providerID != "" {
			c.addEdge(providerID, tableID, models.EdgeTypeProvidesTable, nil)
		}
	}
}

func (c *buildContext) addSource(ref Ref) string {
	id := RefID(ref)
	if _, ok := c.sourceIdx[id]; !ok {
		c.sourceIdx[id] = struct{}{}
		c.graph.ExternalSources = append(c.graph.ExternalSources, models.ExternalSource{
			ID:                id,
			Type:              ref.Kind(),
			DisplayName:       ref.Display(),
			ConnectionDetails: Details(ref),
		})
	}
	return id
}

func (c *buildContext) addTable(sourceID string, tr TableRef, database, fullPath string, typ models.TableType) string {
	id := hash.Signature(sourceID, fullPath)
	if _, ok := c.tableIdx[id]; !ok {
		c.tableIdx[id] = struct{}{}
		c.graph.Tables = append(c.graph.Tables, models.Table{
			ID:           id,
			Name:         tr.Name,
			Schema:       tr.Schema,
			Database:     database,
			FullPath:     fullPath,
			TableType:    typ,
			SourceItemID: sourceID,
		})
	}
	return id
}

// addTableEdges wires a table between its provider and its consumer.
func (c *buildContext) addTableEdges(providerID, tableID, consumerID string, consumeType models.EdgeType) {
	if providerID != "" {
		c.addEdge(providerID, tableID, models.EdgeTypeProvidesTable, nil)
	}
	c.addEdge(tableID, consumerID, consumeType, nil)
}

// addEdge inserts an edge unless its id was already seen. The id is the sole
// deduplication key: many records inducing the same dependency collapse to
// one edge.
func (c *buildContext) addEdge(src, dst string, typ models.EdgeType, metadata map[string]string) {
	id := EdgeID(src, dst, typ)
	if _, ok := c.edgeIdx[id]; ok {
		return
	}
	c.edgeIdx[id] = struct{}{}
	c.graph.Edges = append(c.graph.Edges, models.Edge{
		ID:       id,
		SourceID: src,
		TargetID: dst,
		Type:     typ,
		Metadata: metadata,
	})
}

// EdgeID builds the edge identity. Internal and external dependency edges
// key on the endpoint pair alone; table-level relation types include the
// type so distinct relations between the same pair can coexist.
func EdgeID(src, dst string, typ models.EdgeType) string {
	switch typ {
	case models.EdgeTypeInternal, models.EdgeTypeExternal:
		return fmt.Sprintf("%s->%s", src, dst)
	default:
		return fmt.Sprintf("%s->%s#%s", src, dst, typ)
	}
}
