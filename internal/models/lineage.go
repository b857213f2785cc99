package models

import "time"

// Workspace is a container of platform items.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FabricItem is a workspace-scoped platform asset (lakehouse, pipeline,
// mirrored database, ...). WorkspaceID is a back-reference, not ownership.
type FabricItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspace_id"`
}

// ExternalSource is a data source outside the item graph. Its ID is a
// deterministic hash of the connection signature, so identical connections
// always collapse to one node no matter how many records reference them.
type ExternalSource struct {
	ID                string            `json:"id"`
	Type              string            `json:"type"`
	DisplayName       string            `json:"display_name"`
	ConnectionDetails map[string]string `json:"connection_details,omitempty"`
}

// TableType classifies how a table reference entered the graph.
type TableType string

const (
	TableTypeShortcut TableType = "shortcut"
	TableTypeExternal TableType = "external"
	TableTypeMirrored TableType = "mirrored"
)

// Table is a table-level reference extracted from a path or a
// database.schema.table triple. Its ID is a deterministic hash of
// (SourceItemID, FullPath).
type Table struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Schema       string    `json:"schema,omitempty"`
	Database     string    `json:"database,omitempty"`
	FullPath     string    `json:"full_path"`
	TableType    TableType `json:"table_type"`
	SourceItemID string    `json:"source_item_id"`
}

// EdgeType enumerates the relationship kinds in the lineage graph.
type EdgeType string

const (
	EdgeTypeInternal      EdgeType = "internal"
	EdgeTypeExternal      EdgeType = "external"
	EdgeTypeMirror        EdgeType = "mirror"
	EdgeTypeUsesTable     EdgeType = "uses_table"
	EdgeTypeProvidesTable EdgeType = "provides_table"

	// EdgeTypeContains links a workspace to the items it holds. These edges
	// are materialized by the loader, not by the builder.
	EdgeTypeContains EdgeType = "contains"
)

// Edge is a directed relationship between two nodes. ID doubles as the sole
// deduplication key.
type Edge struct {
	ID       string            `json:"id"`
	SourceID string            `json:"source_id"`
	TargetID string            `json:"target_id"`
	Type     EdgeType          `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LineageGraph is an immutable snapshot built wholesale from one export.
type LineageGraph struct {
	Workspaces      []Workspace      `json:"workspaces"`
	Items           []FabricItem     `json:"items"`
	ExternalSources []ExternalSource `json:"external_sources"`
	Tables          []Table          `json:"tables"`
	Edges           []Edge           `json:"edges"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Source          string           `json:"source"`
}

// ItemByID returns the item with the given id, or nil.
func (g *LineageGraph) ItemByID(id string) *FabricItem {
	for i := range g.Items {
		if g.Items[i].ID == id {
			return &g.Items[i]
		}
	}
	return nil
}
