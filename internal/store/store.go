// Package store abstracts the backing graph store. The lineage graph is
// persisted as property-graph rows (nodes and edges) behind a merge-upsert
// contract, so loading the same rows repeatedly never produces duplicates.
package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/fabriclens/engine/internal/models"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// Node kinds persisted in the store.
const (
	KindWorkspace      = "workspace"
	KindItem           = "item"
	KindExternalSource = "external_source"
	KindTable          = "table"
)

// NodeRow is one property-graph node. Props holds the marshaled domain
// entity keyed by Kind.
type NodeRow struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Kind      string         `gorm:"type:varchar(32);index;not null" json:"kind"`
	Name      string         `gorm:"type:varchar(512);index" json:"name"`
	Props     datatypes.JSON `gorm:"type:jsonb" json:"props"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName maps the row to its table.
func (NodeRow) TableName() string { return "lineage_nodes" }

// EdgeRow is one directed relationship between two node rows.
type EdgeRow struct {
	ID        string         `gorm:"primaryKey;type:varchar(160)" json:"id"`
	SourceID  string         `gorm:"type:varchar(64);index;not null" json:"source_id"`
	TargetID  string         `gorm:"type:varchar(64);index;not null" json:"target_id"`
	Type      string         `gorm:"type:varchar(32);index;not null" json:"type"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName maps the row to its table.
func (EdgeRow) TableName() string { return "lineage_edges" }

// GraphStore is the abstract backing store. Upserts are merge-create-or-
// update and safe to repeat; Clear performs the destructive full wipe used
// by full-refresh loads.
type GraphStore interface {
	UpsertNodes(ctx context.Context, rows []NodeRow) error
	UpsertEdges(ctx context.Context, rows []EdgeRow) error
	Clear(ctx context.Context) error
	CountNodes(ctx context.Context) (int64, error)
	CountEdges(ctx context.Context) (int64, error)
	LoadGraph(ctx context.Context) (*models.LineageGraph, error)
}

// NewNodeRow marshals a domain entity into a node row.
func NewNodeRow(id, kind, name string, entity any) (NodeRow, error) {
	props, err := json.Marshal(entity)
	if err != nil {
		return NodeRow{}, appErr.Wrap(err, appErr.CodeInternal, "marshal node props")
	}
	return NodeRow{ID: id, Kind: kind, Name: name, Props: datatypes.JSON(props)}, nil
}

// NewEdgeRow marshals a domain edge into an edge row.
func NewEdgeRow(e models.Edge) (EdgeRow, error) {
	var meta datatypes.JSON
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return EdgeRow{}, appErr.Wrap(err, appErr.CodeInternal, "marshal edge metadata")
		}
		meta = datatypes.JSON(b)
	}
	return EdgeRow{
		ID:       e.ID,
		SourceID: e.SourceID,
		TargetID: e.TargetID,
		Type:     string(e.Type),
		Metadata: meta,
	}, nil
}

// graphFromRows rebuilds a snapshot from persisted rows. Loader-derived
// containment edges are skipped; they are not part of the built snapshot.
func graphFromRows(nodes []NodeRow, edges []EdgeRow) (*models.LineageGraph, error) {
	g := &models.LineageGraph{
		Workspaces:      []models.Workspace{},
		Items:           []models.FabricItem{},
		ExternalSources: []models.ExternalSource{},
		Tables:          []models.Table{},
		Edges:           []models.Edge{},
	}

	for _, row := range nodes {
		switch row.Kind {
		case KindWorkspace:
			var w models.Workspace
			if err := json.Unmarshal(row.Props, &w); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal workspace row").WithMeta("id", row.ID)
			}
			g.Workspaces = append(g.Workspaces, w)
		case KindItem:
			var it models.FabricItem
			if err := json.Unmarshal(row.Props, &it); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal item row").WithMeta("id", row.ID)
			}
			g.Items = append(g.Items, it)
		case KindExternalSource:
			var s models.ExternalSource
			if err := json.Unmarshal(row.Props, &s); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal source row").WithMeta("id", row.ID)
			}
			g.ExternalSources = append(g.ExternalSources, s)
		case KindTable:
			var t models.Table
			if err := json.Unmarshal(row.Props, &t); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal table row").WithMeta("id", row.ID)
			}
			g.Tables = append(g.Tables, t)
		}
	}

	for _, row := range edges {
		if row.Type == string(models.EdgeTypeContains) {
			continue
		}
		e := models.Edge{
			ID:       row.ID,
			SourceID: row.SourceID,
			TargetID: row.TargetID,
			Type:     models.EdgeType(row.Type),
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &e.Metadata); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "unmarshal edge metadata").WithMeta("id", row.ID)
			}
		}
		g.Edges = append(g.Edges, e)
	}

	return g, nil
}
