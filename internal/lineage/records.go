package lineage

import (
	"encoding/json"
	"strings"

	appErr "github.com/fabriclens/engine/pkg/errors"
)

// MirroredTable is one replicated table entry on a mirrored-database record.
type MirroredTable struct {
	SchemaName string `json:"schemaName"`
	TableName  string `json:"tableName"`
	Status     string `json:"status"`
}

// Record is one flat row of a lineage export. Column names follow the export
// document verbatim; the legacy tabular form uses the same columns.
type Record struct {
	WorkspaceID   string `json:"Workspace ID"`
	WorkspaceName string `json:"Workspace Name"`
	ItemID        string `json:"Item ID"`
	ItemName      string `json:"Item Name"`
	ItemType      string `json:"Item Type"`

	// SourceConnection is a loosely-typed connection descriptor: an object,
	// an array of objects, or a legacy string.
	SourceConnection any    `json:"Source Connection"`
	SourceType       string `json:"Source Type"`

	ShortcutName string `json:"Shortcut Name"`
	ShortcutPath string `json:"Shortcut Path"`

	// FullDefinition carries the connection definition of a mirrored database.
	FullDefinition any             `json:"Full Definition"`
	MirroredTables []MirroredTable `json:"Mirrored Tables"`
}

// ExportDocument is the canonical export envelope.
type ExportDocument struct {
	Lineage []Record `json:"lineage"`
}

// ParseExport decodes an export payload into records. It accepts the
// canonical {"lineage": [...]} envelope as well as the legacy form where the
// payload is a bare array of rows.
func ParseExport(data []byte) ([]Record, error) {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var rows []Record
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeParse, "decode legacy export rows")
		}
		return rows, nil
	}

	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeParse, "decode export document")
	}
	if doc.Lineage == nil {
		return nil, appErr.New(appErr.CodeParse, "export document has no lineage array")
	}
	return doc.Lineage, nil
}

// sentinel values that exports emit for missing identifiers.
func isMissing(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return true
	}
	return false
}
