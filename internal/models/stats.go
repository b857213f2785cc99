package models

// ConnectedNode is a node ranked by its connection count.
type ConnectedNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

// GraphStats summarizes a built snapshot.
type GraphStats struct {
	WorkspaceCount      int `json:"workspace_count"`
	ItemCount           int `json:"item_count"`
	ExternalSourceCount int `json:"external_source_count"`
	TableCount          int `json:"table_count"`
	EdgeCount           int `json:"edge_count"`

	// SkippedRecords counts records dropped for malformed connections.
	// Build is best-effort over noisy exports; a skip is never fatal.
	SkippedRecords int `json:"skipped_records"`

	ItemsByType   map[string]int `json:"items_by_type"`
	SourcesByType map[string]int `json:"sources_by_type"`
	EdgesByType   map[string]int `json:"edges_by_type"`

	TopConnectedItems   []ConnectedNode `json:"top_connected_items"`
	TopConnectedSources []ConnectedNode `json:"top_connected_sources"`
}
