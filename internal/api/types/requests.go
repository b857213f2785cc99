package types

// RefreshRequest triggers a rebuild-and-reload of the lineage graph.
type RefreshRequest struct {
	ClearExisting bool `json:"clear_existing"`
	// Async enqueues the refresh as a background task instead of running it
	// inline.
	Async bool `json:"async"`
}

// Documented parameter bounds for traversal queries. The service revalidates;
// these exist so handlers can clamp obvious junk before it travels further.
const (
	DefaultDepth = 5
	DefaultTopN  = 10
)
