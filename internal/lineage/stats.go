package lineage

import (
	"sort"

	"github.com/fabriclens/engine/internal/models"
)

const topConnectedLimit = 10

// computeStats derives summary counts and top-connected rankings from a
// snapshot. Items rank by in-degree, sources by out-degree; ties break by
// name ascending so output ordering is deterministic.
func computeStats(g *models.LineageGraph, skipped int) *models.GraphStats {
	stats := &models.GraphStats{
		WorkspaceCount:      len(g.Workspaces),
		ItemCount:           len(g.Items),
		ExternalSourceCount: len(g.ExternalSources),
		TableCount:          len(g.Tables),
		EdgeCount:           len(g.Edges),
		SkippedRecords:      skipped,
		ItemsByType:         map[string]int{},
		SourcesByType:       map[string]int{},
		EdgesByType:         map[string]int{},
	}

	for _, it := range g.Items {
		stats.ItemsByType[it.Type]++
	}
	for _, src := range g.ExternalSources {
		stats.SourcesByType[src.Type]++
	}

	inDegree := map[string]int{}
	outDegree := map[string]int{}
	for _, e := range g.Edges {
		stats.EdgesByType[string(e.Type)]++
		inDegree[e.TargetID]++
		outDegree[e.SourceID]++
	}

	items := make([]models.ConnectedNode, 0, len(g.Items))
	for _, it := range g.Items {
		if d := inDegree[it.ID]; d > 0 {
			items = append(items, models.ConnectedNode{ID: it.ID, Name: it.Name, Connections: d})
		}
	}
	stats.TopConnectedItems = rankConnected(items)

	sources := make([]models.ConnectedNode, 0, len(g.ExternalSources))
	for _, src := range g.ExternalSources {
		if d := outDegree[src.ID]; d > 0 {
			sources = append(sources, models.ConnectedNode{ID: src.ID, Name: src.DisplayName, Connections: d})
		}
	}
	stats.TopConnectedSources = rankConnected(sources)

	return stats
}

func rankConnected(nodes []models.ConnectedNode) []models.ConnectedNode {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Connections != nodes[j].Connections {
			return nodes[i].Connections > nodes[j].Connections
		}
		return nodes[i].Name < nodes[j].Name
	})
	if len(nodes) > topConnectedLimit {
		nodes = nodes[:topConnectedLimit]
	}
	return nodes
}
