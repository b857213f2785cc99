package traversal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclens/engine/internal/models"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

func item(id, name, ws string) models.FabricItem {
	return models.FabricItem{ID: id, Name: name, Type: "DataPipeline", WorkspaceID: ws}
}

func internalEdge(src, dst string) models.Edge {
	return models.Edge{ID: src + "->" + dst, SourceID: src, TargetID: dst, Type: models.EdgeTypeInternal}
}

// chainGraph is a -> b -> c -> d in two workspaces.
func chainGraph() *models.LineageGraph {
	return &models.LineageGraph{
		Workspaces: []models.Workspace{{ID: "ws-1", Name: "One"}, {ID: "ws-2", Name: "Two"}},
		Items: []models.FabricItem{
			item("a", "Alpha", "ws-1"),
			item("b", "Bravo", "ws-1"),
			item("c", "Charlie", "ws-2"),
			item("d", "Delta", "ws-2"),
		},
		Edges: []models.Edge{
			internalEdge("a", "b"),
			internalEdge("b", "c"),
			internalEdge("c", "d"),
		},
	}
}

func TestDownstreamDepths(t *testing.T) {
	eng := NewEngine(chainGraph())

	nodes, err := eng.Downstream("a", 2)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].ID)
	assert.Equal(t, 1, nodes[0].Depth)
	assert.Equal(t, "c", nodes[1].ID)
	assert.Equal(t, 2, nodes[1].Depth)
}

func TestUpstreamDepths(t *testing.T) {
	eng := NewEngine(chainGraph())

	nodes, err := eng.Upstream("d", 3)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "c", nodes[0].ID)
	assert.Equal(t, "a", nodes[2].ID)
	assert.Equal(t, 3, nodes[2].Depth)
}

func TestReachabilityValidatesDepth(t *testing.T) {
	eng := NewEngine(chainGraph())
	for _, depth := range []int{0, -1, 21} {
		_, err := eng.Downstream("a", depth)
		require.Error(t, err)
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	}
}

func TestReachabilityMissingNodeYieldsEmpty(t *testing.T) {
	eng := NewEngine(chainGraph())
	nodes, err := eng.Downstream("no-such-node", 5)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestReachabilityDedupAtShortestDepth(t *testing.T) {
	// Diamond: a feeds b and c, both feed d.
	g := &models.LineageGraph{
		Items: []models.FabricItem{item("a", "A", ""), item("b", "B", ""), item("c", "C", ""), item("d", "D", "")},
		Edges: []models.Edge{
			internalEdge("a", "b"),
			internalEdge("a", "c"),
			internalEdge("b", "d"),
			internalEdge("c", "d"),
			internalEdge("a", "d"),
		},
	}
	nodes, err := NewEngine(g).Downstream("a", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	for _, n := range nodes {
		if n.ID == "d" {
			assert.Equal(t, 1, n.Depth)
		}
	}
}

func TestTraversalTerminatesOnCycles(t *testing.T) {
	g := &models.LineageGraph{
		Items: []models.FabricItem{item("a", "A", ""), item("b", "B", "")},
		Edges: []models.Edge{internalEdge("a", "b"), internalEdge("b", "a")},
	}
	eng := NewEngine(g)

	nodes, err := eng.Downstream("a", 20)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestFindCyclesDeduplicatesRotations(t *testing.T) {
	g := &models.LineageGraph{
		Items: []models.FabricItem{item("a", "A", ""), item("b", "B", ""), item("c", "C", "")},
		Edges: []models.Edge{
			internalEdge("a", "b"),
			internalEdge("b", "c"),
			internalEdge("c", "a"),
		},
	}
	cycles, err := NewEngine(g).FindCycles(10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, 3, cycles[0].Length)
}

func TestFindCyclesNoneInDAG(t *testing.T) {
	cycles, err := NewEngine(chainGraph()).FindCycles(10)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestShortestPathUndirected(t *testing.T) {
	// b and c both consume external source s; no directed route b->c exists.
	g := &models.LineageGraph{
		Items:           []models.FabricItem{item("b", "B", ""), item("c", "C", "")},
		ExternalSources: []models.ExternalSource{{ID: "s", Type: "snowflake", DisplayName: "CRM"}},
		Edges: []models.Edge{
			{ID: "s->b", SourceID: "s", TargetID: "b", Type: models.EdgeTypeExternal},
			{ID: "s->c", SourceID: "s", TargetID: "c", Type: models.EdgeTypeExternal},
		},
	}
	res, err := NewEngine(g).ShortestPath("b", "c", 10)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 2, res.Hops)
	require.Len(t, res.Nodes, 3)
	assert.Equal(t, "b", res.Nodes[0].ID)
	assert.Equal(t, "s", res.Nodes[1].ID)
	assert.Equal(t, "c", res.Nodes[2].ID)
}

func TestShortestPathSameNode(t *testing.T) {
	res, err := NewEngine(chainGraph()).ShortestPath("a", "a", 5)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 0, res.Hops)
}

func TestShortestPathHardHopCap(t *testing.T) {
	// 17-node chain: n00 -> n01 -> ... -> n16. The ends are 16 hops apart,
	// one past the fixed pathfinding cap; the cap holds even when the caller
	// asks for the full 20-hop depth.
	g := &models.LineageGraph{}
	ids := make([]string, 17)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%02d", i)
		g.Items = append(g.Items, item(ids[i], "Node"+ids[i], ""))
	}
	for i := 0; i < len(ids)-1; i++ {
		g.Edges = append(g.Edges, internalEdge(ids[i], ids[i+1]))
	}
	eng := NewEngine(g)

	res, err := eng.ShortestPath(ids[0], ids[16], MaxDepth)
	require.NoError(t, err)
	assert.False(t, res.Found)

	// Exactly 15 hops is still reachable.
	res, err = eng.ShortestPath(ids[1], ids[16], MaxDepth)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 15, res.Hops)
	assert.Len(t, res.Nodes, 16)
}

func TestShortestPathMissingEndpoint(t *testing.T) {
	res, err := NewEngine(chainGraph()).ShortestPath("a", "nope", 5)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestCrossBoundaryDependencies(t *testing.T) {
	deps := NewEngine(chainGraph()).CrossBoundaryDependencies()
	require.Len(t, deps, 1)
	assert.Equal(t, "b", deps[0].SourceID)
	assert.Equal(t, "c", deps[0].TargetID)
	assert.Equal(t, "One", deps[0].SourceWorkspace)
	assert.Equal(t, "Two", deps[0].TargetWorkspace)
}

func TestCentralityRankingAndTies(t *testing.T) {
	// hub has degree 3; "Apple" and "Banana" tie at 1 and order by name.
	g := &models.LineageGraph{
		Items: []models.FabricItem{
			item("hub", "Hub", ""),
			item("x", "Banana", ""),
			item("y", "Apple", ""),
			item("z", "Isolated", ""),
		},
		Edges: []models.Edge{
			internalEdge("x", "hub"),
			internalEdge("y", "hub"),
			internalEdge("hub", "z"),
		},
	}
	entries, err := NewEngine(g).Centrality(10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "hub", entries[0].ID)
	assert.Equal(t, 3, entries[0].Score)
	assert.Equal(t, "Apple", entries[1].Name)
	assert.Equal(t, "Banana", entries[2].Name)

	_, err = NewEngine(g).Centrality(0)
	require.Error(t, err)
	_, err = NewEngine(g).Centrality(101)
	require.Error(t, err)
}

func tableImpactGraph() *models.LineageGraph {
	return &models.LineageGraph{
		Items: []models.FabricItem{
			item("mx", "MirrorX", "ws-1"),
			item("my", "MirrorY", "ws-2"),
			item("rpt", "Report", "ws-2"),
		},
		ExternalSources: []models.ExternalSource{{ID: "src", Type: "snowflake", DisplayName: "CRM"}},
		Tables: []models.Table{
			{ID: "tbl-1", Name: "CUSTOMER", Schema: "dbo", FullPath: "dbo.CUSTOMER", TableType: models.TableTypeMirrored, SourceItemID: "src"},
		},
		Edges: []models.Edge{
			{ID: "src->tbl-1#provides_table", SourceID: "src", TargetID: "tbl-1", Type: models.EdgeTypeProvidesTable},
			{ID: "tbl-1->mx#mirror", SourceID: "tbl-1", TargetID: "mx", Type: models.EdgeTypeMirror},
			{ID: "tbl-1->my#mirror", SourceID: "tbl-1", TargetID: "my", Type: models.EdgeTypeMirror},
			internalEdge("mx", "rpt"),
		},
	}
}

func TestTableImpact(t *testing.T) {
	eng := NewEngine(tableImpactGraph())

	res, err := eng.TableImpact("customer", 5)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "tbl-1", res.Table.ID)

	require.Len(t, res.DirectConsumers, 2)
	require.Len(t, res.DownstreamItems, 1)
	assert.Equal(t, "rpt", res.DownstreamItems[0].ID)
	assert.Equal(t, 1, res.DownstreamItems[0].Depth)
	assert.Equal(t, []string{"MirrorX", "Report"}, res.DownstreamItems[0].Path)
}

func TestTableImpactValidation(t *testing.T) {
	eng := NewEngine(tableImpactGraph())

	_, err := eng.TableImpact("   ", 5)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	res, err := eng.TableImpact("no-such-table", 5)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.DirectConsumers)
}

func TestDeepChains(t *testing.T) {
	chains, err := NewEngine(chainGraph()).DeepChains(3)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, 3, chains[0].Depth)
	assert.Equal(t, "a", chains[0].Nodes[0].ID)
	assert.Equal(t, "d", chains[0].Nodes[3].ID)

	chains, err = NewEngine(chainGraph()).DeepChains(4)
	require.NoError(t, err)
	assert.Empty(t, chains)
}
