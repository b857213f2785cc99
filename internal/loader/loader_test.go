package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/pkg/database"
	appErr "github.com/fabriclens/engine/pkg/errors"
	"github.com/fabriclens/engine/pkg/logger"
)

func init() {
	logger.Nop()
}

func sampleGraph() *models.LineageGraph {
	return &models.LineageGraph{
		Workspaces: []models.Workspace{{ID: "ws-1", Name: "Sales"}},
		Items: []models.FabricItem{
			{ID: "lh-1", Name: "Lake", Type: "Lakehouse", WorkspaceID: "ws-1"},
			{ID: "pl-1", Name: "Load", Type: "DataPipeline", WorkspaceID: "ws-1"},
		},
		ExternalSources: []models.ExternalSource{{ID: "src-1", Type: "snowflake", DisplayName: "CRM"}},
		Tables: []models.Table{
			{ID: "tbl-1", Name: "ORDERS", FullPath: "dbo.ORDERS", TableType: models.TableTypeExternal, SourceItemID: "src-1"},
		},
		Edges: []models.Edge{
			{ID: "lh-1->pl-1", SourceID: "lh-1", TargetID: "pl-1", Type: models.EdgeTypeInternal},
			{ID: "src-1->pl-1", SourceID: "src-1", TargetID: "pl-1", Type: models.EdgeTypeExternal},
			{ID: "tbl-1->pl-1#uses_table", SourceID: "tbl-1", TargetID: "pl-1", Type: models.EdgeTypeUsesTable},
		},
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ldr := New(mem)
	g := sampleGraph()

	res1, err := ldr.Load(ctx, g, false)
	require.NoError(t, err)
	// 1 workspace + 2 items + 1 source + 1 table; 3 edges + 2 containment.
	assert.Equal(t, 5, res1.NodesLoaded)
	assert.Equal(t, 5, res1.EdgesLoaded)

	nodesBefore, _ := mem.CountNodes(ctx)
	edgesBefore, _ := mem.CountEdges(ctx)

	_, err = ldr.Load(ctx, g, false)
	require.NoError(t, err)

	nodesAfter, _ := mem.CountNodes(ctx)
	edgesAfter, _ := mem.CountEdges(ctx)
	assert.Equal(t, nodesBefore, nodesAfter)
	assert.Equal(t, edgesBefore, edgesAfter)
}

func TestLoadClearExisting(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ldr := New(mem)

	_, err := ldr.Load(ctx, sampleGraph(), false)
	require.NoError(t, err)

	// A shrunk snapshot with clearExisting leaves no stale rows behind.
	small := &models.LineageGraph{
		Workspaces: []models.Workspace{{ID: "ws-1", Name: "Sales"}},
		Items:      []models.FabricItem{{ID: "lh-1", Name: "Lake", WorkspaceID: "ws-1"}},
	}
	res, err := ldr.Load(ctx, small, true)
	require.NoError(t, err)
	assert.True(t, res.Cleared)

	nodes, _ := mem.CountNodes(ctx)
	edges, _ := mem.CountEdges(ctx)
	assert.Equal(t, int64(2), nodes)
	assert.Equal(t, int64(1), edges)
}

func TestLoadRejectsNilGraph(t *testing.T) {
	_, err := New(store.NewMemoryStore()).Load(context.Background(), nil, false)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

// recordingStore captures the order of write calls.
type recordingStore struct {
	*store.MemoryStore
	calls []string
}

func (r *recordingStore) UpsertNodes(ctx context.Context, rows []store.NodeRow) error {
	if len(rows) > 0 {
		r.calls = append(r.calls, "nodes:"+rows[0].Kind)
	}
	return r.MemoryStore.UpsertNodes(ctx, rows)
}

func (r *recordingStore) UpsertEdges(ctx context.Context, rows []store.EdgeRow) error {
	if len(rows) > 0 {
		r.calls = append(r.calls, "edges:"+rows[0].Type)
	}
	return r.MemoryStore.UpsertEdges(ctx, rows)
}

func TestLoadPhaseOrder(t *testing.T) {
	rec := &recordingStore{MemoryStore: store.NewMemoryStore()}
	res, err := New(rec).Load(context.Background(), sampleGraph(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"workspaces", "items", "external_sources", "tables",
		"internal_edges", "external_edges", "table_edges",
	}, res.Phases)

	assert.Equal(t, []string{
		"nodes:workspace",
		"nodes:item",
		"edges:contains",
		"nodes:external_source",
		"nodes:table",
		"edges:internal",
		"edges:external",
		"edges:uses_table",
	}, rec.calls)
}

func TestLoadBatching(t *testing.T) {
	rec := &recordingStore{MemoryStore: store.NewMemoryStore()}
	ldr := New(rec, WithBatchSize(1))

	g := &models.LineageGraph{
		Workspaces: []models.Workspace{{ID: "ws-1"}, {ID: "ws-2"}, {ID: "ws-3"}},
	}
	res, err := ldr.Load(context.Background(), g, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NodesLoaded)
	assert.Len(t, rec.calls, 3)
}

// flakyStore fails a fixed number of times before succeeding.
type flakyStore struct {
	*store.MemoryStore
	failures int
}

func (f *flakyStore) UpsertNodes(ctx context.Context, rows []store.NodeRow) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient write failure")
	}
	return f.MemoryStore.UpsertNodes(ctx, rows)
}

func TestLoadRetriesTransientFailures(t *testing.T) {
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 2}
	ldr := New(flaky, WithBackoff(database.Backoff{
		MaxRetries: 3,
		Delay:      time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))

	g := &models.LineageGraph{Workspaces: []models.Workspace{{ID: "ws-1"}}}
	res, err := ldr.Load(context.Background(), g, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesLoaded)
}

func TestLoadGivesUpAfterMaxRetries(t *testing.T) {
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 10}
	ldr := New(flaky, WithBackoff(database.Backoff{
		MaxRetries: 2,
		Delay:      time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))

	g := &models.LineageGraph{Workspaces: []models.Workspace{{ID: "ws-1"}}}
	_, err := ldr.Load(context.Background(), g, false)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
}
