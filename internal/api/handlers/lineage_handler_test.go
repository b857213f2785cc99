package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclens/engine/internal/api/types"
	"github.com/fabriclens/engine/internal/loader"
	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/internal/services"
	"github.com/fabriclens/engine/internal/traversal"
	appErr "github.com/fabriclens/engine/pkg/errors"
	"github.com/fabriclens/engine/pkg/logger"
)

func init() {
	logger.Nop()
}

// stubService records calls and returns canned results.
type stubService struct {
	upstreamID    string
	upstreamDepth int
	refreshed     bool
	refreshClear  bool
}

var _ services.LineageService = (*stubService)(nil)

func (s *stubService) Snapshot(ctx context.Context) (*models.LineageGraph, *models.GraphStats, error) {
	return &models.LineageGraph{}, &models.GraphStats{}, nil
}

func (s *stubService) Stats(ctx context.Context) (*models.GraphStats, error) {
	return &models.GraphStats{ItemCount: 7}, nil
}

func (s *stubService) Refresh(ctx context.Context, clearExisting bool) (*loader.Result, error) {
	s.refreshed = true
	s.refreshClear = clearExisting
	return &loader.Result{NodesLoaded: 3, EdgesLoaded: 2, Cleared: clearExisting}, nil
}

func (s *stubService) Upstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error) {
	s.upstreamID = id
	s.upstreamDepth = maxDepth
	if maxDepth > traversal.MaxDepth {
		return nil, appErr.New(appErr.CodeInvalid, "depth out of range")
	}
	return []traversal.ReachableNode{{ID: "lh-1", Name: "Lake", Depth: 1}}, nil
}

func (s *stubService) Downstream(ctx context.Context, id string, maxDepth int) ([]traversal.ReachableNode, error) {
	return []traversal.ReachableNode{}, nil
}

func (s *stubService) ShortestPath(ctx context.Context, from, to string, maxDepth int) (*traversal.PathResult, error) {
	return &traversal.PathResult{}, nil
}

func (s *stubService) Cycles(ctx context.Context, maxLen int) ([]traversal.Cycle, error) {
	return []traversal.Cycle{}, nil
}

func (s *stubService) CrossWorkspace(ctx context.Context) ([]traversal.CrossBoundaryDependency, error) {
	return []traversal.CrossBoundaryDependency{}, nil
}

func (s *stubService) Centrality(ctx context.Context, topN int) ([]traversal.CentralityEntry, error) {
	return []traversal.CentralityEntry{}, nil
}

func (s *stubService) TableImpact(ctx context.Context, tableRef string, maxDepth int) (*traversal.TableImpactResult, error) {
	if strings.TrimSpace(tableRef) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "table reference must not be empty")
	}
	return &traversal.TableImpactResult{Found: true}, nil
}

func (s *stubService) DeepChains(ctx context.Context, minDepth int) ([]traversal.Chain, error) {
	return []traversal.Chain{}, nil
}

type stubEnqueuer struct {
	enqueued bool
	clear    bool
}

func (e *stubEnqueuer) EnqueueRefresh(ctx context.Context, clearExisting bool) error {
	e.enqueued = true
	e.clear = clearExisting
	return nil
}

func testRouter(h *LineageHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/lineage/refresh", h.Refresh)
	r.Get("/lineage/stats", h.Stats)
	r.Get("/lineage/items/{id}/upstream", h.Upstream)
	r.Get("/lineage/path", h.Path)
	r.Get("/lineage/tables/impact", h.TableImpact)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, types.APIResponse) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp types.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestUpstreamEndpoint(t *testing.T) {
	svc := &stubService{}
	router := testRouter(NewLineageHandler(svc, nil))

	rec, resp := doRequest(t, router, http.MethodGet, "/lineage/items/pl-1/upstream?depth=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "pl-1", svc.upstreamID)
	assert.Equal(t, 3, svc.upstreamDepth)
}

func TestUpstreamDefaultsDepth(t *testing.T) {
	svc := &stubService{}
	router := testRouter(NewLineageHandler(svc, nil))

	rec, _ := doRequest(t, router, http.MethodGet, "/lineage/items/pl-1/upstream", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.DefaultDepth, svc.upstreamDepth)
}

func TestUpstreamRejectsNonIntegerDepth(t *testing.T) {
	router := testRouter(NewLineageHandler(&stubService{}, nil))

	rec, resp := doRequest(t, router, http.MethodGet, "/lineage/items/pl-1/upstream?depth=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(appErr.CodeInvalid), resp.Error.Code)
}

func TestUpstreamDepthOutOfRange(t *testing.T) {
	router := testRouter(NewLineageHandler(&stubService{}, nil))

	rec, _ := doRequest(t, router, http.MethodGet, "/lineage/items/pl-1/upstream?depth=99", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPathRequiresEndpoints(t *testing.T) {
	router := testRouter(NewLineageHandler(&stubService{}, nil))

	rec, _ := doRequest(t, router, http.MethodGet, "/lineage/path?from=a", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshSynchronous(t *testing.T) {
	svc := &stubService{}
	router := testRouter(NewLineageHandler(svc, nil))

	rec, resp := doRequest(t, router, http.MethodPost, "/lineage/refresh", `{"clear_existing":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.True(t, svc.refreshed)
	assert.True(t, svc.refreshClear)
}

func TestRefreshAsyncEnqueues(t *testing.T) {
	svc := &stubService{}
	enq := &stubEnqueuer{}
	router := testRouter(NewLineageHandler(svc, enq))

	rec, _ := doRequest(t, router, http.MethodPost, "/lineage/refresh", `{"async":true,"clear_existing":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, enq.enqueued)
	assert.True(t, enq.clear)
	assert.False(t, svc.refreshed)
}

func TestTableImpactRequiresTable(t *testing.T) {
	router := testRouter(NewLineageHandler(&stubService{}, nil))

	rec, _ := doRequest(t, router, http.MethodGet, "/lineage/tables/impact", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := doRequest(t, router, http.MethodGet, "/lineage/tables/impact?table=CUSTOMER", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestStatsEndpoint(t *testing.T) {
	router := testRouter(NewLineageHandler(&stubService{}, nil))

	rec, resp := doRequest(t, router, http.MethodGet, "/lineage/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), data["item_count"])
}
