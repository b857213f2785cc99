package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	mw "github.com/fabriclens/engine/internal/api/middleware"
	"github.com/fabriclens/engine/internal/api/types"
	"github.com/fabriclens/engine/internal/render"
	"github.com/fabriclens/engine/internal/services"
	appErr "github.com/fabriclens/engine/pkg/errors"
	"github.com/fabriclens/engine/pkg/logger"
)

// RefreshEnqueuer hands refresh work to the background queue. Nil when the
// deployment runs without a worker.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, clearExisting bool) error
}

// LineageHandler exposes the traversal and snapshot operations.
type LineageHandler struct {
	svc      services.LineageService
	enqueuer RefreshEnqueuer
}

func NewLineageHandler(svc services.LineageService, enqueuer RefreshEnqueuer) *LineageHandler {
	return &LineageHandler{svc: svc, enqueuer: enqueuer}
}

func (h *LineageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req types.RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "invalid refresh request body"))
			return
		}
	}

	if req.Async && h.enqueuer != nil {
		if err := h.enqueuer.EnqueueRefresh(r.Context(), req.ClearExisting); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	res, err := h.svc.Refresh(r.Context(), req.ClearExisting)
	if err != nil {
		logger.L().Error("refresh failed", zap.Error(err))
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *LineageHandler) Graph(w http.ResponseWriter, r *http.Request) {
	graph, _, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, graph)
}

func (h *LineageHandler) GraphMermaid(w http.ResponseWriter, r *http.Request) {
	graph, _, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(render.Mermaid(graph)))
}

func (h *LineageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *LineageHandler) Upstream(w http.ResponseWriter, r *http.Request) {
	depth, err := intQuery(r, "depth", types.DefaultDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nodes, err := h.svc.Upstream(r.Context(), chi.URLParam(r, "id"), depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, nodes)
}

func (h *LineageHandler) Downstream(w http.ResponseWriter, r *http.Request) {
	depth, err := intQuery(r, "depth", types.DefaultDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nodes, err := h.svc.Downstream(r.Context(), chi.URLParam(r, "id"), depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, nodes)
}

func (h *LineageHandler) Path(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, r, appErr.New(appErr.CodeInvalid, "from and to are required"))
		return
	}
	depth, err := intQuery(r, "depth", types.DefaultDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.svc.ShortestPath(r.Context(), from, to, depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, path)
}

func (h *LineageHandler) Cycles(w http.ResponseWriter, r *http.Request) {
	maxLen, err := intQuery(r, "max_length", types.DefaultDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cycles, err := h.svc.Cycles(r.Context(), maxLen)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cycles)
}

func (h *LineageHandler) CrossWorkspace(w http.ResponseWriter, r *http.Request) {
	deps, err := h.svc.CrossWorkspace(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deps)
}

func (h *LineageHandler) Centrality(w http.ResponseWriter, r *http.Request) {
	topN, err := intQuery(r, "top", types.DefaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.svc.Centrality(r.Context(), topN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (h *LineageHandler) TableImpact(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	depth, err := intQuery(r, "depth", types.DefaultDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	impact, err := h.svc.TableImpact(r.Context(), table, depth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, impact)
}

func (h *LineageHandler) Chains(w http.ResponseWriter, r *http.Request) {
	minDepth, err := intQuery(r, "min_depth", 3)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chains, err := h.svc.DeepChains(r.Context(), minDepth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, chains)
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErr.Newf(appErr.CodeInvalid, "%s must be an integer", name).WithMeta(name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: mw.GetRequestID(r.Context())},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(types.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: mw.GetRequestID(r.Context())},
	})
}
