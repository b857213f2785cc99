package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fabriclens/engine/internal/store"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// SnapshotHandler exposes the versioned snapshot archive.
type SnapshotHandler struct {
	repo store.SnapshotRepository
}

func NewSnapshotHandler(repo store.SnapshotRepository) *SnapshotHandler {
	return &SnapshotHandler{repo: repo}
}

func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (h *SnapshotHandler) Current(w http.ResponseWriter, r *http.Request) {
	row, err := h.repo.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

func (h *SnapshotHandler) GetByVersion(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.repo.GetByVersion(r.Context(), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

func (h *SnapshotHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.repo.SetCurrent(r.Context(), version); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"current_version": version})
}

func versionParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "version")
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return 0, appErr.New(appErr.CodeInvalid, "version must be a positive integer").WithMeta("version", raw)
	}
	return version, nil
}
