package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ndd/pkg/minor"
)

// MinorInfo describes one open minor.
type MinorInfo struct {
	ID     uint8  `json:"id"`
	Device string `json:"device"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Mode   string `json:"mode"`
	Size   int64  `json:"size"`
	Blocks uint32 `json:"blocks"`
}

// MinorsHandler serves the minor table.
type MinorsHandler struct {
	registry *minor.Registry
}

// NewMinorsHandler creates a handler over registry.
func NewMinorsHandler(registry *minor.Registry) *MinorsHandler {
	return &MinorsHandler{registry: registry}
}

func minorInfo(m *minor.Minor) MinorInfo {
	return MinorInfo{
		ID:     m.ID(),
		Device: m.String(),
		Name:   m.Name(),
		Type:   string(m.Type()),
		Mode:   m.Mode().String(),
		Size:   m.Size(),
		Blocks: m.Blocks(),
	}
}

// List handles GET /api/v1/minors.
func (h *MinorsHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]MinorInfo, 0, minor.MaxMinors)
	if h.registry != nil {
		for _, m := range h.registry.List() {
			out = append(out, minorInfo(m))
		}
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

// Get handles GET /api/v1/minors/{id}.
func (h *MinorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		BadRequest(w, fmt.Sprintf("invalid minor id %q", raw))
		return
	}

	if h.registry == nil {
		NotFound(w, fmt.Sprintf("minor %d is not open", id))
		return
	}
	m, ok := h.registry.Lookup(uint8(id))
	if !ok {
		NotFound(w, fmt.Sprintf("minor %d is not open", id))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(minorInfo(m)))
}
