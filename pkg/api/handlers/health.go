package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/ndd/pkg/minor"
)

// ServiceName is reported by the liveness probe.
const ServiceName = "ndd"

// ServerStatus is the view of the ND server the API reports on.
type ServerStatus interface {
	Running() bool
	Served() uint64
	Dropped() uint64
	StartedAt() time.Time
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: is the process up?
//   - Readiness probe: is the ND server receiving with at least one minor?
type HealthHandler struct {
	registry   *minor.Registry
	status     ServerStatus
	version    string
	instanceID string
}

// NewHealthHandler creates a new health handler. registry and status may be
// nil, in which case the readiness probe fails.
func NewHealthHandler(registry *minor.Registry, status ServerStatus, version string) *HealthHandler {
	return &HealthHandler{
		registry:   registry,
		status:     status,
		version:    version,
		instanceID: uuid.NewString(),
	}
}

// Liveness handles GET /health.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service":     ServiceName,
		"version":     h.version,
		"instance_id": h.instanceID,
	}))
}

// ReadinessData is the payload of a successful readiness probe.
type ReadinessData struct {
	Minors    int       `json:"minors"`
	Served    uint64    `json:"served"`
	Dropped   uint64    `json:"dropped"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable until the ND server loop is running with
// at least one minor open.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	count := h.registry.Len()
	if count == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no minors open"))
		return
	}

	if h.status == nil || !h.status.Running() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("ND server not running"))
		return
	}

	started := h.status.StartedAt()
	writeJSON(w, http.StatusOK, healthyResponse(ReadinessData{
		Minors:    count,
		Served:    h.status.Served(),
		Dropped:   h.status.Dropped(),
		StartedAt: started,
		Uptime:    time.Since(started).Round(time.Second).String(),
	}))
}
