package statusapi

import (
	"net/http"

	"github.com/marmos91/esembed/pkg/orchestrator"
)

// Instance is the view of an orchestrator the API needs.
type Instance interface {
	Status() orchestrator.Status
}

// handler serves the health and status endpoints.
type handler struct {
	instance Instance
	version  string
}

// health is the body of GET /health.
type health struct {
	State   orchestrator.State `json:"state"`
	BaseURL string             `json:"base_url"`
}

// Health handles GET /health: 200 once the instance is Ready, 503 before
// that and after failure or disposal.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.instance == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no instance", nil))
		return
	}

	st := h.instance.Status()
	body := health{State: st.State, BaseURL: st.BaseURL}
	if st.State != orchestrator.StateReady {
		msg := "instance is " + st.State.String()
		if st.Error != "" {
			msg += ": " + st.Error
		}
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(msg, body))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(body))
}

// Liveness handles GET /health/live. It answers as long as the supervisor
// process is serving HTTP.
func (h *handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "esembed",
		"version": h.version,
	}))
}

// statusBody is the body of GET /status.
type statusBody struct {
	orchestrator.Status
	Version string `json:"version,omitempty"`
}

// Status handles GET /status.
func (h *handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.instance == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no instance", nil))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(statusBody{Status: h.instance.Status(), Version: h.version}))
}
