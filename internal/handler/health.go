package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	MailConfigured bool   `json:"mail_configured"`
	MailCircuit    string `json:"mail_circuit,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Health handles GET /api/health. A failed store ping reports 503; an open
// mail circuit is reported but does not fail the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Message:   "contact API",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.mail != nil && h.mail.Configured() {
		resp.MailConfigured = true
		resp.MailCircuit = h.mail.State()
	}
	status := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Message = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
