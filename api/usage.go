package api

import (
	"log/slog"
	"net/http"

	"github.com/quillhq/quill/internal/usage"
)

// UsageHandler serves the caller's usage counters.
type UsageHandler struct {
	meter  *usage.Meter
	logger *slog.Logger
}

// NewUsageHandler creates a UsageHandler.
func NewUsageHandler(meter *usage.Meter, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{meter: meter, logger: logger}
}

// RegisterRoutes registers usage routes on the given mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/usage", h.handleGet)
}

// UsageResponse is the JSON shape of an owner's usage record.
type UsageResponse struct {
	OwnerID      string `json:"owner_id"`
	MessagesUsed int    `json:"messages_used"`
}

func (h *UsageHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}

	rec, err := h.meter.Usage(r.Context(), owner)
	if err != nil {
		h.logger.Error("reading usage record", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read usage")
		return
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		OwnerID:      rec.OwnerID,
		MessagesUsed: rec.MessagesUsed,
	})
}
