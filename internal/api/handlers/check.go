package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/pagegate/internal/auth"
	"github.com/nikhilbhutani/pagegate/internal/decision"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

const maxCheckBody = 1 << 20

type Decider interface {
	Decide(ctx context.Context, page models.PageDescriptor, apiKey string) (decision.Result, error)
}

type CheckHandler struct {
	pipeline     Decider
	apiKeyHeader string
	logger       logging.Logger
}

func NewCheckHandler(pipeline Decider, apiKeyHeader string, logger logging.Logger) *CheckHandler {
	return &CheckHandler{pipeline: pipeline, apiKeyHeader: apiKeyHeader, logger: logging.OrDefault(logger)}
}

type checkResponse struct {
	Decision models.Decision `json:"decision"`
}

// Check handles POST /check-url.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	var page models.PageDescriptor
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckBody)).Decode(&page); err != nil {
		h.logger.Debug(map[string]any{"error": err}, "invalid check-url body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.pipeline.Decide(r.Context(), page, auth.APIKey(r, h.apiKeyHeader))
	switch {
	case errors.Is(err, decision.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "url and api key are required")
	case errors.Is(err, decision.ErrInvalidKey):
		writeError(w, http.StatusUnauthorized, "invalid api key")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, checkResponse{Decision: res.Decision})
	}
}
