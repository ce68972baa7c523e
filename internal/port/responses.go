package port

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/a2workspace/jwtguard/internal/domain"
	"github.com/a2workspace/jwtguard/internal/errmap"
	"github.com/a2workspace/jwtguard/internal/observability"
)

// errorResponse is the wire shape of every error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.WithTraceID(ctx, h.logger).ErrorContext(ctx, "port.write_response", "error", err)
	}
}

// writeError maps err onto the wire. The body carries only the public
// message; the specific error kind goes to the log.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	httpErr := errmap.ToHTTPError(err)

	logger := observability.WithTraceID(ctx, h.logger)
	if domain.IsAuthError(err) {
		logger.WarnContext(ctx, "port.request_rejected",
			"code", httpErr.Code,
			"reason", domain.AuthFailureReason(err),
		)
	} else {
		logger.ErrorContext(ctx, "port.request_failed",
			"code", httpErr.Code,
			"error", err,
		)
	}

	h.writeJSON(ctx, w, httpErr.StatusCode, errorResponse{Error: httpErr.Message})
}
