package audit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"datamod/internal/platform/middleware"
	dErrors "datamod/pkg/domain-errors"
	"datamod/pkg/platform/httputil"
	"datamod/pkg/platform/sentinel"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler serves the run audit trail.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/dataModifications/runs", h.handleListRuns)
	r.Get("/api/dataModifications/runs/{runID}", h.handleGetRun)
}

type listRunsResponse struct {
	Runs []Event `json:"runs"`
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	runs, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list modification runs",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list modification runs"))
		return
	}
	if runs == nil {
		runs = []Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid run id"))
		return
	}

	run, err := h.store.Get(ctx, runID)
	if errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Modification run '%s' not found", runID)))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get modification run",
			"request_id", middleware.GetRequestID(ctx),
			"run_id", runID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get modification run"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return min(limit, maxListLimit), nil
}
