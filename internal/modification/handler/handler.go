package handler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"datamod/internal/modification"
	"datamod/internal/platform/metrics"
	"datamod/internal/platform/middleware"
	dErrors "datamod/pkg/domain-errors"
	"datamod/pkg/platform/httputil"
)

// EventStream is the consumer side of a started run.
type EventStream interface {
	ID() uuid.UUID
	Events() iter.Seq[modification.Event]
	Wait() error
}

// Service lists and starts modification runs.
type Service interface {
	List() []modification.Info
	StartDryRun(ctx context.Context, name string) (EventStream, error)
	StartRun(ctx context.Context, name, confirmation string) (EventStream, error)
}

// Handler exposes modification runs over HTTP, streaming each run's events
// as server-sent events.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a new modification Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register registers the modification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/dataModifications", func(r chi.Router) {
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Get("/", h.handleList)
		r.Post("/dryRun", h.handleDryRun)
		r.Post("/run", h.handleRun)
	})
}

type listResponse struct {
	DataModifications []modification.Info `json:"dataModifications"`
}

// DryRunRequest names the modification to dry run.
type DryRunRequest struct {
	DataModificationName string `json:"dataModificationName"`
}

// RunRequest names the modification to run and repeats the name as
// confirmation.
type RunRequest struct {
	DataModificationName string `json:"dataModificationName"`
	ConfirmationName     string `json:"confirmationName"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	infos := h.service.List()
	if infos == nil {
		infos = []modification.Info{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{DataModifications: infos})
}

func (h *Handler) handleDryRun(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[DryRunRequest](w, r)
	if !ok {
		return
	}
	stream, err := h.service.StartDryRun(r.Context(), req.DataModificationName)
	if err != nil {
		h.rejectStart(w, r, req.DataModificationName, err)
		return
	}
	h.streamEvents(w, r, req.DataModificationName, stream)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[RunRequest](w, r)
	if !ok {
		return
	}
	stream, err := h.service.StartRun(r.Context(), req.DataModificationName, req.ConfirmationName)
	if err != nil {
		h.rejectStart(w, r, req.DataModificationName, err)
		return
	}
	h.streamEvents(w, r, req.DataModificationName, stream)
}

func (h *Handler) rejectStart(w http.ResponseWriter, r *http.Request, name string, err error) {
	ctx := r.Context()
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		h.logger.InfoContext(ctx, "data modification request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"modification", name,
			"error", err,
		)
	} else {
		h.logger.ErrorContext(ctx, "failed to start data modification",
			"request_id", middleware.GetRequestID(ctx),
			"modification", name,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// streamEvents writes one "data: <json>" frame per event and flushes it. A
// write failure means the client is gone: leaving the loop cancels the run.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, name string, stream EventStream) {
	ctx := r.Context()
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	for e := range stream.Events() {
		data, err := modification.EncodeEvent(e)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to encode run event",
				"request_id", middleware.GetRequestID(ctx),
				"run_id", stream.ID().String(),
				"error", err,
			)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			h.logger.WarnContext(ctx, "client disconnected from run stream",
				"request_id", middleware.GetRequestID(ctx),
				"run_id", stream.ID().String(),
				"error", err,
			)
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := stream.Wait(); err != nil {
		h.logger.ErrorContext(ctx, "data modification run ended with a finalization fault",
			"request_id", middleware.GetRequestID(ctx),
			"modification", name,
			"run_id", stream.ID().String(),
			"error", err,
		)
	}
}
