package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"datamod/internal/platform/middleware"
	dErrors "datamod/pkg/domain-errors"
	"datamod/pkg/platform/httputil"
)

// Lister reads users outside any modification run.
type Lister interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Handler serves the read-only users endpoint.
type Handler struct {
	users  Lister
	logger *slog.Logger
}

func NewHandler(users Lister, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// Register registers the user routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/users", h.handleListUsers)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.users.ListUsers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users"))
		return
	}
	if list == nil {
		list = []User{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
