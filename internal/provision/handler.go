package provision

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/platform/httpx"
)

// EnqueueFunc hands a provisioning run off to the background worker.
type EnqueueFunc func(ctx context.Context, adminEmail string) error

// Handler exposes the bulk provisioning endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	enqueue EnqueueFunc
}

// NewHandler builds a Handler instance. enqueue is optional; without it the
// async mode is unavailable and runs are always synchronous.
func NewHandler(logger *slog.Logger, service *Service, enqueue EnqueueFunc) *Handler {
	return &Handler{logger: logger, service: service, enqueue: enqueue}
}

// MountRoutes registers provisioning routes behind the admin guard.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth, mw.RequireAdmin)
		r.Post("/accounts/provision", h.runProvisioning)
	})
}

func (h *Handler) runProvisioning(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if r.URL.Query().Get("async") == "1" && h.enqueue != nil {
		if err := h.enqueue(r.Context(), principal.Email); err != nil {
			h.logger.Error("enqueue provisioning", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	summary, err := h.service.Run(r.Context(), principal.Email)
	if err != nil {
		h.logger.Error("bulk provisioning", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
