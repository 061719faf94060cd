package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/notes"
	"github.com/cothk/planning/internal/observability"
	"github.com/cothk/planning/internal/provision"
	"github.com/cothk/planning/internal/roster"
	"github.com/cothk/planning/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	AuthMiddleware   auth.Middleware
	RosterHandler    *roster.Handler
	ProvisionHandler *provision.Handler
	NotesHandler     *notes.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(api chi.Router) {
		api.Use(params.AuthMiddleware.ResolvePrincipal)
		params.RosterHandler.MountRoutes(api, params.AuthMiddleware)
		params.ProvisionHandler.MountRoutes(api, params.AuthMiddleware)
		params.NotesHandler.MountRoutes(api, params.AuthMiddleware)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
