package notes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/platform/httpx"
)

// Handler exposes note endpoints.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validator: validator.New()}
}

// MountRoutes registers note routes; notes are admin-only.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth, mw.RequireAdmin)
		r.Get("/agents/{agentID}/notes", h.listNotes)
		r.Post("/agents/{agentID}/notes", h.addNote)
	})
}

type addNoteRequest struct {
	Content string `json:"contenu" validate:"required"`
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	list, err := h.repo.ListForAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error("list notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) addNote(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	var req addNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	note, err := h.repo.Add(r.Context(), agentID, req.Content, principal.Email)
	if err != nil {
		h.logger.Error("add note", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}
