package roster

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/calendar"
	"github.com/cothk/planning/internal/platform/httpx"
)

// Handler wires the roster endpoints: the month view, cell edits and the
// administrative management routes.
type Handler struct {
	logger      *slog.Logger
	engine      *Engine
	service     *Service
	validator   *validator.Validate
	defaultYear int
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine, service *Service, defaultYear int) *Handler {
	return &Handler{
		logger:      logger,
		engine:      engine,
		service:     service,
		validator:   validator.New(),
		defaultYear: defaultYear,
	}
}

// MountRoutes registers roster routes. All routes require a signed-in
// principal; management routes require an administrator.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Get("/roster", h.getRoster)
		r.Get("/roster/cell", h.getCell)
		r.Put("/roster/cell", h.updateCell)
		r.Post("/roster/habilitations/reload", h.reloadCertifications)
		r.Get("/groups", h.listGroups)
		r.Get("/codes", h.listServiceCodes)
		r.Get("/years", h.listYears)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth, mw.RequireAdmin)
		r.Post("/agents", h.createAgent)
		r.Put("/agents/{agentID}", h.updateAgent)
		r.Delete("/agents/{agentID}", h.deleteAgent)
		r.Post("/agents/{agentID}/habilitations", h.grantCertification)
		r.Delete("/agents/{agentID}/habilitations/{post}", h.revokeCertification)
	})
}

func (h *Handler) getRoster(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if calendar.MonthIndex(month) < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown month")
		return
	}
	year := h.defaultYear
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year")
			return
		}
		year = parsed
	}

	if err := h.engine.EnsureWindow(r.Context(), month, year); err != nil {
		// Load failures are visible application state, not transport errors.
		h.logger.Error("load roster window", slog.String("month", month), slog.Int("year", year), slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) getCell(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	day, err := strconv.Atoi(r.URL.Query().Get("day"))
	if key == "" || err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "key and day are required")
		return
	}
	cell, ok := h.engine.Cell(key, day)
	if !ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"cell": nil})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cell": cell})
}

type updateCellRequest struct {
	Month      string `json:"month" validate:"required"`
	Year       int    `json:"year"`
	DisplayKey string `json:"display_key" validate:"required"`
	Day        int    `json:"day" validate:"required,gte=1,lte=31"`
	Value      Cell   `json:"value"`
}

func (h *Handler) updateCell(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req updateCellRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if calendar.MonthIndex(req.Month) < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown month")
		return
	}
	if req.Year == 0 {
		req.Year = h.defaultYear
	}

	if !CanEditCell(principal.IsAdmin, principal.DisplayKey(), req.DisplayKey) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	if err := h.engine.UpdateCell(r.Context(), req.Month, req.Year, req.DisplayKey, req.Day, req.Value); err != nil {
		h.logger.Error("update cell", slog.String("key", req.DisplayKey), slog.Int("day", req.Day), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) reloadCertifications(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ReloadCertifications(r.Context()); err != nil {
		h.logger.Error("reload certifications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) listServiceCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ServiceCodes(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, codes)
}

func (h *Handler) listYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.AvailableYears(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

func (h *Handler) agentID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "agentID"))
	return id, err == nil
}

func (h *Handler) createAgent(w http.ResponseWriter, r *http.Request) {
	var input AgentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	agent, err := h.service.CreateAgent(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, agent)
}

func (h *Handler) updateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	var input AgentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	agent, err := h.service.UpdateAgent(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, agent)
}

func (h *Handler) deleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	if err := h.service.DeleteAgent(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type grantRequest struct {
	Post string `json:"poste" validate:"required"`
}

func (h *Handler) grantCertification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.GrantCertification(r.Context(), id, req.Post); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeCertification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agentID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid agent id")
		return
	}
	post := chi.URLParam(r, "post")
	if err := h.service.RevokeCertification(r.Context(), id, post); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
