package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cothk/planning/internal/platform/httpx"
	"github.com/cothk/planning/internal/shared"
)

// Middleware resolves the session's principal and guards routes by role.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// ResolvePrincipal attaches the resolved principal to the request context for
// signed-in sessions. Anonymous requests pass through unchanged.
func (m Middleware) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.AccountID() == "" {
			next.ServeHTTP(w, r)
			return
		}
		accountID, err := uuid.Parse(sess.AccountID())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Service.ResolvePrincipal(r.Context(), accountID, sess.Email())
		if err != nil {
			m.Logger.Error("resolve principal", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAuth rejects anonymous requests.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose principal is not an administrator.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !principal.IsAdmin {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
