package rbac

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/odyssey-erp/eventhub/internal/shared"
)

const (
	// NoPermissionPath is where denied requests are sent.
	NoPermissionPath = "/no-permission"
	// SignInPath is where anonymous requests to protected pages are sent.
	SignInPath = "/auth/sign-in"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service PrincipalLoader
	Logger  *slog.Logger
}

// Authenticate resolves the session user into a Principal stored on the
// request context. It never rejects a request.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		userID, ok := sess.UserID()
		if !ok || m.Service == nil {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), Anonymous)))
			return
		}
		principal, err := m.Service.LoadPrincipal(r.Context(), userID)
		if err != nil {
			m.logError("rbac load principal", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireLogin sends anonymous requests to the sign-in page.
func (m Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).Authenticated {
			redirectToSignIn(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits principals whose role is one of roles; Admin is always
// admitted. Denied principals are redirected to NoPermissionPath.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if !p.Authenticated {
				redirectToSignIn(w, r)
				return
			}
			if !Authorize(p, roles...) {
				m.deny(w, r, p)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits principals holding at least one of perms.
func (m Middleware) RequirePermission(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if !p.Authenticated {
				redirectToSignIn(w, r)
				return
			}
			var granted []string
			if RoleOf(p) != RoleAdmin {
				var err error
				granted, err = m.Service.EffectivePermissions(r.Context(), p.UserID)
				if err != nil {
					m.logError("rbac effective permissions", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
			}
			for _, perm := range perms {
				if HasPermission(p, granted, perm) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.deny(w, r, p)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, p Principal) {
	if m.Logger != nil {
		m.Logger.Info("rbac denied", slog.Int64("user_id", p.UserID), slog.String("role", RoleOf(p).String()), slog.String("path", r.URL.Path))
	}
	http.Redirect(w, r, NoPermissionPath, http.StatusSeeOther)
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	target := SignInPath
	if next := strings.TrimSpace(r.URL.RequestURI()); next != "" && r.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
