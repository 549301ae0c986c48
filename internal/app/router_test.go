package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/eventhub/internal/auth"
	"github.com/odyssey-erp/eventhub/internal/catalog/categories"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/dashboard"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/reservations"
	"github.com/odyssey-erp/eventhub/internal/roles"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/users"
	"github.com/odyssey-erp/eventhub/internal/view"
)

type stubPrincipals map[int64]rbac.Principal

func (s stubPrincipals) LoadPrincipal(_ context.Context, userID int64) (rbac.Principal, error) {
	p, ok := s[userID]
	if !ok {
		return rbac.Anonymous, nil
	}
	return p, nil
}

func (s stubPrincipals) EffectivePermissions(context.Context, int64) ([]string, error) {
	return nil, nil
}

type routerHarness struct {
	handler  http.Handler
	sessions *shared.SessionManager
}

func newRouterHarness(t *testing.T, principals stubPrincipals) *routerHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "eventhub_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Service: principals, Logger: logger}
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}

	handler := NewRouter(RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessions,
		CSRFManager:         csrf,
		RBACMiddleware:      mw,
		AuthHandler:         auth.NewHandler(logger, nil, templates, sessions, csrf),
		UsersHandler:        users.NewHandler(logger, nil, templates, csrf, mw),
		RolesHandler:        roles.NewHandler(logger, nil, templates, csrf, mw),
		CategoriesHandler:   categories.NewHandler(logger, nil, templates, csrf, mw),
		EventsHandler:       events.NewHandler(logger, nil, templates, csrf, mw),
		ReservationsHandler: reservations.NewHandler(logger, nil, mw),
		DashboardHandler:    dashboard.NewHandler(logger, nil, templates, csrf, mw),
	})
	return &routerHarness{handler: handler, sessions: sessions}
}

// signIn stores a session for userID and returns its cookie.
func (h *routerHarness) signIn(t *testing.T, userID int64) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	require.NoError(t, h.sessions.Commit(req.Context(), httptest.NewRecorder(), req, sess))
	return &http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID}
}

func (h *routerHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthz(t *testing.T) {
	h := newRouterHarness(t, stubPrincipals{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterAnonymousIsSentToSignIn(t *testing.T) {
	h := newRouterHarness(t, stubPrincipals{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/sign-in?next=%2Fevents", rec.Header().Get("Location"))
}

func TestRouterHomeAndNoPermissionPages(t *testing.T) {
	h := newRouterHarness(t, stubPrincipals{})

	home := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, home.Code)
	assert.Contains(t, home.Body.String(), "Eventhub")
	assert.NotEmpty(t, home.Header().Get("X-Frame-Options"))

	denied := h.do(httptest.NewRequest(http.MethodGet, rbac.NoPermissionPath, nil))
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Contains(t, denied.Body.String(), "do not have permission")
}

func TestRouterRejectsPostWithoutCSRFToken(t *testing.T) {
	h := newRouterHarness(t, stubPrincipals{})

	rec := h.do(httptest.NewRequest(http.MethodPost, "/auth/sign-out", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterServesStaticAssets(t *testing.T) {
	h := newRouterHarness(t, stubPrincipals{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestRouterParticipantIsDeniedAdminAreas(t *testing.T) {
	principals := stubPrincipals{
		9: {UserID: 9, Username: "pat", Authenticated: true, Groups: []string{"Participant"}},
	}
	h := newRouterHarness(t, principals)
	cookie := h.signIn(t, 9)

	for _, path := range []string{"/categories", "/roles", "/users/admin", "/dashboard/admin", "/events/new"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(cookie)

		rec := h.do(req)

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, rbac.NoPermissionPath, rec.Header().Get("Location"), path)
	}
}

func TestRouterDashboardRedirectsByRole(t *testing.T) {
	principals := stubPrincipals{
		4: {UserID: 4, Username: "olga", Authenticated: true, Groups: []string{"Organizer"}},
	}
	h := newRouterHarness(t, principals)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(h.signIn(t, 4))

	rec := h.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/organizer", rec.Header().Get("Location"))
}
