package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/eventhub/internal/platform/httpx"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

type handlerHarness struct {
	handler  *Handler
	service  *Service
	repo     *mockRepository
	notifier *recordingNotifier
	sessions *shared.SessionManager
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMockRepository()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	return &handlerHarness{
		handler:  NewHandler(nil, svc, nil, nil, rbac.Middleware{}),
		service:  svc,
		repo:     repo,
		notifier: notifier,
		sessions: shared.NewSessionManager(client, "test_session", time.Hour, false),
	}
}

// serve runs fn with a stored session, the route params and principal p, then
// persists the session so a follow-up request can read its flash.
func (h *handlerHarness) serve(t *testing.T, req *http.Request, params map[string]string, p rbac.Principal, fn http.HandlerFunc) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = shared.ContextWithSession(ctx, sess)
	ctx = rbac.ContextWithPrincipal(ctx, p)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	fn(res, req)
	require.NoError(t, h.sessions.Commit(ctx, httptest.NewRecorder(), req, sess))
	return res, &http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID}
}

// nextFlash reads the flash stored in the session behind cookie.
func (h *handlerHarness) nextFlash(t *testing.T, cookie *http.Cookie) *shared.FlashMessage {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return sess.PopFlash()
}

func (h *handlerHarness) activate(t *testing.T, userID, token string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/activate/"+userID+"/"+token, nil)
	return h.serve(t, req, map[string]string{"userID": userID, "token": token}, rbac.Anonymous, h.handler.Activate)
}

func assertInvalidTokenProblem(t *testing.T, res *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(res.Body).Decode(&problem))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "Invalid Token", problem.Title)
}

func TestActivateHandlerRedirectsToSignIn(t *testing.T) {
	h := newHandlerHarness(t)
	identity, err := h.service.CreateIdentity(context.Background(), validSignUp("alice"))
	require.NoError(t, err)
	token := tokenFromURL(t, h.notifier.sent[0].url)

	res, cookie := h.activate(t, "1", token)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.SignInPath, res.Header().Get("Location"))
	flash := h.nextFlash(t, cookie)
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	stored, err := h.repo.Get(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestActivateHandlerRejectsReplay(t *testing.T) {
	h := newHandlerHarness(t)
	_, err := h.service.CreateIdentity(context.Background(), validSignUp("bob"))
	require.NoError(t, err)
	token := tokenFromURL(t, h.notifier.sent[0].url)

	first, _ := h.activate(t, "1", token)
	require.Equal(t, http.StatusSeeOther, first.Code)

	replay, _ := h.activate(t, "1", token)
	assertInvalidTokenProblem(t, replay)
}

func TestActivateHandlerRejectsBadLinks(t *testing.T) {
	h := newHandlerHarness(t)
	_, err := h.service.CreateIdentity(context.Background(), validSignUp("carol"))
	require.NoError(t, err)
	token := tokenFromURL(t, h.notifier.sent[0].url)

	cases := []struct {
		name, userID, token string
	}{
		{"garbage token", "1", "garbage"},
		{"unknown user", "404", token},
		{"non-numeric id", "abc", token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := h.activate(t, tc.userID, tc.token)
			assertInvalidTokenProblem(t, res)
		})
	}
	stored, err := h.repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func postAssignRole(userID, role string) *http.Request {
	form := url.Values{"role": {role}}
	req := httptest.NewRequest(http.MethodPost, "/users/admin/"+userID+"/assign-role", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAssignRoleHandler(t *testing.T) {
	h := newHandlerHarness(t)
	identity, err := h.service.CreateIdentity(context.Background(), validSignUp("dave"))
	require.NoError(t, err)
	params := map[string]string{"id": "1"}

	res, cookie := h.serve(t, postAssignRole("1", "2"), params, admin, h.handler.handleAssignRole)
	assert.Equal(t, "/users/admin", res.Header().Get("Location"))
	flash := h.nextFlash(t, cookie)
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	stored, _ := h.repo.Get(context.Background(), identity.ID)
	assert.Equal(t, []string{"Organizer"}, stored.Groups)

	res, cookie = h.serve(t, postAssignRole("404", "2"), map[string]string{"id": "404"}, admin, h.handler.handleAssignRole)
	assert.Equal(t, "/users/admin", res.Header().Get("Location"))
	flash = h.nextFlash(t, cookie)
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)
}

func TestAssignRoleHandlerSendsNonAdminToNoPermission(t *testing.T) {
	h := newHandlerHarness(t)
	_, err := h.service.CreateIdentity(context.Background(), validSignUp("erin"))
	require.NoError(t, err)
	organizer := rbac.Principal{UserID: 5, Authenticated: true, Groups: []string{"Organizer"}}

	res, _ := h.serve(t, postAssignRole("1", "1"), map[string]string{"id": "1"}, organizer, h.handler.handleAssignRole)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.NoPermissionPath, res.Header().Get("Location"))
	stored, _ := h.repo.Get(context.Background(), 1)
	assert.Equal(t, []string{DefaultGroup}, stored.Groups)
}
