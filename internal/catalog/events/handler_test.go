package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

func eventRequest(method, path, id string, form url.Values, p rbac.Principal) (*http.Request, *shared.Session) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	sess := &shared.Session{}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = shared.ContextWithSession(ctx, sess)
	ctx = rbac.ContextWithPrincipal(ctx, p)
	return req.WithContext(ctx), sess
}

func workshopForm() url.Values {
	return url.Values{
		"name":        {"Go Workshop"},
		"description": {"Hands-on concurrency"},
		"date":        {"2025-06-01"},
		"time":        {"18:30"},
		"location":    {"Hall A"},
		"category":    {"1"},
	}
}

func assertNotFoundRedirect(t *testing.T, res *httptest.ResponseRecorder, sess *shared.Session) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, ListPath, res.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)
	assert.Equal(t, "Event not found.", flash.Message)
}

func TestHandlerUpdateMissingEventRedirectsToList(t *testing.T) {
	h := NewHandler(nil, newService(newMockRepository(), nil, "2025-06-02"), nil, nil, rbac.Middleware{})

	for _, id := range []string{"42", "abc", "0"} {
		req, sess := eventRequest(http.MethodPost, "/events/"+id+"/edit", id, workshopForm(), organizer)
		res := httptest.NewRecorder()
		h.update(res, req)
		assertNotFoundRedirect(t, res, sess)
	}
}

func TestHandlerEditFormOfMissingEventRedirectsToList(t *testing.T) {
	h := NewHandler(nil, newService(newMockRepository(), nil, "2025-06-02"), nil, nil, rbac.Middleware{})

	req, sess := eventRequest(http.MethodGet, "/events/7/edit", "7", nil, organizer)
	res := httptest.NewRecorder()
	h.showEdit(res, req)
	assertNotFoundRedirect(t, res, sess)
}

func TestHandlerDeleteMissingEventRedirectsToList(t *testing.T) {
	h := NewHandler(nil, newService(newMockRepository(), nil, "2025-06-02"), nil, nil, rbac.Middleware{})

	req, sess := eventRequest(http.MethodPost, "/events/42/delete", "42", url.Values{}, admin)
	res := httptest.NewRecorder()
	h.delete(res, req)
	assertNotFoundRedirect(t, res, sess)
}

func TestHandlerDeleteEvent(t *testing.T) {
	repo := newMockRepository()
	svc := newService(repo, nil, "2025-06-02")
	id, err := svc.Create(context.Background(), organizer, workshop("2025-06-01"))
	require.NoError(t, err)
	h := NewHandler(nil, svc, nil, nil, rbac.Middleware{})

	req, _ := eventRequest(http.MethodPost, "/events/1/delete", "1", url.Values{}, organizer)
	res := httptest.NewRecorder()
	h.delete(res, req)
	assert.Equal(t, rbac.NoPermissionPath, res.Header().Get("Location"))
	assert.Contains(t, repo.events, id)

	req, sess := eventRequest(http.MethodPost, "/events/1/delete", "1", url.Values{}, admin)
	res = httptest.NewRecorder()
	h.delete(res, req)
	assert.Equal(t, ListPath, res.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	assert.NotContains(t, repo.events, id)
}
