package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sign-in", h.showSignIn)
	r.Post("/sign-in", h.handleSignIn)
	r.Get("/sign-out", h.showSignOut)
	r.Post("/sign-out", h.handleSignOut)
}

type signInForm struct {
	Username string `validate:"required,max=150"`
	Password string `validate:"required"`
	Next     string
}

type signInPageData struct {
	Form   signInForm
	Errors map[string]string
}

func (h *Handler) showSignIn(w http.ResponseWriter, r *http.Request) {
	if p := rbac.PrincipalFromContext(r.Context()); p.Authenticated {
		http.Redirect(w, r, rbac.DashboardPath(p), http.StatusSeeOther)
		return
	}
	data := signInPageData{Form: signInForm{Next: safeNext(r.URL.Query().Get("next"))}, Errors: map[string]string{}}
	h.render(w, r, "pages/auth/sign_in.html", "Sign In", data, http.StatusOK)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := signInForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Next:     safeNext(r.PostFormValue("next")),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = "This field is required."
			}
		}
	}

	if len(errs) == 0 {
		identity, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
		switch {
		case errors.Is(err, shared.ErrInactiveAccount):
			shared.Flash(r.Context(), shared.FlashError, shared.UserSafeMessage(err))
			http.Redirect(w, r, rbac.SignInPath, http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = "Please enter a correct username and password."
		case err != nil:
			h.logger.Error("authenticate", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		default:
			if sess == nil {
				h.logger.Error("session missing during sign-in")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sess.SetUser(identity.ID)
			expiresAt := time.Now().Add(h.sessionManager.TTL())
			if err := h.service.RegisterSession(r.Context(), sess.ID, identity.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
				h.logger.Warn("register session", slog.Any("error", err))
			}
			target := form.Next
			if target == "" {
				target = rbac.DashboardPath(PrincipalFor(identity))
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.render(w, r, "pages/auth/sign_in.html", "Sign In", signInPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) showSignOut(w http.ResponseWriter, r *http.Request) {
	if !rbac.PrincipalFromContext(r.Context()).Authenticated {
		http.Redirect(w, r, rbac.SignInPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/auth/sign_out.html", "Sign Out", nil, http.StatusOK)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, rbac.SignInPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrfManager, title, data)
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

// safeNext accepts only local absolute paths as post-login targets.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

// ShowSignInForTest exposes the GET handler for tests.
func (h *Handler) ShowSignInForTest(w http.ResponseWriter, r *http.Request) {
	h.showSignIn(w, r)
}

// HandleSignInForTest exposes the POST handler for tests.
func (h *Handler) HandleSignInForTest(w http.ResponseWriter, r *http.Request) {
	h.handleSignIn(w, r)
}

// HandleSignOutForTest exposes the POST sign-out handler for tests.
func (h *Handler) HandleSignOutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleSignOut(w, r)
}
