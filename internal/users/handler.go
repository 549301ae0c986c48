package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/eventhub/internal/platform/httpx"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

// Handler manages account endpoints: sign-up, activation, profile and the
// admin user list.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountSignUp registers the public sign-up routes under /auth.
func (h *Handler) MountSignUp(r chi.Router) {
	r.Get("/sign-up", h.showSignUp)
	r.Post("/sign-up", h.handleSignUp)
}

// Activate handles GET /activate/{userID}/{token}.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrInvalidToken)
		return
	}
	if err := h.service.Activate(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidToken) {
			h.logger.Info("activation rejected", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.RespondError(w, shared.ErrInvalidToken)
			return
		}
		h.logger.Error("activate account", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	shared.Flash(r.Context(), shared.FlashSuccess, "Your account has been activated. You can sign in now.")
	http.Redirect(w, r, rbac.SignInPath, http.StatusSeeOther)
}

// MountRoutes registers the signed-in profile routes under /users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireLogin)
		r.Get("/profile", h.showProfile)
		r.Get("/profile/edit", h.showProfileEdit)
		r.Post("/profile/edit", h.handleProfileEdit)
		r.Get("/password/change", h.showPasswordChange)
		r.Post("/password/change", h.handlePasswordChange)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Get("/{id}/assign-role", h.showAssignRole)
		r.Post("/{id}/assign-role", h.handleAssignRole)
		r.Post("/{id}/delete", h.handleDelete)
	})
}

type signUpPageData struct {
	Form   SignUpInput
	Errors shared.ValidationErrors
}

func (h *Handler) showSignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/sign_up.html", "Sign Up", signUpPageData{Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := SignUpInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		FirstName:       r.PostFormValue("first_name"),
		LastName:        r.PostFormValue("last_name"),
		Password:        r.PostFormValue("password1"),
		PasswordConfirm: r.PostFormValue("password2"),
	}
	if _, err := h.service.CreateIdentity(r.Context(), form); err != nil {
		form.Password, form.PasswordConfirm = "", ""
		if verr, ok := shared.AsValidation(err); ok {
			h.render(w, r, "pages/users/sign_up.html", "Sign Up", signUpPageData{Form: form, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.logger.Error("sign up", slog.Any("error", err))
		h.render(w, r, "pages/users/sign_up.html", "Sign Up", signUpPageData{Form: form, Errors: shared.ValidationErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, rbac.SignInPath, shared.FlashSuccess, "A confirmation mail has been sent. Please check your email.")
}

func (h *Handler) currentIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	p := rbac.PrincipalFromContext(r.Context())
	identity, err := h.service.Get(r.Context(), p.UserID)
	if err != nil {
		h.logger.Error("load profile", slog.Int64("user_id", p.UserID), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/", shared.FlashError, shared.UserSafeMessage(err))
		return Identity{}, false
	}
	return identity, true
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.currentIdentity(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/users/profile.html", "Profile", map[string]any{"User": identity}, http.StatusOK)
}

type profilePageData struct {
	Form   ProfileInput
	Errors shared.ValidationErrors
}

func (h *Handler) showProfileEdit(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.currentIdentity(w, r)
	if !ok {
		return
	}
	form := ProfileInput{FirstName: identity.FirstName, LastName: identity.LastName, Email: identity.Email}
	h.render(w, r, "pages/users/profile_edit.html", "Edit Profile", profilePageData{Form: form, Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) handleProfileEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	form := ProfileInput{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
	}
	if err := h.service.UpdateProfile(r.Context(), p.UserID, form); err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.render(w, r, "pages/users/profile_edit.html", "Edit Profile", profilePageData{Form: form, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.logger.Error("update profile", slog.Int64("user_id", p.UserID), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users/profile", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users/profile", shared.FlashSuccess, "Profile updated successfully.")
}

type passwordPageData struct {
	Errors shared.ValidationErrors
}

func (h *Handler) showPasswordChange(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/password_change.html", "Change Password", passwordPageData{Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	input := PasswordChangeInput{
		OldPassword:     r.PostFormValue("old_password"),
		NewPassword:     r.PostFormValue("new_password1"),
		PasswordConfirm: r.PostFormValue("new_password2"),
	}
	if err := h.service.ChangePassword(r.Context(), p.UserID, input); err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.render(w, r, "pages/users/password_change.html", "Change Password", passwordPageData{Errors: verr}, http.StatusBadRequest)
			return
		}
		h.logger.Error("change password", slog.Int64("user_id", p.UserID), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users/profile", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users/profile", shared.FlashSuccess, "Your password was changed.")
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, "pages/users/admin_list.html", "Users", map[string]any{"Errors": shared.ValidationErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/admin_list.html", "Users", map[string]any{"Users": identities}, http.StatusOK)
}

type assignRolePageData struct {
	User   Identity
	Groups []GroupOption
	Errors shared.ValidationErrors
}

func (h *Handler) showAssignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	identity, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.render(w, r, "pages/users/assign_role.html", "Assign Role", assignRolePageData{User: identity, Groups: groups, Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	groupID, err := strconv.ParseInt(r.PostFormValue("role"), 10, 64)
	if err != nil || groupID <= 0 {
		h.redirectWithFlash(w, r, "/users/admin/"+strconv.FormatInt(userID, 10)+"/assign-role", shared.FlashError, "Select a role.")
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	if err := h.service.SetRole(r.Context(), actor, userID, groupID); err != nil {
		switch {
		case errors.Is(err, shared.ErrForbidden):
			http.Redirect(w, r, rbac.NoPermissionPath, http.StatusSeeOther)
		case errors.Is(err, shared.ErrNotFound):
			h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		default:
			h.logger.Error("assign role", slog.Int64("user_id", userID), slog.Int64("group_id", groupID), slog.Any("error", err))
			h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		}
		return
	}
	h.redirectWithFlash(w, r, "/users/admin", shared.FlashSuccess, "Role assigned successfully.")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, userID); err != nil {
		msg := shared.UserSafeMessage(err)
		if verr, ok := shared.AsValidation(err); ok {
			msg = verr["general"]
		} else if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("delete user", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/users/admin", shared.FlashError, msg)
		return
	}
	h.redirectWithFlash(w, r, "/users/admin", shared.FlashSuccess, "User deleted.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
