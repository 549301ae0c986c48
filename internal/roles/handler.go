package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

// Handler manages group endpoints.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
	r.Get("/", h.listGroups)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createGroup)
	r.Post("/{id}/delete", h.deleteGroup)
	r.Get("/permissions", h.listPermissions)
}

type formPageData struct {
	Form        CreateGroupInput
	Permissions []Permission
	Selected    map[int64]bool
	Errors      shared.ValidationErrors
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		h.render(w, r, "pages/roles/list.html", "Groups", map[string]any{"Errors": shared.ValidationErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/list.html", "Groups", map[string]any{"Groups": groups}, http.StatusOK)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.render(w, r, "pages/roles/permissions.html", "Permissions", map[string]any{"Permissions": perms}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formPageData{Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, data formPageData, status int) {
	perms, err := h.service.ListPermissions(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	data.Permissions = perms
	data.Selected = make(map[int64]bool, len(data.Form.PermissionIDs))
	for _, id := range data.Form.PermissionIDs {
		data.Selected[id] = true
	}
	h.render(w, r, "pages/roles/form.html", "Create Group", data, status)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := CreateGroupInput{Name: r.PostFormValue("name")}
	for _, raw := range r.PostForm["permissions"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			id = -1
		}
		input.PermissionIDs = append(input.PermissionIDs, id)
	}
	group, err := h.service.CreateGroup(r.Context(), rbac.PrincipalFromContext(r.Context()), input)
	if err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.renderForm(w, r, formPageData{Form: input, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.logger.Error("create group", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/roles", shared.FlashSuccess, "Group '"+group.Name+"' created successfully.")
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/roles", shared.FlashError, shared.UserSafeMessage(shared.ErrNotFound))
		return
	}
	err = h.service.DeleteGroup(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/roles", shared.FlashSuccess, "Group deleted.")
	case errors.Is(err, ErrBuiltinGroup):
		h.redirectWithFlash(w, r, "/roles", shared.FlashWarning, "Role groups cannot be deleted.")
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("delete group", slog.Int64("group_id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/roles", shared.FlashError, shared.UserSafeMessage(err))
	}
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
