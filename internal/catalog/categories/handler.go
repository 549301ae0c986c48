package categories

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

const listPath = "/categories"

// Handler manages category endpoints.
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

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
	r.Get("/", h.list)
	r.Get("/new", h.showCreate)
	r.Post("/", h.create)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}/edit", h.update)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.delete)
}

type formPageData struct {
	ID     int64
	Form   Input
	Errors shared.ValidationErrors
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.List(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		h.render(w, r, "pages/categories/list.html", "Categories", map[string]any{"Errors": shared.ValidationErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/categories/list.html", "Categories", map[string]any{"Categories": categories}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/categories/form.html", "New Category", formPageData{Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := Input{Name: r.PostFormValue("name"), Description: r.PostFormValue("description")}
	if _, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), input); err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.render(w, r, "pages/categories/form.html", "New Category", formPageData{Form: input, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.logger.Error("create category", slog.Any("error", err))
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Category created.")
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Category, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
		return Category{}, false
	}
	category, err := h.service.Get(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
			return Category{}, false
		}
		h.logger.Error("load category", slog.Int64("category_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return Category{}, false
	}
	return category, true
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	category, ok := h.load(w, r)
	if !ok {
		return
	}
	form := Input{Name: category.Name}
	if category.Description != nil {
		form.Description = *category.Description
	}
	h.render(w, r, "pages/categories/form.html", "Edit Category", formPageData{ID: category.ID, Form: form, Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
		return
	}
	input := Input{Name: r.PostFormValue("name"), Description: r.PostFormValue("description")}
	if err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, input); err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.render(w, r, "pages/categories/form.html", "Edit Category", formPageData{ID: id, Form: input, Errors: verr}, http.StatusBadRequest)
			return
		}
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
			return
		}
		h.logger.Error("update category", slog.Int64("category_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Category updated.")
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	category, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/categories/delete.html", "Delete Category", map[string]any{"Category": category}, http.StatusOK)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
		return
	}
	removed, err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, listPath, shared.FlashError, "Category not found.")
			return
		}
		h.logger.Error("delete category", slog.Int64("category_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, fmt.Sprintf("Category deleted along with %d event(s).", removed))
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
