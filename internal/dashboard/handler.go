package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

// Handler renders the dashboards.
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

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireLogin)
	r.Get("/", h.redirect)
	r.With(h.rbac.RequireRole(rbac.RoleAdmin)).Get("/admin", h.admin)
	r.With(h.rbac.RequireRole(rbac.RoleOrganizer)).Get("/organizer", h.organizer)
	r.With(h.rbac.RequireRole(rbac.RoleOrganizer)).Get("/organizer/participants", h.participants)
	r.With(h.rbac.RequireRole(rbac.RoleParticipant)).Get("/participant", h.participant)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, rbac.DashboardPath(rbac.PrincipalFromContext(r.Context())), http.StatusSeeOther)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Admin(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "admin dashboard", err)
		return
	}
	h.render(w, r, "pages/dashboard/admin.html", "Admin Dashboard", data)
}

func (h *Handler) organizer(w http.ResponseWriter, r *http.Request) {
	bucket := catalog.ParseBucket(r.URL.Query().Get("type"))
	data, err := h.service.Organizer(r.Context(), rbac.PrincipalFromContext(r.Context()), bucket)
	if err != nil {
		h.fail(w, r, "organizer dashboard", err)
		return
	}
	h.render(w, r, "pages/dashboard/organizer.html", "Organizer Dashboard", data)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Participants(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "participant list", err)
		return
	}
	h.render(w, r, "pages/dashboard/participants.html", "Participants", data)
}

func (h *Handler) participant(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Participant(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "participant dashboard", err)
		return
	}
	h.render(w, r, "pages/dashboard/participant.html", "My Events", data)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, shared.ErrForbidden) {
		http.Redirect(w, r, rbac.NoPermissionPath, http.StatusSeeOther)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, http.StatusOK, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}
