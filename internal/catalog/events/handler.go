package events

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/view"
)

// ListPath is the event list URL.
const ListPath = "/events"

// Handler manages event endpoints.
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

// MountRoutes registers event routes. Extra sub-routes, such as the RSVP
// endpoint, can be attached through extra.
func (h *Handler) MountRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Use(h.rbac.RequireLogin)
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleOrganizer))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}/edit", h.update)
	})
	r.With(h.rbac.RequireRole(rbac.RoleAdmin)).Post("/{id}/delete", h.delete)
	r.Get("/{id}", h.show)
	for _, mount := range extra {
		mount(r)
	}
}

type listPageData struct {
	Page    Page
	Search  string
	Bucket  catalog.Bucket
	Buckets []catalog.Bucket
}

type formPageData struct {
	ID         int64
	Form       Input
	Categories []CategoryOption
	Errors     shared.ValidationErrors
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	filters := catalog.ListFilters{
		Search: query.Get("q"),
		Bucket: catalog.ParseBucket(query.Get("type")),
		Page:   page,
	}
	result, err := h.service.List(r.Context(), rbac.PrincipalFromContext(r.Context()), filters)
	if err != nil {
		h.logger.Error("list events", slog.Any("error", err))
		http.Error(w, shared.UserSafeMessage(err), http.StatusInternalServerError)
		return
	}
	data := listPageData{
		Page:    result,
		Search:  filters.Search,
		Bucket:  filters.Bucket,
		Buckets: catalog.Buckets(),
	}
	h.render(w, r, "pages/events/list.html", "Events", data, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Detail(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "load event", id, err)
		return
	}
	h.render(w, r, "pages/events/detail.html", detail.Event.Name, detail, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "New Event", formPageData{Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := formInput(r)
	id, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), input)
	if err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.renderForm(w, r, "New Event", formPageData{Form: input, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.fail(w, r, "create event", 0, err)
		return
	}
	h.redirectWithFlash(w, r, ListPath+"/"+strconv.FormatInt(id, 10), shared.FlashSuccess, "Event created.")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "load event", id, err)
		return
	}
	form := Input{
		Name:        event.Name,
		Description: event.Description,
		Date:        event.Date.Format("2006-01-02"),
		Time:        event.Time,
		Location:    event.Location,
		CategoryID:  event.CategoryID,
	}
	if event.ImageRef != nil {
		form.ImageRef = *event.ImageRef
	}
	h.renderForm(w, r, "Edit Event", formPageData{ID: id, Form: form, Errors: shared.ValidationErrors{}}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	input := formInput(r)
	if err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, input); err != nil {
		if verr, ok := shared.AsValidation(err); ok {
			h.renderForm(w, r, "Edit Event", formPageData{ID: id, Form: input, Errors: verr}, http.StatusBadRequest)
			return
		}
		h.fail(w, r, "update event", id, err)
		return
	}
	h.redirectWithFlash(w, r, ListPath+"/"+strconv.FormatInt(id, 10), shared.FlashSuccess, "Event updated.")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, "delete event", id, err)
		return
	}
	h.redirectWithFlash(w, r, ListPath, shared.FlashSuccess, "Event deleted.")
}

func formInput(r *http.Request) Input {
	categoryID, _ := strconv.ParseInt(r.PostFormValue("category"), 10, 64)
	return Input{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Date:        r.PostFormValue("date"),
		Time:        r.PostFormValue("time"),
		Location:    r.PostFormValue("location"),
		CategoryID:  categoryID,
		ImageRef:    r.PostFormValue("image"),
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithFlash(w, r, ListPath, shared.FlashError, "Event not found.")
		return 0, false
	}
	return id, true
}

// fail maps service errors to the redirect the user sees.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.redirectWithFlash(w, r, ListPath, shared.FlashError, "Event not found.")
	case errors.Is(err, shared.ErrForbidden):
		http.Redirect(w, r, rbac.NoPermissionPath, http.StatusSeeOther)
	default:
		h.logger.Error(op, slog.Int64("event_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, ListPath, shared.FlashError, shared.UserSafeMessage(err))
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, title string, data formPageData, status int) {
	options, err := h.service.CategoryOptions(r.Context())
	if err != nil {
		h.logger.Error("load category options", slog.Any("error", err))
	}
	data.Categories = options
	h.render(w, r, "pages/events/form.html", title, data, status)
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
