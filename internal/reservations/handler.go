package reservations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ParticipantDashboardPath is where a reserve request lands.
const ParticipantDashboardPath = "/dashboard/participant"

// Handler exposes the RSVP endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers POST /{id}/rsvp on the events router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireRole(rbac.RoleParticipant)).Post("/{id}/rsvp", h.reserve)
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithFlash(w, r, events.ListPath, shared.FlashError, "Event not found.")
		return
	}
	result, err := h.service.Reserve(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			h.redirectWithFlash(w, r, events.ListPath, shared.FlashError, "Event not found.")
		case errors.Is(err, shared.ErrForbidden):
			http.Redirect(w, r, rbac.NoPermissionPath, http.StatusSeeOther)
		default:
			h.logger.Error("reserve event", slog.Int64("event_id", id), slog.Any("error", err))
			h.redirectWithFlash(w, r, events.ListPath, shared.FlashError, shared.UserSafeMessage(err))
		}
		return
	}
	kind := shared.FlashSuccess
	if result.Outcome == OutcomeAlreadyReserved {
		kind = shared.FlashWarning
	}
	h.redirectWithFlash(w, r, ParticipantDashboardPath, kind, result.Outcome.Message(result.Event.Name))
}

// ReserveForTest exposes the POST handler for tests.
func (h *Handler) ReserveForTest(w http.ResponseWriter, r *http.Request) {
	h.reserve(w, r)
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
