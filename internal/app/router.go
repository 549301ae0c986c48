package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/eventhub/internal/auth"
	"github.com/odyssey-erp/eventhub/internal/catalog/categories"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/dashboard"
	"github.com/odyssey-erp/eventhub/internal/observability"
	"github.com/odyssey-erp/eventhub/internal/platform/httpx"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/reservations"
	"github.com/odyssey-erp/eventhub/internal/roles"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/users"
	"github.com/odyssey-erp/eventhub/internal/view"
	"github.com/odyssey-erp/eventhub/jobs"
	"github.com/odyssey-erp/eventhub/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Templates           *view.Engine
	SessionManager      *shared.SessionManager
	CSRFManager         *shared.CSRFManager
	RBACMiddleware      rbac.Middleware
	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	RolesHandler        *roles.Handler
	CategoriesHandler   *categories.Handler
	EventsHandler       *events.Handler
	ReservationsHandler *reservations.Handler
	DashboardHandler    *dashboard.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with eventhub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		RBAC:           params.RBACMiddleware,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	pages := pageRenderer{logger: params.Logger, templates: params.Templates, csrf: params.CSRFManager}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, "pages/home.html", "Eventhub", http.StatusOK)
	})
	r.Get(rbac.NoPermissionPath, func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, "pages/no_permission.html", "No Permission", http.StatusForbidden)
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		params.UsersHandler.MountSignUp(r)
	})
	r.Get("/activate/{userID}/{token}", params.UsersHandler.Activate)
	r.Route("/users", params.UsersHandler.MountRoutes)
	r.Route("/roles", params.RolesHandler.MountRoutes)
	r.Route("/categories", params.CategoriesHandler.MountRoutes)
	r.Route(events.ListPath, func(r chi.Router) {
		params.EventsHandler.MountRoutes(r, params.ReservationsHandler.MountRoutes)
	})
	r.Route("/dashboard", params.DashboardHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

type pageRenderer struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
}

func (p pageRenderer) render(w http.ResponseWriter, r *http.Request, name, title string, status int) {
	data := view.NewTemplateData(r, p.csrf, title, nil)
	if err := p.templates.RenderStatus(w, status, name, data); err != nil {
		p.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
