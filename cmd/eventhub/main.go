package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/eventhub/cmd/eventhub/cli"
	"github.com/odyssey-erp/eventhub/internal/app"
	"github.com/odyssey-erp/eventhub/internal/auth"
	"github.com/odyssey-erp/eventhub/internal/catalog/categories"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/dashboard"
	"github.com/odyssey-erp/eventhub/internal/notify"
	"github.com/odyssey-erp/eventhub/internal/observability"
	"github.com/odyssey-erp/eventhub/internal/platform/cache"
	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/reservations"
	"github.com/odyssey-erp/eventhub/internal/roles"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/users"
	"github.com/odyssey-erp/eventhub/internal/view"
	"github.com/odyssey-erp/eventhub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "eventhub_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	hook := notify.NewHook(notify.NewQueueSender(jobClient), logger, metrics)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	usersService := users.NewService(users.ServiceConfig{
		Repo:     users.NewRepository(dbpool, auditLogger),
		Tokens:   users.NewActivationTokens(cfg.ActivationSecret, cfg.ActivationTTL),
		Notifier: hook,
		BaseURL:  cfg.AppBaseURL,
		Logger:   logger,
	})
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, rbacMiddleware)

	authService := auth.NewService(usersService, auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	rolesService := roles.NewService(roles.NewRepository(dbpool, auditLogger))
	rolesHandler := roles.NewHandler(logger, rolesService, templates, csrfManager, rbacMiddleware)

	categoriesService := categories.NewService(categories.NewRepository(dbpool, auditLogger))
	categoriesHandler := categories.NewHandler(logger, categoriesService, templates, csrfManager, rbacMiddleware)

	location := cfg.Location()
	eventsRepo := events.NewRepository(dbpool, auditLogger)
	reservationsService := reservations.NewService(reservations.NewRepository(dbpool), eventsRepo, hook, metrics, logger)
	reservationsHandler := reservations.NewHandler(logger, reservationsService, rbacMiddleware)
	eventsService := events.NewService(eventsRepo, reservationsService, location)
	eventsHandler := events.NewHandler(logger, eventsService, templates, csrfManager, rbacMiddleware)

	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), location, time.Now)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, templates, csrfManager, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		RBACMiddleware:      rbacMiddleware,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		RolesHandler:        rolesHandler,
		CategoriesHandler:   categoriesHandler,
		EventsHandler:       eventsHandler,
		ReservationsHandler: reservationsHandler,
		DashboardHandler:    dashboardHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", location.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles "eventhub jobs trigger <task>" and "eventhub jobs stats".
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		return errors.New("usage: eventhub jobs trigger <task> | eventhub jobs stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: eventhub jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
