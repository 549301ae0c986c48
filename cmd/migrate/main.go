package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/odyssey-erp/eventhub/internal/app"
	"github.com/odyssey-erp/eventhub/internal/platform/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		if cfg, err := app.LoadConfig(); err == nil {
			dsn = cfg.PGDSN
		}
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		logger.Error("migrate", slog.String("direction", *direction), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.String("direction", *direction))
}
