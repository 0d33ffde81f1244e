package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/adapter/persistence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mode        string
		dir         string
		databaseURL string
		steps       int
		logLevel    string
	)

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&mode, "mode", "up", "migration mode: up or down")
	flagSet.StringVar(&dir, "dir", "migrations", "directory holding NNN_name.up.sql / NNN_name.down.sql files")
	flagSet.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (default $DATABASE_URL)")
	flagSet.IntVar(&steps, "steps", 1, "number of migrations to revert in down mode (0 reverts all)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	log := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       logLevel,
		Format:      "text",
		ServiceName: "complaintdesk-migrate",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := persistence.NewMigrator(db, dir, log)

	switch strings.ToLower(mode) {
	case persistence.MigrationUp:
		n, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info(ctx, "Migration up completed", map[string]interface{}{"applied": n})
	case persistence.MigrationDown:
		n, err := migrator.Down(ctx, steps)
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Info(ctx, "Migration down completed", map[string]interface{}{"reverted": n})
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
	return nil
}
