// Command migrate applies the embedded weapon_ammo schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/config"
	"github.com/cory-johannsen/shooter/internal/observability"
	"github.com/cory-johannsen/shooter/migrations"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	action := flag.String("action", "up", "up, down or status")
	steps := flag.Int("steps", 0, "limit up/down to this many steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.NewLogger(cfg.Logging, "migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg.Database, *action, *steps, logger); err != nil {
		logger.Fatal("migration failed", zap.String("action", *action), zap.Error(err))
	}
}

func run(db config.DatabaseConfig, action string, steps int, logger *zap.Logger) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, db.DSN())
	if err != nil {
		return fmt.Errorf("connecting migrator: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "status":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
		err = nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("schema empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
