package db

import (
	"context"
	"errors"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator applies and reverts the schema. It backs the admin
// /table/create and /table/drop endpoints as well as boot-time migrations.
type Migrator struct {
	cfg config.MigrationConfig
}

// NewMigrator creates a migrator for the configured directory.
func NewMigrator(cfg config.MigrationConfig) *Migrator {
	return &Migrator{cfg: cfg}
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return RunMigrations(ctx, m.cfg, m.cfg.GetMigrationsDir())
}

// Down reverts every applied migration.
func (m *Migrator) Down(_ context.Context) error {
	dir := m.cfg.GetMigrationsDir()
	if strings.TrimSpace(dir) == "" {
		return nil
	}

	mg, err := migrate.New("file://"+dir, m.cfg.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// RunMigrations applies all pending migrations from the provided directory.
func RunMigrations(_ context.Context, cfg config.DatabaseConfig, migrationsDir string) error {
	if strings.TrimSpace(migrationsDir) == "" {
		return nil
	}

	m, err := migrate.New("file://"+migrationsDir, cfg.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
