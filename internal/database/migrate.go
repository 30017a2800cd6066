package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the schema up to date at process startup. The agent
// owns its tables (subscriptions, usage ledgers, conversations, course
// progress, speaking reports) and applies pending migrations before serving.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		slog.Debug("database schema already current")
	case err != nil:
		return fmt.Errorf("applying migrations: %w", err)
	}

	ver, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		slog.Warn("could not read schema version", "error", verr)
		return nil
	}
	slog.Info("database schema ready", "version", ver, "dirty", dirty)
	return nil
}
