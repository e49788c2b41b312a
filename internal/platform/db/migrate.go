package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies pending schema migrations from dir against dsn.
// A database that is already up to date is not an error.
func Migrate(dsn, dir string) error {
	source := "file://" + dir
	// golang-migrate selects its driver from the URL scheme.
	target := strings.Replace(dsn, "postgres://", "pgx5://", 1)

	m, err := migrate.New(source, target)
	if err != nil {
		return fmt.Errorf("platform/db: open migrations: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/db: apply migrations: %w", err)
	}
	return nil
}
