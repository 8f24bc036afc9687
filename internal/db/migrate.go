package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/db/migrations"
	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Migrate applies the embedded migrations. With steps == 0 every pending
// migration is applied; a negative value rolls back that many steps.
func Migrate(ctx context.Context, dsn string, steps int) error {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	driver, err := pgxv5.WithInstance(conn, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	src, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("initialise migrate instance: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			zap.L().Warn("close migrate instance", zap.NamedError("source", sourceErr), zap.NamedError("database", dbErr))
		}
	}()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", verr)
	}
	zap.L().Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
