package db

import (
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// Migration applies every pending migration from migratePath to the database.
func Migration(dbStr, migratePath string) error {
	if dbStr == "" {
		return fmt.Errorf("migration: empty database connection string")
	}
	if migratePath == "" {
		return fmt.Errorf("migration: empty migrations path")
	}

	m, err := migrate.New("file://"+migratePath, dbStr)
	if err != nil {
		log.Error().Err(err).Str("path", migratePath).Msg("[ERROR] failed to initialise migrations")
		return fmt.Errorf("migration: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("closing migrator")
		}
	}()

	if err := m.Up(); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("[SUCCESS] database schema is up to date")
			return nil
		}
		log.Error().Err(err).Msg("[ERROR] failed to apply migrations")
		return fmt.Errorf("migration: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("[SUCCESS] migrations applied")
	return nil
}
