package main

import (
	"fmt"
	"os"
	"time"

	"todoapp/internal/server"
	db "todoapp/repository/db"
	"todoapp/repository/gormdb"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := server.ReadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("[ERROR] reading config")
	}
	if err := migrate(cfg); err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("[ERROR] migration failed")
	}
}

// migrate brings the schema of the configured database up to date. The gorm
// drivers migrate on open.
func migrate(cfg *server.Config) error {
	switch cfg.DBDriver {
	case server.DriverPostgres, "":
		return db.Migration(cfg.DBStr, cfg.MigratePath)
	case server.DriverSQLite, server.DriverMySQL:
		storage, err := gormdb.NewStorage(cfg.DBDriver, cfg.DBStr)
		if err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("[SUCCESS] schema migrated")
		return storage.Close()
	case server.DriverMemory:
		log.Info().Msg("in-memory storage has no schema")
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
	}
}
