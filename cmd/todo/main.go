package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todoapp/internal/cache"
	"todoapp/internal/notify"
	"todoapp/internal/server"
	"todoapp/internal/service"
	db "todoapp/repository/db"
	"todoapp/repository/gormdb"
	inmemory "todoapp/repository/inmemory"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

type apiServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	cfg, err := server.ReadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogger(os.Stderr, cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("[ERROR] todo service failed")
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred closes always run.
func run(cfg *server.Config) error {
	log.Info().Str("driver", cfg.DBDriver).Msg("starting todo service")

	if err := service.ValidateSchedule(cfg.PurgeSchedule); err != nil {
		return fmt.Errorf("purge schedule %q: %w", cfg.PurgeSchedule, err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}
	defer closeStore()

	statsCache, closeCache := connectCache(cfg.RedisAddr)
	defer closeCache()

	api := server.NewTodoAPI(store, notify.New(&cfg.Notify), statsCache, cfg)
	if api == nil {
		return fmt.Errorf("failed to initialise API")
	}

	scheduler := service.NewScheduler(store)
	if _, err := scheduler.SchedulePurge(cfg.PurgeSchedule); err != nil {
		return fmt.Errorf("purge schedule %q: %w", cfg.PurgeSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info().Str("addr", cfg.ListenAddr()).Msg("service listening")
	if err := serve(api, sigChan, shutdownTimeout); err != nil {
		return err
	}
	log.Info().Msg("service stopped")
	return nil
}

// setupLogger uses a console writer for "debug" and JSON lines otherwise.
func setupLogger(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if lvl == zerolog.DebugLevel || lvl == zerolog.TraceLevel {
		log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02_15:04:05"})
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// openStore returns the store for cfg.DBDriver. A PostgreSQL database that
// cannot be reached falls back to the in-memory store.
func openStore(cfg *server.Config) (service.Store, func(), error) {
	noop := func() {}

	switch cfg.DBDriver {
	case server.DriverPostgres, "":
		if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
			log.Warn().Err(err).Msg("[WARN] migrations failed, using in-memory storage")
			return inmemory.NewStorage(), noop, nil
		}
		storage, err := db.NewStorage(cfg.DBStr)
		if err != nil {
			log.Warn().Err(err).Msg("[WARN] database unreachable, using in-memory storage")
			return inmemory.NewStorage(), noop, nil
		}
		return storage, storage.Close, nil
	case server.DriverSQLite, server.DriverMySQL:
		storage, err := gormdb.NewStorage(cfg.DBDriver, cfg.DBStr)
		if err != nil {
			return nil, noop, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				log.Error().Err(err).Msg("[ERROR] closing database")
			}
		}, nil
	case server.DriverMemory:
		return inmemory.NewStorage(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
	}
}

// connectCache returns a nil cache when no address is configured or Redis is
// down; statistics are then computed per request.
func connectCache(addr string) (service.StatsCache, func()) {
	if addr == "" {
		return nil, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.Connect(ctx, addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("[WARN] redis unavailable, statistics cache disabled")
		return nil, func() {}
	}
	return cache.NewStatsCache(client, cache.DefaultTTL), func() { _ = client.Close() }
}

// serve runs api until it fails or a signal arrives, then shuts it down
// within timeout.
func serve(api apiServer, signals <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	select {
	case sig := <-signals:
		log.Info().Str("signal", sig.String()).Msg("graceful shutdown started")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("[SUCCESS] graceful shutdown complete")
		return nil
	case err := <-serverErr:
		return err
	}
}
