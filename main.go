// main.go
//
// Entry point for the arena game server.
// Responsibilities:
//   - Load .env and configure zerolog (level, optional log file tee).
//   - Open SQLite, apply embedded migrations, restore open sessions.
//   - Start the session sweeper and the HTTP/websocket server.

package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/assets"
	"github.com/robalobadob/arena/internal/events"
	"github.com/robalobadob/arena/internal/httpserver"
	"github.com/robalobadob/arena/internal/registry"
	"github.com/robalobadob/arena/internal/settle"
	"github.com/robalobadob/arena/internal/store"
	"github.com/robalobadob/arena/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	initLogger()

	db, err := openDB(getEnv("DB_PATH", "./data/arena.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := store.Migrate(db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	st := store.NewSQLite(db)
	hub := events.NewHub()
	reg := registry.New(st, settle.New(st), registry.WithPublisher(hub))

	n, err := reg.Restore(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to restore sessions")
	}
	log.Info().Int("sessions", n).Msg("restored open sessions")

	sw, err := sweeper.Start(reg, sweeper.Config{
		Interval:     getDuration("SWEEP_INTERVAL", time.Minute),
		WaitingTTL:   getDuration("WAITING_TTL", 30*time.Minute),
		CompletedTTL: getDuration("COMPLETED_TTL", 10*time.Minute),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start sweeper")
	}
	defer func() { _ = sw.Stop() }()

	srv := httpserver.New(httpserver.ConfigFromEnv(), reg, st, hub)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting arena server")
	if err := srv.Start(":"+port, requestLogger); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// initLogger applies LOG_LEVEL and, when LOG_FILE is set, writes to both the
// console and that file.
func initLogger() {
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	path := os.Getenv("LOG_FILE")
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to open log file")
	}
	multi := zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stdout})
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getDuration parses k as a time.Duration ("90s", "30m"), falling back to def.
func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}
