// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate [-direction up|down].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"web-analytics/backend/internal/config"
	"web-analytics/backend/internal/db/migrate"
	"web-analytics/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "web-analytics-migrate"})
	if cfg.DatabaseURL == "" {
		logging.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logging.Info().Str("direction", *direction).Msg("migrate: no change")
			return
		}
		logging.Fatal().Err(err).Str("direction", *direction).Msg("migrate: failed")
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logging.Warn().Err(err).Msg("migrate: read version")
		return
	}
	logging.Info().Uint("version", version).Bool("dirty", dirty).Str("direction", *direction).Msg("migrate: done")
}
