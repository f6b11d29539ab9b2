package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/config"
	storepkg "github.com/synapta-ai/synapta/internal/store"
	storepg "github.com/synapta-ai/synapta/internal/store/postgres"
	storelite "github.com/synapta-ai/synapta/internal/store/sqlite"
)

// NewStore opens the relational store named by cfg.DBDriver. Both drivers
// apply their schema on open, so the returned store is ready for traffic.
func NewStore(cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		st, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Debug().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("store opened")
		return st, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("SYNAPTA_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		st, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Debug().Str("driver", "postgres").Msg("store opened")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
