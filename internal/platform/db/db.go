package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cardadmin/internal/platform/config"
)

func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	// room for the card enrichment fan-out alongside regular requests
	poolCfg.MaxConns = int32(max(10, cfg.AggregationConcurrency+4))
	poolCfg.MinConns = 2
	return pgxpool.NewWithConfig(ctx, poolCfg)
}
