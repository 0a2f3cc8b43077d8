package store

import (
	"context"

	"bucket-rag/internal/config"
)

// FromConfig builds the configured store backend, creating the Postgres
// schema when needed.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemory()
	default:
		db := Connect(cfg.Database)
		pg := NewPostgres(db, cfg.TablePrefix(), cfg.Embedding.Dimensions)
		if err := pg.InitSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	}
}
