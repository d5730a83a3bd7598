package repository

import (
	"context"
	"fmt"
	"io"

	"signalgateway/internal/config"
	"signalgateway/internal/signal/service"
	"signalgateway/pkg/db"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the repository selected by cfg.Backend. The returned closer
// releases whatever connection the repository holds.
func Open(ctx context.Context, cfg config.StoreConfig) (service.SignalRepository, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendREST:
		repo, err := NewRESTRepository(RESTOptions{URL: cfg.URL, Key: cfg.Key, Table: cfg.Table, Timeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}
		return repo, nopCloser{}, nil
	case config.BackendPostgres:
		conn, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresRepository(conn, cfg.Table), conn, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

var (
	_ service.SignalRepository = (*RESTRepository)(nil)
	_ service.SignalRepository = (*PostgresRepository)(nil)
)
