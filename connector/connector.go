// Package connector opens pooled database connections from a Config.
package connector

import (
	"context"
	"database/sql"

	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/dialect"
	"go.uber.org/zap"
)

type Connection interface {
	// DB returns a database/sql handle over the same pool.
	DB() *sql.DB
	Database() database.Database
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

type options struct {
	logger *zap.Logger
}

type Option func(*options)

// WithLogger sets the logger for connect attempts.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open validates cfg and connects, retrying as cfg.Retry allows.
func Open(ctx context.Context, cfg Config, opts ...Option) (Connection, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := newPostgresConnector(ctx, cfg, o.logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
