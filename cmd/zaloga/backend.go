package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/zaloga/internal/config"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/docstore/memstore"
	"github.com/erazemk/zaloga/internal/docstore/redisstore"
	"github.com/erazemk/zaloga/internal/docstore/sqlstore"
	"github.com/erazemk/zaloga/internal/events"
)

// openStore connects the configured backend. The returned cleanup closes the
// store and whatever connection it sits on.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQL:
		var (
			conn *sql.DB
			err  error
		)
		if cfg.DB.Driver == db.DriverMySQL {
			conn, err = db.OpenMySQL(cfg.DB.DSN)
		} else {
			conn, err = db.Open(cfg.DB.DSN)
		}
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(conn, cfg.DB.Driver); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("ensuring schema: %w", err)
		}
		slog.Info("database ready", "driver", cfg.DB.Driver)
		st := sqlstore.New(conn, cfg.DB.Driver)
		return st, func() {
			st.Close()
			conn.Close()
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("redis ready", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		st := redisstore.New(client, cfg.Redis.Prefix)
		return st, func() {
			st.Close()
			client.Close()
		}, nil

	default:
		slog.Warn("using in-memory store, data is lost on exit")
		st := memstore.New()
		return st, func() { st.Close() }, nil
	}
}

// openPublisher returns an AMQP publisher when a broker is configured and
// falls back to logging events otherwise.
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		return events.LogPublisher{Logger: slog.Default().With("component", "events")}, nil
	}
	p, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	slog.Info("publishing events over amqp", "exchange", cfg.AMQP.Exchange)
	return p, nil
}
