package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpattn/recordkeep/internal/config"
	"github.com/rpattn/recordkeep/internal/db"
	"github.com/rpattn/recordkeep/internal/records"
	"github.com/rpattn/recordkeep/internal/repository"

	"github.com/redis/go-redis/v9"
)

// environment carries what a command needs and opens the database lazily.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	conn         *db.Connection
	cache        *redis.Client
	identifiers  repository.IdentifierRepository
	records      repository.RecordRepository
	recordErrors repository.RecordErrorRepository
}

func (e *environment) connect(ctx context.Context) error {
	if e.conn != nil {
		return nil
	}

	conn, err := db.NewConnection(ctx, e.cfg.Database)
	if err != nil {
		return err
	}
	e.conn = conn

	e.identifiers = repository.NewIdentifierRepository(conn.Pool)
	e.records = repository.NewRecordRepository(conn.Pool)
	e.recordErrors = repository.NewRecordErrorRepository(conn.Pool)

	if e.cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		e.logger.Warn("identifier cache unavailable, continuing without it", "addr", e.cfg.Redis.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	e.cache = client
	e.identifiers = repository.NewCachedIdentifierRepository(e.identifiers, client, e.cfg.Redis.TTL, e.logger)
	return nil
}

func (e *environment) recordService(ctx context.Context) (*records.Service, error) {
	if err := e.connect(ctx); err != nil {
		return nil, err
	}
	return records.NewService(e.identifiers, e.records, e.recordErrors), nil
}

func (e *environment) close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if e.conn != nil {
		e.conn.Close()
	}
}

func (e *environment) printJSON(value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(e.stdout, string(encoded))
	return err
}
