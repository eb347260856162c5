//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/rpattn/recordkeep/internal/db"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer is a migrated Postgres instance for integration tests.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	Config    db.Config
	Conn      *db.Connection
}

// NewPostgresContainer starts Postgres, applies the embedded migrations and
// opens a pool. Everything is torn down when the test finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()
	cfg := db.DefaultConfig()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(cfg.DBName),
		tcpostgres.WithUsername(cfg.User),
		tcpostgres.WithPassword(cfg.Password),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}
	cfg.Host = host
	cfg.Port = port.Int()

	if err := db.RunMigrations(cfg, nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(conn.Close)

	return &PostgresContainer{
		Container: container,
		Config:    cfg,
		Conn:      conn,
	}
}

// Truncate empties every table. Use between tests sharing a container.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.Conn.Pool.Exec(ctx, `TRUNCATE identifiers, records, record_errors`)
	return err
}
