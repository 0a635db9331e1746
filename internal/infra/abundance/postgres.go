package abundance

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"dredge/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver     = "pgx"
	defaultPostgresDSN = "postgres://localhost/dredge?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db, "DOUBLE PRECISION"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenPostgres reads every sample from the database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*core.AbundanceTable, error) {
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return load(ctx, db)
}

// WritePostgres upserts samples into the database at dsn.
func WritePostgres(ctx context.Context, dsn string, samples []Sample) error {
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return insert(ctx, db, `INSERT INTO `+TableName+` (treatment, transcript, replicate, value) VALUES ($1, $2, $3, $4)
		ON CONFLICT (treatment, transcript, replicate) DO UPDATE SET value = EXCLUDED.value`, samples)
}
