package abundance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dredge/internal/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultSQLitePath = "dredge.db"

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureTable(ctx, db, "REAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite reads every sample from the database at path (default dredge.db).
func OpenSQLite(ctx context.Context, path string) (*core.AbundanceTable, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return load(ctx, db)
}

// WriteSQLite upserts samples into the database at path.
func WriteSQLite(ctx context.Context, path string, samples []Sample) error {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return insert(ctx, db, `INSERT OR REPLACE INTO `+TableName+` (treatment, transcript, replicate, value) VALUES (?, ?, ?, ?)`, samples)
}
