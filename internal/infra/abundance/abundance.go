// Package abundance opens tables of per-replicate transcript abundances and
// hydrates them into a core.AbundanceTable.
package abundance

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dredge/internal/core"
)

// TableName is the table both SQL drivers read and write.
const TableName = "abundance_samples"

// Driver identifies an abundance backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Sample is one replicate measurement.
type Sample struct {
	Treatment  string  `yaml:"treatment" json:"treatment"`
	Transcript string  `yaml:"transcript" json:"transcript"`
	Replicate  string  `yaml:"replicate" json:"replicate"`
	Value      float64 `yaml:"value" json:"value"`
}

// Config selects and configures a backend. Inline samples are used by the
// memory driver.
type Config struct {
	Driver Driver
	Path   string
	DSN    string
	Inline []Sample
}

// FromEnv overrides cfg with the environment:
//
//	DREDGE_ABUNDANCE_DRIVER: memory|sqlite|postgres
//	DREDGE_SQLITE_PATH:      sqlite database file
//	DREDGE_POSTGRES_DSN:     postgres connection string
func FromEnv(cfg Config) Config {
	if v := os.Getenv("DREDGE_ABUNDANCE_DRIVER"); v != "" {
		cfg.Driver = Driver(strings.ToLower(v))
	}
	if v := os.Getenv("DREDGE_SQLITE_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("DREDGE_POSTGRES_DSN"); v != "" {
		cfg.DSN = v
	}
	return cfg
}

// Open hydrates a table from the configured backend. An empty driver is memory.
func Open(ctx context.Context, cfg Config) (*core.AbundanceTable, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		t := core.NewAbundanceTable()
		for _, s := range cfg.Inline {
			t.Add(s.Treatment, s.Transcript, s.Value)
		}
		return t, nil
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown abundance driver %s", cfg.Driver)
	}
}

// Write stores samples with the configured SQL backend.
func Write(ctx context.Context, cfg Config, samples []Sample) error {
	switch cfg.Driver {
	case DriverSQLite:
		return WriteSQLite(ctx, cfg.Path, samples)
	case DriverPostgres:
		return WritePostgres(ctx, cfg.DSN, samples)
	default:
		return fmt.Errorf("abundance driver %q is not writable", cfg.Driver)
	}
}

func load(ctx context.Context, db *sql.DB) (*core.AbundanceTable, error) {
	rows, err := db.QueryContext(ctx, `SELECT treatment, transcript, replicate, value FROM `+TableName+` ORDER BY treatment, transcript, replicate`)
	if err != nil {
		return nil, fmt.Errorf("select samples: %w", err)
	}
	defer func() { _ = rows.Close() }()
	t := core.NewAbundanceTable()
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Treatment, &s.Transcript, &s.Replicate, &s.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		t.Add(s.Treatment, s.Transcript, s.Value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return t, nil
}

func ensureTable(ctx context.Context, db *sql.DB, valueType string) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		treatment TEXT NOT NULL,
		transcript TEXT NOT NULL,
		replicate TEXT NOT NULL,
		value ` + valueType + ` NOT NULL,
		PRIMARY KEY (treatment, transcript, replicate)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s table: %w", TableName, err)
	}
	return nil
}

// insert writes samples in one transaction, replacing existing replicates.
func insert(ctx context.Context, db *sql.DB, stmt string, samples []Sample) (retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, s := range samples {
		if _, err := tx.ExecContext(ctx, stmt, s.Treatment, s.Transcript, s.Replicate, s.Value); err != nil {
			return fmt.Errorf("insert sample %s/%s/%s: %w", s.Treatment, s.Transcript, s.Replicate, err)
		}
	}
	return tx.Commit()
}

// ReadSamplesTSV reads `treatment, transcript, replicate, value` rows after a
// header line.
func ReadSamplesTSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var out []Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			line, _ := cr.FieldPos(3)
			return nil, fmt.Errorf("line %d: value %q: %w", line, rec[3], err)
		}
		out = append(out, Sample{Treatment: rec[0], Transcript: rec[1], Replicate: rec[2], Value: v})
	}
}
