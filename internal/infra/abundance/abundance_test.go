package abundance

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"dredge/internal/infra/abundance/testutil"
)

func overrideSQLOpen(t *testing.T, fn func(driverName, dsn string) (*sql.DB, error)) {
	t.Helper()
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	t.Cleanup(func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	})
}

var fixture = []Sample{
	{Treatment: "ctrl", Transcript: "t1", Replicate: "r1", Value: 1},
	{Treatment: "ctrl", Transcript: "t1", Replicate: "r2", Value: 3},
	{Treatment: "heat", Transcript: "t1", Replicate: "r1", Value: 10},
}

func TestMemoryDriverUsesInlineSamples(t *testing.T) {
	table, err := Open(context.Background(), Config{Inline: fixture})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, ok := table.Samples("ctrl", "t1")
	if !ok || len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected samples %v %v", got, ok)
	}
	if _, err := Open(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if err := Write(context.Background(), Config{Driver: DriverMemory}, fixture); err == nil {
		t.Fatalf("memory driver should not be writable")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "abundance.db")
	if err := Write(ctx, Config{Driver: DriverSQLite, Path: path}, fixture); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Replicates are keyed, so rewriting one replaces its value.
	if err := WriteSQLite(ctx, path, []Sample{{Treatment: "heat", Transcript: "t1", Replicate: "r1", Value: 12}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	table, err := Open(ctx, Config{Driver: DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, ok := table.Samples("heat", "t1"); !ok || len(got) != 1 || got[0] != 12 {
		t.Fatalf("unexpected heat samples %v", got)
	}
	if got, _ := table.Samples("ctrl", "t1"); len(got) != 2 {
		t.Fatalf("unexpected ctrl samples %v", got)
	}
	if ts := table.Treatments(); len(ts) != 2 || ts[0] != "ctrl" || ts[1] != "heat" {
		t.Fatalf("unexpected treatments %v", ts)
	}
}

func TestPostgresAgainstStub(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	overrideSQLOpen(t, func(driverName, dsn string) (*sql.DB, error) {
		if driverName != postgresDriver || dsn != defaultPostgresDSN {
			t.Errorf("unexpected open %s %s", driverName, dsn)
		}
		return db, nil
	})
	if err := WritePostgres(ctx, "", fixture); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(conn.Rows(TableName)) != 3 {
		t.Fatalf("expected 3 rows, got %v", conn.Rows(TableName))
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+TableName) {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("table not ensured: %v", conn.Execs)
	}

	db2, conn2 := testutil.NewStubDB()
	conn2.Tables[TableName] = conn.Rows(TableName)
	overrideSQLOpen(t, func(string, string) (*sql.DB, error) { return db2, nil })
	table, err := OpenPostgres(ctx, "postgres://example/dredge")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, ok := table.Samples("heat", "t1"); !ok || got[0] != 10 {
		t.Fatalf("unexpected samples %v %v", got, ok)
	}
}

func TestPostgresFailures(t *testing.T) {
	ctx := context.Background()
	overrideSQLOpen(t, func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := OpenPostgres(ctx, ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	overrideSQLOpen(t, func(string, string) (*sql.DB, error) { return db, nil })
	if _, err := OpenPostgres(ctx, ""); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.RowsErr = errors.New("broken cursor")
	overrideSQLOpen(t, func(string, string) (*sql.DB, error) { return db, nil })
	if _, err := OpenPostgres(ctx, ""); err == nil || !strings.Contains(err.Error(), "iterate") {
		t.Fatalf("expected rows error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailBegin = true
	overrideSQLOpen(t, func(string, string) (*sql.DB, error) { return db, nil })
	if err := WritePostgres(ctx, "", fixture); err == nil {
		t.Fatalf("expected begin error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DREDGE_ABUNDANCE_DRIVER", "SQLite")
	t.Setenv("DREDGE_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("DREDGE_POSTGRES_DSN", "")
	cfg := FromEnv(Config{Driver: DriverMemory, DSN: "keep"})
	if cfg.Driver != DriverSQLite || cfg.Path != "/tmp/x.db" || cfg.DSN != "keep" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestReadSamplesTSV(t *testing.T) {
	in := "treatment\ttranscript\treplicate\tvalue\n# comment\nctrl\tt1\tr1\t1.5\nheat\tt1\tr1\t2\n"
	got, err := ReadSamplesTSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Value != 1.5 || got[1].Treatment != "heat" {
		t.Fatalf("unexpected samples %+v", got)
	}
	if _, err := ReadSamplesTSV(strings.NewReader("h\th\th\th\nctrl\tt1\tr1\tNaNx\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected value error, got %v", err)
	}
	if _, err := ReadSamplesTSV(strings.NewReader("h\th\th\th\nctrl\tt1\n")); err == nil {
		t.Fatalf("expected field count error")
	}
	if got, err := ReadSamplesTSV(strings.NewReader("")); err != nil || got != nil {
		t.Fatalf("empty input got %v %v", got, err)
	}
}
