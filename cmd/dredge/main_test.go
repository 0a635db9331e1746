package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dredge/internal/adapters/httpapi"
	promrecorder "dredge/internal/infra/metrics/prometheus"
)

const projectYAML = `key: demo
label: Demo
abundanceLimits: [[0, 16], [-4, 4]]
treatments:
  - {key: ctrl, label: Control}
  - {key: heat, label: Heat}
aliases:
  t1.1: t1
abundance:
  driver: sqlite
  path: abundance.db
`

const resultsTSV = "id\tlogFC\tlogATA\tPValue\n" +
	"t1.1\t2\t4\t0.01\n" +
	"t2\t-1\t8\t0.2\n" +
	"t3\t0.5\t12\tNA\n"

const samplesTSV = "treatment\ttranscript\treplicate\tvalue\n" +
	"ctrl\tt1\tr1\t1\n" +
	"ctrl\tt1\tr2\t3\n" +
	"heat\tt1\tr1\t5\n" +
	"heat\tt1\tr2\t7\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// workspace writes a project into a temp dir and points the blob store at it.
func workspace(t *testing.T) (dir, project string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("DREDGE_BLOB_DRIVER", "fs")
	t.Setenv("DREDGE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("DREDGE_ABUNDANCE_DRIVER", "")
	t.Setenv("DREDGE_SQLITE_PATH", "")
	return dir, writeFile(t, dir, "project.yaml", projectYAML)
}

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportThenQuery(t *testing.T) {
	dir, project := workspace(t)
	global := []string{"--project", project, "--log-level", "error"}

	out, err := run(append(global, "import", "abundance", writeFile(t, dir, "samples.tsv", samplesTSV))...)
	if err != nil || strings.TrimSpace(out) != "4 samples" {
		t.Fatalf("import abundance: %q %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abundance.db")); err != nil {
		t.Fatalf("sqlite path should resolve against the project file: %v", err)
	}

	results := writeFile(t, dir, "results.txt", resultsTSV)
	out, err = run(append(global, "import", "tests", "ctrl", "heat", results)...)
	if err != nil || strings.TrimSpace(out) != "pairwise_tests/ctrl_vs_heat.txt" {
		t.Fatalf("import tests: %q %v", out, err)
	}
	if _, err := run(append(global, "import", "tests", "ctrl", "heat", results)...); err == nil {
		t.Fatalf("second import of the same pair should fail")
	}

	out, err = run(append(global, "table", "heat", "ctrl", "--watch", "t1.1,ghost", "--sort", "logFC")...)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "name\tp-value\tlogATA\tlogFC\tHeat mean") {
		t.Fatalf("unexpected table %q", out)
	}
	cols := strings.Split(lines[1], "\t")
	if cols[0] != "t1" || cols[3] != "-2" || cols[4] != "6" {
		t.Fatalf("unexpected t1 row %q", cols)
	}
	if strings.TrimSpace(lines[2]) != "ghost" {
		t.Fatalf("placeholder row %q", lines[2])
	}

	out, err = run(append(global, "table", "--brush", "0,4,16,-4", "--threshold", "0.05")...)
	if err != nil {
		t.Fatalf("brushed table: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[1], "t1\t") {
		t.Fatalf("unexpected brushed table %q", out)
	}

	out, err = run(append(global, "bins", "ctrl", "heat", "--width", "160", "--height", "80")...)
	if err != nil {
		t.Fatalf("bins: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(out), "\n")
	// t3 has no p-value, so no threshold admits it.
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "x0\t") {
		t.Fatalf("unexpected bins %q", out)
	}
	for _, line := range lines[1:] {
		if cols := strings.Split(line, "\t"); cols[6] != "1" || !strings.HasPrefix(cols[7], "#") {
			t.Fatalf("unexpected bin row %q", line)
		}
	}
}

func TestCommandArgumentErrors(t *testing.T) {
	dir, project := workspace(t)
	cases := [][]string{
		{"bins", "ctrl"},
		{"bins", "--width", "0"},
		{"bins", "--threshold", "2"},
		{"table", "--brush", "1,2"},
		{"table", "--watch", "a", "--bin", "b"},
		{"import", "tests", "ctrl", "nope", filepath.Join(dir, "missing.txt")},
		{"import", "tests", "ctrl", "heat", writeFile(t, dir, "empty.txt", "id\tlogFC\tlogATA\tPValue\n")},
		{"--log-format", "xml", "bins"},
	}
	for _, args := range cases {
		if _, err := run(append([]string{"--project", project}, args...)...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
	if _, err := run("--project", filepath.Join(dir, "absent.yaml"), "bins"); err == nil {
		t.Fatalf("missing project file should fail")
	}
}

func TestUnavailableComparison(t *testing.T) {
	_, project := workspace(t)
	_, err := run("--project", project, "--log-level", "error", "bins")
	if err == nil || !strings.Contains(err.Error(), "heat_vs_ctrl") {
		t.Fatalf("expected unavailable error naming both files, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":1`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
	buf.Reset()
	logger, _ = newLogger(&buf, "warn", "text")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestMuxServesMetricsAndAPI(t *testing.T) {
	reg := prometheus.NewRegistry()
	promrecorder.NewRecorder(reg).Observe(context.Background(), "comparison.load", true, time.Millisecond)
	mux := newMux(&httpapi.Handler{}, reg)

	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "dredge_loader_operations_total") {
		t.Fatalf("metrics: %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("healthz: %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/treatments", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("api without loader should fail, got %d", resp.Code)
	}
}
