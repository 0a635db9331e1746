// Package testutil holds test helpers that enforce package boundaries.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports parses the non-test .go files in dir and fails when an
// import path satisfies forbidden. Build tags are ignored.
func AssertNoDirectImports(t TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIf(t, "forbidden direct imports detected", reason, viols)
}

// AssertNoTransitiveDependency runs `go list -deps pattern` and fails when any
// dependency satisfies forbidden.
func AssertNoTransitiveDependency(t TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	failIf(t, "forbidden transitive dependency detected", reason, viols)
}

// AdapterImportForbidden matches this module's infrastructure, adapter and
// command packages.
func AdapterImportForbidden(path string) bool {
	for _, prefix := range []string{"dredge/internal/infra", "dredge/internal/adapters", "dredge/internal/blob", "dredge/cmd"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

var driverModules = []string{
	"github.com/aws/",
	"github.com/jackc/",
	"modernc.org/",
	"github.com/prometheus/",
	"github.com/spf13/",
	"database/sql",
	"net/http",
}

// DriverImportForbidden matches storage, transport and CLI libraries.
func DriverImportForbidden(path string) bool {
	for _, m := range driverModules {
		if path == strings.TrimSuffix(m, "/") || strings.HasPrefix(path, m) {
			return true
		}
	}
	return false
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			if ip := strings.Trim(imp.Path.Value, `"`); forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

// TB is the subset of testing.TB the assertions use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

var _ TB = (testing.TB)(nil)

func failIf(t TB, headline, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", headline, reason, strings.Join(viols, "\n"))
	}
}
