package core

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

// memFetcher serves fixed file bodies by location and counts requests.
type memFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls map[string]int
	gate  chan struct{}
}

func newMemFetcher(files map[string]string) *memFetcher {
	return &memFetcher{files: files, calls: make(map[string]int)}
}

func (f *memFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[location]++
	body, ok := f.files[location]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *memFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) count(op string, success bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			n++
		}
	}
	return n
}

type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *captureLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+" "+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.log("DEBUG", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.log("INFO", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.log("WARN", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.log("ERROR", msg) }

func (l *captureLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == entry {
			return true
		}
	}
	return false
}

func mustProject(t *testing.T, cfg ProjectConfig) *Project {
	t.Helper()
	if cfg.Treatments == nil {
		cfg.Treatments = []Treatment{{Key: "a", Label: "Control"}, {Key: "b", Label: "Heat"}}
	}
	p, err := NewProject(cfg)
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	return p
}

func rec(name string, logFC, logATA, p float64) TranscriptRecord {
	return TranscriptRecord{Name: name, LogFC: logFC, LogATA: logATA, PValue: p}
}

func names(records []*TranscriptRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func rowNames(rows []DisplayRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
