package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dredge/internal/blob"
	"dredge/internal/core"
)

// ExportStatus is the lifecycle stage of an export.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact is a rendered table stored in the blob store.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Format      string    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportInput requests the display table of one comparison.
type ExportInput struct {
	TreatmentA  string       `json:"treatmentA"`
	TreatmentB  string       `json:"treatmentB"`
	Query       DisplayQuery `json:"query"`
	Formats     []string     `json:"formats"`
	RequestedBy string       `json:"requested_by"`
}

// ExportRecord tracks an export and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	TreatmentA  string           `json:"treatmentA"`
	TreatmentB  string           `json:"treatmentB"`
	Query       DisplayQuery     `json:"query"`
	Formats     []string         `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	out := r
	out.Formats = append([]string(nil), r.Formats...)
	out.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// ExportScheduler queues exports and reports their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
	Store() blob.Store
}

// ExportPrefix is the blob key prefix of export artifacts.
const ExportPrefix = "exports/"

var exportContentTypes = map[string]string{
	formatTSV:  "text/tab-separated-values",
	formatJSON: "application/json",
}

// Worker renders exports asynchronously into a blob store.
type Worker struct {
	comparisons Comparisons
	store       blob.Store
	logger      core.Logger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

type exportTask struct {
	id    string
	input ExportInput
}

// NewWorker constructs an export worker. A nil logger discards output.
func NewWorker(c Comparisons, store blob.Store, logger core.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		comparisons: c,
		store:       store,
		logger:      logger,
		queue:       make(chan exportTask, 32),
		jobs:        make(map[string]*ExportRecord),
		ctx:         ctx,
		cancel:      cancel,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the blob store artifacts are written to.
func (w *Worker) Store() blob.Store { return w.store }

// Start begins processing exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for it.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport validates input and schedules it.
func (w *Worker) EnqueueExport(_ context.Context, input ExportInput) (ExportRecord, error) {
	if w.store == nil {
		return ExportRecord{}, fmt.Errorf("export store not configured")
	}
	project := w.comparisons.Project()
	for _, key := range []string{input.TreatmentA, input.TreatmentB} {
		if _, ok := project.Treatment(key); !ok {
			return ExportRecord{}, core.ErrUnknownTreatment{Key: key}
		}
	}
	if _, _, err := input.Query.resolve(); err != nil {
		return ExportRecord{}, err
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []string{formatTSV}
	}
	uniq := make([]string, 0, len(formats))
	seen := make(map[string]struct{})
	for _, f := range formats {
		f = strings.ToLower(f)
		if _, dup := seen[f]; dup {
			continue
		}
		if _, ok := exportContentTypes[f]; !ok {
			return ExportRecord{}, fmt.Errorf("format %s not supported", f)
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	record := ExportRecord{
		ID:          uuid.NewString(),
		TreatmentA:  input.TreatmentA,
		TreatmentB:  input.TreatmentB,
		Query:       input.Query,
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- exportTask{id: record.ID, input: input}:
	default:
		w.fail(record.ID, "export queue full")
		return ExportRecord{}, fmt.Errorf("export queue full")
	}
	w.log().Info("export queued", "id", record.ID, "treatment_a", input.TreatmentA, "treatment_b", input.TreatmentB)
	return snapshot, nil
}

// GetExport returns a snapshot of an export.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, ExportStatusRunning)
	c, err := w.comparisons.Load(w.ctx, task.input.TreatmentA, task.input.TreatmentB)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("load comparison: %v", err))
		return
	}
	project := w.comparisons.Project()
	rows, err := task.input.Query.Rows(project, c)
	if err != nil {
		w.fail(task.id, err.Error())
		return
	}
	record, _ := w.GetExport(task.id)
	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := materialize(format, project, c, rows)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		key := ExportPrefix + task.id + "." + format
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: exportContentTypes[format],
			Metadata: map[string]string{
				"treatment_a": c.TreatmentA(),
				"treatment_b": c.TreatmentB(),
				"rows":        fmt.Sprint(len(rows)),
			},
		})
		if err != nil {
			w.fail(task.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, ExportArtifact{
			Key:         info.Key,
			Format:      format,
			ContentType: exportContentTypes[format],
			SizeBytes:   info.Size,
			Rows:        len(rows),
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(task.id, artifacts)
}

func materialize(format string, p *core.Project, c *core.PairwiseComparison, rows []core.DisplayRow) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case formatTSV:
		if err := core.WriteDisplayTSV(&buf, rows, p.TreatmentLabel(c.TreatmentA()), p.TreatmentLabel(c.TreatmentB())); err != nil {
			return nil, fmt.Errorf("render tsv: %w", err)
		}
	case formatJSON:
		if err := json.NewEncoder(&buf).Encode(map[string]any{"summary": c.Summarize(), "rows": rows}); err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
	default:
		return nil, fmt.Errorf("format %s not supported", format)
	}
	return buf.Bytes(), nil
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log().Info("export succeeded", "id", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log().Warn("export failed", "id", id, "error", reason)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

func (w *Worker) log() core.Logger {
	if w.logger == nil {
		return discardLogger{}
	}
	return w.logger
}
