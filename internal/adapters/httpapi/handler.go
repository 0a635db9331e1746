// Package httpapi serves comparisons, plot bins and display tables over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dredge/internal/core"
)

// Comparisons loads pairwise comparisons for one project. *core.Loader
// satisfies it.
type Comparisons interface {
	Project() *core.Project
	Load(ctx context.Context, a, b string) (*core.PairwiseComparison, error)
}

// Handler routes /api/v1 requests.
type Handler struct {
	Comparisons Comparisons
	Exports     ExportScheduler
	Logger      core.Logger
}

// NewHandler constructs a handler over c.
func NewHandler(c Comparisons) *Handler {
	return &Handler{Comparisons: c}
}

const maxBodyBytes = 1 << 20

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Comparisons == nil {
		writeError(w, http.StatusInternalServerError, "comparison loader not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/api/v1/project":
		h.handleProject(w)
	case r.Method == http.MethodGet && path == "/api/v1/treatments":
		writeJSON(w, http.StatusOK, map[string]any{"treatments": h.Comparisons.Project().Treatments()})
	case strings.HasPrefix(path, "/api/v1/comparisons/"):
		h.handleComparison(w, r, strings.TrimPrefix(path, "/api/v1/comparisons/"))
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleProject(w http.ResponseWriter) {
	p := h.Comparisons.Project()
	body := map[string]any{
		"key":          p.Key(),
		"label":        p.Label(),
		"treatments":   p.Treatments(),
		"pairwiseName": p.PairwiseName(),
	}
	if a, b, err := p.DefaultPair(); err == nil {
		body["defaultPair"] = []string{a, b}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleComparison serves {a}/{b}, {a}/{b}/bins and {a}/{b}/display.
func (h *Handler) handleComparison(w http.ResponseWriter, r *http.Request, remainder string) {
	parts := strings.Split(remainder, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	a, b := parts[0], parts[1]
	action := ""
	if len(parts) == 3 {
		action = parts[2]
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
	case action == "bins" && r.Method == http.MethodGet:
	case action == "display" && r.Method == http.MethodPost:
	case action == "" || action == "bins" || action == "display":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	default:
		http.NotFound(w, r)
		return
	}

	c, err := h.Comparisons.Load(r.Context(), a, b)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	switch action {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{"summary": c.Summarize()})
	case "bins":
		h.handleBins(w, r, c)
	case "display":
		h.handleDisplay(w, r, c)
	}
}

func (h *Handler) writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case core.IsUnknownTreatment(err):
		writeError(w, http.StatusNotFound, err.Error())
	case core.IsComparisonUnavailable(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		if h.Logger != nil {
			h.Logger.Error("load comparison", "error", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type binView struct {
	X0          int            `json:"x0"`
	X1          int            `json:"x1"`
	Y0          int            `json:"y0"`
	Y1          int            `json:"y1"`
	FoldChange  core.Interval  `json:"foldChange"`
	Abundance   core.Interval  `json:"abundance"`
	Style       *core.BinStyle `json:"style,omitempty"`
	Transcripts []string       `json:"transcripts"`
}

type binsResponse struct {
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Unit   float64   `json:"unit"`
	Total  int       `json:"total"`
	Bins   []binView `json:"bins"`
}

func (h *Handler) handleBins(w http.ResponseWriter, r *http.Request, c *core.PairwiseComparison) {
	q := r.URL.Query()
	width, err := floatParam(q.Get("width"), 800)
	if err != nil || width <= 0 {
		writeError(w, http.StatusBadRequest, "width must be a positive number")
		return
	}
	height, err := floatParam(q.Get("height"), 600)
	if err != nil || height <= 0 {
		writeError(w, http.StatusBadRequest, "height must be a positive number")
		return
	}
	unit, err := floatParam(q.Get("unit"), core.DefaultBinUnit)
	if err != nil || unit <= 0 {
		writeError(w, http.StatusBadRequest, "unit must be a positive number")
		return
	}
	threshold, err := floatParam(q.Get("threshold"), 1)
	if err != nil || threshold < 0 || threshold > 1 {
		writeError(w, http.StatusBadRequest, "threshold must be within [0, 1]")
		return
	}
	all := strings.EqualFold(q.Get("all"), "true")

	xLim, yLim := h.Comparisons.Project().AbundanceLimits()
	xScale, yScale := core.PlotScales(c, xLim, yLim, width, height)
	bins := core.ComputeBins(c, core.PValueAtMost(threshold), xScale, yScale, unit)

	resp := binsResponse{Width: width, Height: height, Unit: unit, Total: len(bins), Bins: []binView{}}
	for _, bin := range bins {
		style, ok := core.StyleFor(bin)
		if !ok && !all {
			continue
		}
		v := binView{
			X0: bin.X0, X1: bin.X1, Y0: bin.Y0, Y1: bin.Y1,
			FoldChange: bin.FoldChange, Abundance: bin.Abundance,
			Transcripts: core.BinNames(bin),
		}
		if ok {
			v.Style = &style
		}
		resp.Bins = append(resp.Bins, v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request, c *core.PairwiseComparison) {
	var q DisplayQuery
	if r.Body != nil {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&q); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	project := h.Comparisons.Project()
	rows, err := q.Rows(project, c)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch negotiateFormat(r) {
	case formatTSV:
		streamTSV(w, project, c, rows)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
	}
}

const (
	formatJSON = "json"
	formatTSV  = "tsv"
)

func negotiateFormat(r *http.Request) string {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" && strings.Contains(r.Header.Get("Accept"), "text/tab-separated-values") {
		wanted = formatTSV
	}
	if wanted == formatTSV {
		return formatTSV
	}
	return formatJSON
}

func streamTSV(w http.ResponseWriter, p *core.Project, c *core.PairwiseComparison, rows []core.DisplayRow) {
	filename := fmt.Sprintf("%s-%s_vs_%s-%s.tsv", p.Key(), c.TreatmentA(), c.TreatmentB(), time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_ = core.WriteDisplayTSV(w, rows, p.TreatmentLabel(c.TreatmentA()), p.TreatmentLabel(c.TreatmentB()))
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
