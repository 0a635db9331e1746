package httpapi_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dredge/internal/adapters/httpapi"
	"dredge/internal/core"
)

const fixture = "id\tlogFC\tlogATA\tPValue\n" +
	"t1\t2\t4\t0.01\n" +
	"t2\t-1\t8\t0.2\n" +
	"t3\t0.5\t12\t0.9\n"

func newLoader(t *testing.T, files map[string]string) *core.Loader {
	t.Helper()
	project, err := core.NewProject(core.ProjectConfig{
		Key:             "demo",
		Label:           "Demo",
		Treatments:      []core.Treatment{{Key: "ctrl", Label: "Control"}, {Key: "heat", Label: "Heat"}, {Key: "cold"}},
		AbundanceLimits: [2][2]float64{{0, 16}, {-4, 4}},
	})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	fetch := core.FetcherFunc(func(_ context.Context, loc string) (io.ReadCloser, error) {
		body, ok := files[loc]
		if !ok {
			return nil, core.ErrNotFound
		}
		return io.NopCloser(strings.NewReader(body)), nil
	})
	return core.NewLoader(project, fetch)
}

func setupHandler(t *testing.T) *httpapi.Handler {
	t.Helper()
	return httpapi.NewHandler(newLoader(t, map[string]string{"./pairwise_tests/ctrl_vs_heat.txt": fixture}))
}

func serve(h http.Handler, method, target string, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header[k] = v
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHandlerProjectAndTreatments(t *testing.T) {
	h := setupHandler(t)
	resp := serve(h, http.MethodGet, "/api/v1/treatments", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	var treatments struct {
		Treatments []core.Treatment `json:"treatments"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &treatments); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(treatments.Treatments) != 3 || treatments.Treatments[0].Key != "ctrl" {
		t.Fatalf("unexpected treatments %+v", treatments)
	}

	resp = serve(h, http.MethodGet, "/api/v1/project/", "", nil)
	var project struct {
		Key         string   `json:"key"`
		DefaultPair []string `json:"defaultPair"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &project); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if project.Key != "demo" || len(project.DefaultPair) != 2 || project.DefaultPair[1] != "heat" {
		t.Fatalf("unexpected project %+v", project)
	}
}

func TestHandlerComparisonSummary(t *testing.T) {
	h := setupHandler(t)
	resp := serve(h, http.MethodGet, "/api/v1/comparisons/heat/ctrl", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Summary core.Summary `json:"summary"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.TreatmentA != "heat" || body.Summary.Records != 3 || body.Summary.MinPValue != 0.01 {
		t.Fatalf("unexpected summary %+v", body.Summary)
	}
	// Reverse orientation negates fold change.
	if body.Summary.FoldChange.Min != -2 || body.Summary.FoldChange.Max != 1 {
		t.Fatalf("unexpected fold change extent %+v", body.Summary.FoldChange)
	}
}

func TestHandlerLoadErrors(t *testing.T) {
	h := setupHandler(t)
	cases := []struct {
		target string
		status int
	}{
		{"/api/v1/comparisons/ctrl/nope", http.StatusNotFound},
		{"/api/v1/comparisons/ctrl/cold", http.StatusBadGateway},
		{"/api/v1/comparisons/ctrl", http.StatusNotFound},
		{"/api/v1/comparisons/ctrl/heat/unknown", http.StatusNotFound},
		{"/api/v1/elsewhere", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := serve(h, http.MethodGet, tc.target, "", nil)
		if resp.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.target, resp.Code, tc.status)
		}
	}
	resp := serve(h, http.MethodGet, "/api/v1/comparisons/ctrl/cold", "", nil)
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &e); err != nil || !strings.Contains(e.Error, "cold_vs_ctrl") {
		t.Fatalf("error should name both locations: %q %v", e.Error, err)
	}
	if resp := serve(h, http.MethodDelete, "/api/v1/comparisons/ctrl/heat", "", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if resp := serve(&httpapi.Handler{}, http.MethodGet, "/api/v1/treatments", "", nil); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without loader, got %d", resp.Code)
	}
}

type binsBody struct {
	Total int `json:"total"`
	Bins  []struct {
		X0          int            `json:"x0"`
		Style       *core.BinStyle `json:"style"`
		Transcripts []string       `json:"transcripts"`
	} `json:"bins"`
}

func TestHandlerBins(t *testing.T) {
	h := setupHandler(t)
	resp := serve(h, http.MethodGet, "/api/v1/comparisons/ctrl/heat/bins?width=160&height=80", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", resp.Code, resp.Body.String())
	}
	var body binsBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 200 || len(body.Bins) != 3 {
		t.Fatalf("expected 3 of 200 bins, got %d of %d", len(body.Bins), body.Total)
	}
	for _, b := range body.Bins {
		if b.Style == nil || b.Style.Count != 1 || b.Style.Multiplier != .35 || len(b.Transcripts) != 1 {
			t.Fatalf("unexpected bin %+v", b)
		}
	}

	resp = serve(h, http.MethodGet, "/api/v1/comparisons/ctrl/heat/bins?width=160&height=80&threshold=0.05", "", nil)
	body = binsBody{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if len(body.Bins) != 1 || body.Bins[0].Transcripts[0] != "t1" {
		t.Fatalf("threshold not applied: %+v", body.Bins)
	}

	resp = serve(h, http.MethodGet, "/api/v1/comparisons/ctrl/heat/bins?width=160&height=80&all=true", "", nil)
	body = binsBody{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if len(body.Bins) != 200 {
		t.Fatalf("all=true should return every bin, got %d", len(body.Bins))
	}

	for _, q := range []string{"width=-1", "height=x", "unit=0", "threshold=2"} {
		if resp := serve(h, http.MethodGet, "/api/v1/comparisons/ctrl/heat/bins?"+q, "", nil); resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.Code)
		}
	}
}

func TestHandlerDisplayJSON(t *testing.T) {
	h := setupHandler(t)
	body := `{"sort":"pValue","order":"desc","selection":{"watched":["t1","t3","ghost"]}}`
	resp := serve(h, http.MethodPost, "/api/v1/comparisons/ctrl/heat/display", body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Rows) != 3 || out.Rows[0]["name"] != "t3" || out.Rows[1]["name"] != "t1" || out.Rows[2]["name"] != "ghost" {
		t.Fatalf("unexpected rows %v", out.Rows)
	}
	if _, ok := out.Rows[2]["pValue"]; ok {
		t.Fatalf("placeholder should carry only a name: %v", out.Rows[2])
	}

	brush := `{"threshold":0.5,"selection":{"brush":{"minAbundance":0,"maxFoldChange":4,"maxAbundance":16,"minFoldChange":-4}}}`
	resp = serve(h, http.MethodPost, "/api/v1/comparisons/ctrl/heat/display", brush, nil)
	out.Rows = nil
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if len(out.Rows) != 2 || out.Rows[0]["name"] != "t1" || out.Rows[1]["name"] != "t2" {
		t.Fatalf("unexpected brushed rows %v", out.Rows)
	}

	for _, bad := range []string{`{"sort":"colour"}`, `{"order":"sideways"}`, `{"threshold":-1}`, `{`} {
		if resp := serve(h, http.MethodPost, "/api/v1/comparisons/ctrl/heat/display", bad, nil); resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, resp.Code)
		}
	}
}

func TestHandlerDisplayTSV(t *testing.T) {
	h := setupHandler(t)
	body := `{"selection":{"watched":["t2"]}}`
	resp := serve(h, http.MethodPost, "/api/v1/comparisons/ctrl/heat/display", body, http.Header{"Accept": {"text/tab-separated-values"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/tab-separated-values" {
		t.Fatalf("content type %s", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "demo-ctrl_vs_heat-") {
		t.Fatalf("content disposition %s", cd)
	}
	r := csv.NewReader(bytes.NewReader(resp.Body.Bytes()))
	r.Comma = '\t'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read tsv: %v", err)
	}
	if len(records) != 2 || records[0][4] != "Control mean" || records[1][0] != "t2" || records[1][3] != "-1" {
		t.Fatalf("unexpected tsv %v", records)
	}

	resp = serve(h, http.MethodPost, "/api/v1/comparisons/ctrl/heat/display?format=tsv", "", nil)
	if !strings.HasPrefix(resp.Body.String(), "name\tp-value") {
		t.Fatalf("format=tsv ignored: %q", resp.Body.String())
	}
}
