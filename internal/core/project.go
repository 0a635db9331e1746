package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultURLTemplate locates pairwise test files relative to the project
// base location. %A and %B are replaced by treatment keys.
const DefaultURLTemplate = "./pairwise_tests/%A_vs_%B.txt"

// AbundanceSource answers per-treatment replicate abundances for a transcript.
type AbundanceSource interface {
	Samples(treatment, transcript string) ([]float64, bool)
}

// AbundanceTable is an in-memory AbundanceSource. Database sources hydrate one
// at open time.
type AbundanceTable struct {
	mu      sync.RWMutex
	samples map[string]map[string][]float64
}

// NewAbundanceTable returns an empty table.
func NewAbundanceTable() *AbundanceTable {
	return &AbundanceTable{samples: make(map[string]map[string][]float64)}
}

// Add appends replicate values for a treatment/transcript pair.
func (t *AbundanceTable) Add(treatment, transcript string, values ...float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byTranscript, ok := t.samples[treatment]
	if !ok {
		byTranscript = make(map[string][]float64)
		t.samples[treatment] = byTranscript
	}
	byTranscript[transcript] = append(byTranscript[transcript], values...)
}

// Samples implements AbundanceSource. The returned slice is a copy.
func (t *AbundanceTable) Samples(treatment, transcript string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	values, ok := t.samples[treatment][transcript]
	if !ok {
		return nil, false
	}
	return slices.Clone(values), true
}

// Treatments returns the treatment keys with at least one sample, sorted.
func (t *AbundanceTable) Treatments() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.samples))
	for k := range t.samples {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// ProjectConfig describes a project for NewProject.
type ProjectConfig struct {
	Key        string
	Label      string
	Treatments []Treatment
	// Aliases maps synonyms to canonical transcript names.
	Aliases map[string]string
	// Abundance may be nil when no replicate data is available.
	Abundance AbundanceSource
	// PairwiseName is the URL template for test-result files.
	PairwiseName string
	// BaseURL is the location PairwiseName is resolved against.
	BaseURL string
	// AbundanceLimits holds the initial [x, y] plot domains: log abundance, then log fold change.
	AbundanceLimits [2][2]float64
}

// Project owns the treatments, transcript aliases and abundance data that
// comparisons are built from.
type Project struct {
	key          string
	label        string
	treatments   []Treatment
	byKey        map[string]Treatment
	aliases      map[string]string
	abundance    AbundanceSource
	pairwiseName string
	baseURL      string
	limits       [2][2]float64
}

// NewProject validates cfg and builds a project.
func NewProject(cfg ProjectConfig) (*Project, error) {
	p := &Project{
		key:          cfg.Key,
		label:        cfg.Label,
		byKey:        make(map[string]Treatment, len(cfg.Treatments)),
		aliases:      make(map[string]string, len(cfg.Aliases)),
		abundance:    cfg.Abundance,
		pairwiseName: cfg.PairwiseName,
		baseURL:      cfg.BaseURL,
		limits:       cfg.AbundanceLimits,
	}
	for _, t := range cfg.Treatments {
		if strings.TrimSpace(t.Key) == "" {
			return nil, fmt.Errorf("treatment key required")
		}
		if _, dup := p.byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate treatment %s", t.Key)
		}
		p.byKey[t.Key] = t
		p.treatments = append(p.treatments, t)
	}
	for alias, canonical := range cfg.Aliases {
		p.aliases[alias] = canonical
	}
	if p.pairwiseName == "" {
		p.pairwiseName = DefaultURLTemplate
	}
	return p, nil
}

// Key returns the project key.
func (p *Project) Key() string { return p.key }

// Label returns the human-readable project name.
func (p *Project) Label() string { return p.label }

// Treatments returns the treatments in project order.
func (p *Project) Treatments() []Treatment { return slices.Clone(p.treatments) }

// Treatment looks up a treatment by key.
func (p *Project) Treatment(key string) (Treatment, bool) {
	t, ok := p.byKey[key]
	return t, ok
}

// TreatmentLabel returns the label of key, or key itself when it has none.
func (p *Project) TreatmentLabel(key string) string {
	if t, ok := p.byKey[key]; ok && t.Label != "" {
		return t.Label
	}
	return key
}

// CanonicalLabel folds a raw transcript id onto its canonical name.
func (p *Project) CanonicalLabel(rawID string) string {
	if canonical, ok := p.aliases[rawID]; ok {
		return canonical
	}
	return rawID
}

// AbundanceSamples returns the replicate abundances of transcript in treatment.
func (p *Project) AbundanceSamples(treatment, transcript string) ([]float64, bool) {
	if p.abundance == nil {
		return nil, false
	}
	return p.abundance.Samples(treatment, transcript)
}

// PairwiseName returns the URL template for test-result files.
func (p *Project) PairwiseName() string { return p.pairwiseName }

// BaseURL returns the location templates are resolved against.
func (p *Project) BaseURL() string { return p.baseURL }

// AbundanceLimits returns the initial domains of the abundance (x) and fold
// change (y) axes.
func (p *Project) AbundanceLimits() (x, y [2]float64) {
	return p.limits[0], p.limits[1]
}

// DefaultPair returns the first two treatments in project order.
func (p *Project) DefaultPair() (a, b string, err error) {
	if len(p.treatments) < 2 {
		return "", "", fmt.Errorf("project %s needs at least two treatments, has %d", p.key, len(p.treatments))
	}
	return p.treatments[0].Key, p.treatments[1].Key, nil
}
