package core

import (
	"fmt"
	"math"
	"slices"
)

// PairwiseComparison is an immutable, pre-sorted set of transcript records for
// one oriented treatment pair. Fold changes are expressed as A versus B.
type PairwiseComparison struct {
	treatmentA string
	treatmentB string

	records map[string]*TranscriptRecord
	// order is the iteration order of records: the position of each name's
	// first occurrence in the source.
	order []*TranscriptRecord

	minPValue float64
	fcSorted  SortedSequence
	ataSorted SortedSequence
	anomalies []ParseAnomaly
}

// TreatmentA returns the key of the first treatment.
func (c *PairwiseComparison) TreatmentA() string { return c.treatmentA }

// TreatmentB returns the key of the second treatment.
func (c *PairwiseComparison) TreatmentB() string { return c.treatmentB }

// Len returns the number of distinct transcripts.
func (c *PairwiseComparison) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Get returns the record for a canonical transcript name.
func (c *PairwiseComparison) Get(name string) (*TranscriptRecord, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.records[name]
	return r, ok
}

// Has reports whether the comparison contains name.
func (c *PairwiseComparison) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Records returns the records in iteration order.
func (c *PairwiseComparison) Records() []*TranscriptRecord {
	if c == nil {
		return nil
	}
	return slices.Clone(c.order)
}

// MinPValue returns the smallest strictly positive p-value seen while parsing,
// or 1 when none was below 1.
func (c *PairwiseComparison) MinPValue() float64 { return c.minPValue }

// FoldChangeSorted returns the records ascending by log fold change.
func (c *PairwiseComparison) FoldChangeSorted() SortedSequence { return c.fcSorted }

// AbundanceSorted returns the records ascending by log average abundance.
func (c *PairwiseComparison) AbundanceSorted() SortedSequence { return c.ataSorted }

// Anomalies returns the recoverable problems met while building the comparison.
func (c *PairwiseComparison) Anomalies() []ParseAnomaly { return slices.Clone(c.anomalies) }

// oriented returns c expressed as a versus b. When c was built the other way
// round a reversed view is derived; c itself is never modified. A comparison
// of any other pair is an error.
func (c *PairwiseComparison) oriented(a, b string) (*PairwiseComparison, error) {
	switch {
	case c.treatmentA == a && c.treatmentB == b:
		return c, nil
	case c.treatmentA == b && c.treatmentB == a:
		return c.reversed(), nil
	default:
		return nil, fmt.Errorf("comparison of %s/%s cannot serve %s/%s", c.treatmentA, c.treatmentB, a, b)
	}
}

func (c *PairwiseComparison) reversed() *PairwiseComparison {
	bld := newComparisonBuilder(c.treatmentB, c.treatmentA, CollisionOverwrite)
	for _, r := range c.order {
		flipped := *r
		flipped.LogFC = -r.LogFC
		flipped.TreatmentAMean, flipped.TreatmentBMean = r.TreatmentBMean, r.TreatmentAMean
		flipped.TreatmentAMedian, flipped.TreatmentBMedian = r.TreatmentBMedian, r.TreatmentAMedian
		_ = bld.add(0, &flipped)
	}
	out := bld.build()
	out.minPValue = c.minPValue
	out.anomalies = slices.Clone(c.anomalies)
	return out
}

// NewPairwiseComparison builds a comparison from records already expressed as
// a versus b. Later records with a repeated name replace earlier ones.
func NewPairwiseComparison(a, b string, records []TranscriptRecord) *PairwiseComparison {
	bld := newComparisonBuilder(a, b, CollisionOverwrite)
	for i := range records {
		r := records[i]
		_ = bld.add(i+1, &r)
	}
	return bld.build()
}

type comparisonBuilder struct {
	a, b      string
	policy    CollisionPolicy
	records   map[string]*TranscriptRecord
	index     map[string]int
	order     []*TranscriptRecord
	minPValue float64
	anomalies []ParseAnomaly
}

func newComparisonBuilder(a, b string, policy CollisionPolicy) *comparisonBuilder {
	if policy == "" {
		policy = CollisionOverwrite
	}
	return &comparisonBuilder{
		a:         a,
		b:         b,
		policy:    policy,
		records:   make(map[string]*TranscriptRecord),
		index:     make(map[string]int),
		minPValue: 1,
	}
}

func (bld *comparisonBuilder) observePValue(p float64) {
	if p > 0 && p < bld.minPValue {
		bld.minPValue = p
	}
}

func (bld *comparisonBuilder) anomaly(a ParseAnomaly) {
	bld.anomalies = append(bld.anomalies, a)
}

// add inserts r under r.Name applying the collision policy. line is the
// 1-based source line, used for anomaly reports. Only stored rows count
// towards minPValue.
func (bld *comparisonBuilder) add(line int, r *TranscriptRecord) error {
	pos, seen := bld.index[r.Name]
	if !seen {
		bld.observePValue(r.PValue)
		bld.index[r.Name] = len(bld.order)
		bld.order = append(bld.order, r)
		bld.records[r.Name] = r
		return nil
	}
	bld.anomaly(ParseAnomaly{Line: line, Kind: AnomalyDuplicateID, ID: r.Name, Detail: string(bld.policy)})
	switch bld.policy {
	case CollisionReject:
		return ErrDuplicateTranscript{Name: r.Name, Line: line}
	case CollisionKeepFirst:
		return nil
	default:
		bld.observePValue(r.PValue)
		bld.order[pos] = r
		bld.records[r.Name] = r
		return nil
	}
}

func (bld *comparisonBuilder) build() *PairwiseComparison {
	return &PairwiseComparison{
		treatmentA: bld.a,
		treatmentB: bld.b,
		records:    bld.records,
		order:      bld.order,
		minPValue:  bld.minPValue,
		fcSorted:   sortedBy(FieldLogFC, bld.order),
		ataSorted:  sortedBy(FieldLogATA, bld.order),
		anomalies:  bld.anomalies,
	}
}

// Summary is a serialisable description of a comparison.
type Summary struct {
	TreatmentA string   `json:"treatmentA"`
	TreatmentB string   `json:"treatmentB"`
	Records    int      `json:"records"`
	MinPValue  float64  `json:"minPValue"`
	Anomalies  int      `json:"anomalies"`
	FoldChange Interval `json:"foldChangeExtent"`
	Abundance  Interval `json:"abundanceExtent"`
}

// Summarize reports the size and value extents of c.
func (c *PairwiseComparison) Summarize() Summary {
	return Summary{
		TreatmentA: c.treatmentA,
		TreatmentB: c.treatmentB,
		Records:    len(c.order),
		MinPValue:  c.minPValue,
		Anomalies:  len(c.anomalies),
		FoldChange: extent(c.fcSorted),
		Abundance:  extent(c.ataSorted),
	}
}

// extent returns the smallest and largest defined values of an ascending
// sequence whose undefined values sit at the end.
func extent(s SortedSequence) Interval {
	var out Interval
	found := false
	for i := 0; i < s.Len(); i++ {
		v, ok := s.field.Value(s.At(i))
		if !ok || math.IsInf(v, 0) {
			continue
		}
		if !found {
			out.Min = v
			found = true
		}
		out.Max = v
	}
	return out
}
