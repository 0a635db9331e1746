// Package core implements the differential-expression pipeline: loading pairwise
// test results into comparisons, sorting them, deriving the displayed transcript
// list from selection state, and binning comparisons onto a pixel grid.
package core

import (
	"encoding/json"
	"math"
)

// Treatment is an experimental condition (sample group) in a project.
type Treatment struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// TranscriptRecord is one transcript's differential expression between the two
// treatments of a comparison. Records handed out by a comparison are shared and
// must be treated as read-only.
type TranscriptRecord struct {
	Name   string
	LogFC  float64
	LogATA float64
	// PValue may be NaN when the source row held a non-numeric value.
	PValue float64

	// Abundance summaries are nil when the treatment has no samples for the transcript.
	TreatmentAMean   *float64
	TreatmentAMedian *float64
	TreatmentBMean   *float64
	TreatmentBMedian *float64
}

type recordJSON struct {
	Name             string   `json:"name"`
	PValue           *float64 `json:"pValue"`
	LogFC            *float64 `json:"logFC"`
	LogATA           *float64 `json:"logATA"`
	TreatmentAMean   *float64 `json:"treatmentA_AbundanceMean"`
	TreatmentAMedian *float64 `json:"treatmentA_AbundanceMedian"`
	TreatmentBMean   *float64 `json:"treatmentB_AbundanceMean"`
	TreatmentBMedian *float64 `json:"treatmentB_AbundanceMedian"`
}

// MarshalJSON encodes NaN values as null.
func (r TranscriptRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Name:             r.Name,
		PValue:           finite(r.PValue),
		LogFC:            finite(r.LogFC),
		LogATA:           finite(r.LogATA),
		TreatmentAMean:   r.TreatmentAMean,
		TreatmentAMedian: r.TreatmentAMedian,
		TreatmentBMean:   r.TreatmentBMean,
		TreatmentBMedian: r.TreatmentBMedian,
	})
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON; null numbers decode to NaN.
func (r *TranscriptRecord) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = TranscriptRecord{
		Name:             raw.Name,
		PValue:           orNaN(raw.PValue),
		LogFC:            orNaN(raw.LogFC),
		LogATA:           orNaN(raw.LogATA),
		TreatmentAMean:   raw.TreatmentAMean,
		TreatmentAMedian: raw.TreatmentAMedian,
		TreatmentBMean:   raw.TreatmentBMean,
		TreatmentBMedian: raw.TreatmentBMedian,
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// DisplayRow is one entry of the displayed transcript list. Record is nil for
// placeholders: watched or selected names absent from the loaded comparison.
type DisplayRow struct {
	Name   string
	Record *TranscriptRecord
}

// Placeholder reports whether the row has no comparison data.
func (r DisplayRow) Placeholder() bool { return r.Record == nil }

// MarshalJSON encodes placeholders as a bare name object.
func (r DisplayRow) MarshalJSON() ([]byte, error) {
	if r.Record == nil {
		return json.Marshal(struct {
			Name string `json:"name"`
		}{r.Name})
	}
	return json.Marshal(*r.Record)
}
