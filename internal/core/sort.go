package core

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Field identifies a sortable transcript attribute.
type Field string

const (
	FieldName             Field = "name"
	FieldPValue           Field = "pValue"
	FieldLogFC            Field = "logFC"
	FieldLogATA           Field = "logATA"
	FieldTreatmentAMean   Field = "treatmentA_AbundanceMean"
	FieldTreatmentAMedian Field = "treatmentA_AbundanceMedian"
	FieldTreatmentBMean   Field = "treatmentB_AbundanceMean"
	FieldTreatmentBMedian Field = "treatmentB_AbundanceMedian"
)

// Fields lists every sortable field in table column order.
var Fields = []Field{
	FieldName,
	FieldPValue,
	FieldLogATA,
	FieldLogFC,
	FieldTreatmentAMean,
	FieldTreatmentAMedian,
	FieldTreatmentBMean,
	FieldTreatmentBMedian,
}

var numericAccessors = map[Field]func(*TranscriptRecord) (float64, bool){
	FieldPValue: func(r *TranscriptRecord) (float64, bool) { return r.PValue, !math.IsNaN(r.PValue) },
	FieldLogFC:  func(r *TranscriptRecord) (float64, bool) { return r.LogFC, !math.IsNaN(r.LogFC) },
	FieldLogATA: func(r *TranscriptRecord) (float64, bool) { return r.LogATA, !math.IsNaN(r.LogATA) },
	FieldTreatmentAMean: func(r *TranscriptRecord) (float64, bool) {
		return deref(r.TreatmentAMean)
	},
	FieldTreatmentAMedian: func(r *TranscriptRecord) (float64, bool) {
		return deref(r.TreatmentAMedian)
	},
	FieldTreatmentBMean: func(r *TranscriptRecord) (float64, bool) {
		return deref(r.TreatmentBMean)
	},
	FieldTreatmentBMedian: func(r *TranscriptRecord) (float64, bool) {
		return deref(r.TreatmentBMedian)
	},
}

func deref(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// ParseField resolves a field identifier.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if f == FieldName {
		return f, nil
	}
	if _, ok := numericAccessors[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// Value returns the numeric value of a non-name field. The boolean is false
// when the record has no value for the field (nil summary or NaN).
func (f Field) Value(r *TranscriptRecord) (float64, bool) {
	get, ok := numericAccessors[f]
	if !ok || r == nil {
		return 0, false
	}
	return get(r)
}

// SortOrder is the requested direction of a sort.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder resolves "asc" or "desc"; empty defaults to ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(s)) {
	case "", OrderAsc:
		return OrderAsc, nil
	case OrderDesc:
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// SortSpec names the field and direction of a table sort.
type SortSpec struct {
	Field Field     `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultSort orders by transcript name, ascending.
var DefaultSort = SortSpec{Field: FieldName, Order: OrderAsc}

func (s SortSpec) compare(a, b *TranscriptRecord) int {
	if s.Field == FieldName {
		return s.direct(strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)))
	}
	av, aok := s.Field.Value(a)
	bv, bok := s.Field.Value(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		// Missing values sort last whatever the direction.
		return 1
	case !bok:
		return -1
	}
	return s.direct(cmp.Compare(av, bv))
}

func (s SortSpec) direct(c int) int {
	if s.Order == OrderDesc {
		return -c
	}
	return c
}

// Sort returns a new slice of records ordered by spec. The sort is stable, so
// ties keep their input order.
func Sort(records []*TranscriptRecord, spec SortSpec) []*TranscriptRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, spec.compare)
	return out
}

// SortComparison sorts every record of c. A nil comparison yields an empty result.
func SortComparison(c *PairwiseComparison, spec SortSpec) []*TranscriptRecord {
	if c == nil {
		return nil
	}
	return Sort(c.order, spec)
}

// SortedSequence is a record sequence known to be ascending on one numeric
// field. Only this package constructs it, which keeps the binning walk's
// sortedness precondition out of callers' hands.
type SortedSequence struct {
	field   Field
	records []*TranscriptRecord
}

func sortedBy(field Field, records []*TranscriptRecord) SortedSequence {
	return SortedSequence{field: field, records: Sort(records, SortSpec{Field: field, Order: OrderAsc})}
}

// Field returns the field the sequence is ordered on.
func (s SortedSequence) Field() Field { return s.field }

// Len returns the number of records.
func (s SortedSequence) Len() int { return len(s.records) }

// At returns the i-th record.
func (s SortedSequence) At(i int) *TranscriptRecord { return s.records[i] }

// Records returns a copy of the ordered records.
func (s SortedSequence) Records() []*TranscriptRecord { return slices.Clone(s.records) }

// Filter keeps the records accepted by keep, preserving order.
func (s SortedSequence) Filter(keep Predicate) SortedSequence {
	if keep == nil {
		return s
	}
	out := make([]*TranscriptRecord, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return SortedSequence{field: s.field, records: out}
}

// Predicate decides whether a record takes part in a computation.
type Predicate func(*TranscriptRecord) bool

// PValueAtMost accepts records whose p-value is at or below threshold.
func PValueAtMost(threshold float64) Predicate {
	return func(r *TranscriptRecord) bool { return r.PValue <= threshold }
}
