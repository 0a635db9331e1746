package core

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned by fetchers when a location holds no file. It
// matches os.ErrNotExist through errors.Is.
var ErrNotFound = fmt.Errorf("file not found: %w", os.ErrNotExist)

// ErrUnknownTreatment is returned when a requested treatment key is not part
// of the project.
type ErrUnknownTreatment struct {
	Key string
}

func (e ErrUnknownTreatment) Error() string {
	return fmt.Sprintf("no such treatment: %s", e.Key)
}

// ErrComparisonFileUnavailable is returned when neither orientation of a
// pairwise test-result file could be fetched.
type ErrComparisonFileUnavailable struct {
	Locations [2]string
	Causes    [2]error
}

func (e ErrComparisonFileUnavailable) Error() string {
	return fmt.Sprintf("could not download pairwise test from %s or %s", e.Locations[0], e.Locations[1])
}

// Unwrap exposes both fetch failures.
func (e ErrComparisonFileUnavailable) Unwrap() []error {
	var out []error
	for _, err := range e.Causes {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// ErrDuplicateTranscript is returned under CollisionReject when two rows fold
// to the same canonical transcript name.
type ErrDuplicateTranscript struct {
	Name string
	Line int
}

func (e ErrDuplicateTranscript) Error() string {
	return fmt.Sprintf("duplicate transcript %s on line %d", e.Name, e.Line)
}

// IsUnknownTreatment reports whether err is or wraps ErrUnknownTreatment.
func IsUnknownTreatment(err error) bool {
	var target ErrUnknownTreatment
	return errors.As(err, &target)
}

// IsComparisonUnavailable reports whether err is or wraps ErrComparisonFileUnavailable.
func IsComparisonUnavailable(err error) bool {
	var target ErrComparisonFileUnavailable
	return errors.As(err, &target)
}

// AnomalyKind classifies a recovered parse problem.
type AnomalyKind string

const (
	AnomalyNonNumericPValue AnomalyKind = "non_numeric_p_value"
	AnomalyDuplicateID      AnomalyKind = "duplicate_id"
	AnomalyMalformedRow     AnomalyKind = "malformed_row"
)

// ParseAnomaly describes a row that was kept with degraded data or skipped.
// Anomalies never abort a load.
type ParseAnomaly struct {
	Line   int         `json:"line"`
	Kind   AnomalyKind `json:"kind"`
	ID     string      `json:"id,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (a ParseAnomaly) String() string {
	if a.Detail == "" {
		return fmt.Sprintf("line %d: %s %s", a.Line, a.Kind, a.ID)
	}
	return fmt.Sprintf("line %d: %s %s (%s)", a.Line, a.Kind, a.ID, a.Detail)
}
