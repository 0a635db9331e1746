package httpapi

import (
	"fmt"

	"dredge/internal/core"
)

// DisplayQuery is the table state a client sends: sort, p-value threshold and
// the raw selection.
type DisplayQuery struct {
	Sort      string              `json:"sort"`
	Order     string              `json:"order"`
	Threshold *float64            `json:"threshold,omitempty"`
	Selection core.SelectionState `json:"selection"`
}

// resolve validates q. The threshold defaults to 1, which admits every p-value.
func (q DisplayQuery) resolve() (core.SortSpec, float64, error) {
	spec := core.DefaultSort
	if q.Sort != "" {
		f, err := core.ParseField(q.Sort)
		if err != nil {
			return core.SortSpec{}, 0, err
		}
		spec.Field = f
	}
	order, err := core.ParseSortOrder(q.Order)
	if err != nil {
		return core.SortSpec{}, 0, err
	}
	spec.Order = order
	threshold := 1.0
	if q.Threshold != nil {
		threshold = *q.Threshold
		if threshold < 0 || threshold > 1 {
			return core.SortSpec{}, 0, fmt.Errorf("threshold %v outside [0, 1]", threshold)
		}
	}
	return spec, threshold, nil
}

// Rows selects and orders the display rows of c.
func (q DisplayQuery) Rows(p *core.Project, c *core.PairwiseComparison) ([]core.DisplayRow, error) {
	spec, threshold, err := q.resolve()
	if err != nil {
		return nil, err
	}
	sel := core.DisplaySelector{Canonical: p.CanonicalLabel}
	return sel.Select(core.SortComparison(c, spec), c, q.Selection.Active(), threshold, spec), nil
}
