package core

import (
	"math"

	"github.com/aclements/go-moremath/scale"
)

// ScaleModel maps a data domain onto a pixel range and back. Either side may
// be reversed, as with a vertical axis whose pixel origin is at the top.
type ScaleModel interface {
	Domain() (d0, d1 float64)
	Range() (r0, r1 float64)
	Map(v float64) float64
	Invert(px float64) float64
}

// LinearScale is an affine ScaleModel.
type LinearScale struct {
	lin    scale.Linear
	r0, r1 float64
}

// NewLinearScale maps d0 to r0 and d1 to r1.
func NewLinearScale(d0, d1, r0, r1 float64) LinearScale {
	return LinearScale{lin: scale.Linear{Min: d0, Max: d1}, r0: r0, r1: r1}
}

// Domain implements ScaleModel.
func (s LinearScale) Domain() (float64, float64) { return s.lin.Min, s.lin.Max }

// Range implements ScaleModel.
func (s LinearScale) Range() (float64, float64) { return s.r0, s.r1 }

// Map implements ScaleModel. A zero-width domain maps everything to r0.
func (s LinearScale) Map(v float64) float64 {
	if s.lin.Min == s.lin.Max {
		return s.r0
	}
	return s.r0 + s.lin.Map(v)*(s.r1-s.r0)
}

// Invert implements ScaleModel. A zero-width range inverts everything to d0.
func (s LinearScale) Invert(px float64) float64 {
	if s.r0 == s.r1 {
		return s.lin.Min
	}
	return s.lin.Unmap((px - s.r0) / (s.r1 - s.r0))
}

// WithDomain returns a copy of s over a new domain.
func (s LinearScale) WithDomain(d0, d1 float64) LinearScale {
	return NewLinearScale(d0, d1, s.r0, s.r1)
}

func domainExtent(s ScaleModel) (lo, hi float64) {
	d0, d1 := s.Domain()
	return math.Min(d0, d1), math.Max(d0, d1)
}

func rangeExtent(s ScaleModel) (lo, hi float64) {
	r0, r1 := s.Range()
	return math.Min(r0, r1), math.Max(r0, r1)
}

// reversed reports whether increasing pixels run against increasing data.
func reversed(s ScaleModel) bool {
	d0, d1 := s.Domain()
	r0, r1 := s.Range()
	return (d1 < d0) != (r1 < r0)
}

// PlotScales builds the MA plot axes for a width by height pixel area: log
// average abundance across x, log fold change up y. A degenerate limit falls
// back to the comparison's extent on that axis.
func PlotScales(c *PairwiseComparison, xLimits, yLimits [2]float64, width, height float64) (x, y LinearScale) {
	if xLimits[0] == xLimits[1] && c != nil {
		e := extent(c.ataSorted)
		xLimits = [2]float64{e.Min, e.Max}
	}
	if yLimits[0] == yLimits[1] && c != nil {
		e := extent(c.fcSorted)
		yLimits = [2]float64{e.Min, e.Max}
	}
	return NewLinearScale(xLimits[0], xLimits[1], 0, width), NewLinearScale(yLimits[0], yLimits[1], height, 0)
}
