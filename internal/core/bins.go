package core

import (
	"math"
	"slices"
)

// DefaultBinUnit is the edge length of a grid square in pixels.
const DefaultBinUnit = 8

// Interval is a closed range of data values.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the interval, bounds included.
func (i Interval) Contains(v float64) bool { return v >= i.Min && v <= i.Max }

// Bin is one cell of the plot grid. X0 and Y0 are the pixel edges at the low
// end of each domain interval; X1 and Y1 are the edges at the high end.
type Bin struct {
	X0 int `json:"x0"`
	X1 int `json:"x1"`
	Y0 int `json:"y0"`
	Y1 int `json:"y1"`

	FoldChange Interval `json:"foldChange"`
	Abundance  Interval `json:"abundance"`

	Transcripts []*TranscriptRecord `json:"transcripts"`
}

// Empty reports whether the bin holds no transcripts.
func (b Bin) Empty() bool { return len(b.Transcripts) == 0 }

type axisBin struct {
	domain Interval
	p0, p1 int
}

// axisBins partitions the pixel range of s into cells of unit pixels and
// inverts each back into the domain. The result is domain-ascending and its
// outer bounds are clamped to the domain extrema.
func axisBins(s ScaleModel, unit float64) []axisBin {
	rMin, rMax := rangeExtent(s)
	n := int(math.Floor((rMax - rMin) / unit))
	if n <= 0 {
		return nil
	}
	flip := reversed(s)
	bins := make([]axisBin, n)
	for i := range bins {
		lo := rMin + float64(i)*unit
		hi := lo + unit
		if flip {
			lo, hi = hi, lo
		}
		bins[i] = axisBin{
			domain: Interval{Min: s.Invert(lo), Max: s.Invert(hi)},
			p0:     int(math.Ceil(lo)),
			p1:     int(math.Ceil(hi)),
		}
	}
	if flip {
		slices.Reverse(bins)
	}
	dMin, dMax := domainExtent(s)
	bins[0].domain.Min = dMin
	bins[n-1].domain.Max = dMax
	return bins
}

// assignAxis walks a sequence sorted on the axis field against ascending bins
// in one pass. Bins are half-open except the last, which also takes its upper
// bound, so every value inside the clamped domain lands in exactly one bin.
func assignAxis(seq SortedSequence, bins []axisBin) map[*TranscriptRecord]int {
	out := make(map[*TranscriptRecord]int, seq.Len())
	if len(bins) == 0 {
		return out
	}
	value := func(i int) float64 {
		v, ok := seq.field.Value(seq.At(i))
		if !ok {
			return math.NaN()
		}
		return v
	}
	idx := 0
	for idx < seq.Len() && value(idx) < bins[0].domain.Min {
		idx++
	}
	last := len(bins) - 1
	for bi, b := range bins {
		for idx < seq.Len() {
			v := value(idx)
			if !(v >= b.domain.Min && (v < b.domain.Max || (bi == last && v <= b.domain.Max))) {
				break
			}
			out[seq.At(idx)] = bi
			idx++
		}
	}
	return out
}

// ComputeBins lays the records of c accepted by keep onto a grid of unit-pixel
// squares. Rows follow yScale (log fold change) and columns follow xScale (log
// average abundance); the grid is returned row-major. Records outside either
// domain, or rejected by keep, appear in no bin. A nil comparison, a nil scale
// or a non-positive unit yields no bins.
func ComputeBins(c *PairwiseComparison, keep Predicate, xScale, yScale ScaleModel, unit float64) []Bin {
	if c == nil || xScale == nil || yScale == nil || !(unit > 0) {
		return nil
	}
	fcBins := axisBins(yScale, unit)
	ataBins := axisBins(xScale, unit)
	if len(fcBins) == 0 || len(ataBins) == 0 {
		return nil
	}

	grid := make([]Bin, 0, len(fcBins)*len(ataBins))
	for _, fc := range fcBins {
		for _, ata := range ataBins {
			grid = append(grid, Bin{
				X0:          ata.p0,
				X1:          ata.p1,
				Y0:          fc.p0,
				Y1:          fc.p1,
				FoldChange:  fc.domain,
				Abundance:   ata.domain,
				Transcripts: []*TranscriptRecord{},
			})
		}
	}

	byFC := assignAxis(c.fcSorted.Filter(keep), fcBins)
	byATA := assignAxis(c.ataSorted.Filter(keep), ataBins)
	for _, r := range c.order {
		fi, okFC := byFC[r]
		ai, okATA := byATA[r]
		if okFC && okATA {
			cell := &grid[fi*len(ataBins)+ai]
			cell.Transcripts = append(cell.Transcripts, r)
		}
	}
	return grid
}

// BinNames returns the transcript names of a bin in bin order.
func BinNames(b Bin) []string {
	names := make([]string, len(b.Transcripts))
	for i, r := range b.Transcripts {
		names[i] = r.Name
	}
	return names
}
