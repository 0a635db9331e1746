package core

import (
	"fmt"
	"math"
)

// BinStyle is the rendering of a non-empty bin: its fill colours and the
// fraction of the grid square it occupies.
type BinStyle struct {
	Count        int     `json:"count"`
	Color        string  `json:"color"`
	BrushedColor string  `json:"brushedColor"`
	Multiplier   float64 `json:"multiplier"`
}

const (
	minStyledCount = 5
	maxStyledCount = 150
)

var binMultipliers = map[int]float64{1: .35, 2: .5, 3: .65, 4: .8}

// ColorBrewer nine-class sequential schemes.
var (
	bluesRamp   = colorRamp{stops: []rgb{{0xf7, 0xfb, 0xff}, {0xde, 0xeb, 0xf7}, {0xc6, 0xdb, 0xef}, {0x9e, 0xca, 0xe1}, {0x6b, 0xae, 0xd6}, {0x42, 0x92, 0xc6}, {0x21, 0x71, 0xb5}, {0x08, 0x51, 0x9c}, {0x08, 0x30, 0x6b}}, lo: -300, hi: maxStyledCount}
	purplesRamp = colorRamp{stops: []rgb{{0xfc, 0xfb, 0xfd}, {0xef, 0xed, 0xf5}, {0xda, 0xda, 0xeb}, {0xbc, 0xbd, 0xdc}, {0x9e, 0x9a, 0xc8}, {0x80, 0x7d, 0xba}, {0x6a, 0x51, 0xa3}, {0x54, 0x27, 0x8f}, {0x3f, 0x00, 0x7d}}, lo: -500, hi: maxStyledCount}
)

type rgb struct{ r, g, b float64 }

type colorRamp struct {
	stops  []rgb
	lo, hi float64
}

// at interpolates the ramp at v, clamped to [lo, hi].
func (c colorRamp) at(v float64) string {
	t := (v - c.lo) / (c.hi - c.lo)
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(c.stops)-1)
	i := int(math.Floor(pos))
	if i >= len(c.stops)-1 {
		i = len(c.stops) - 2
	}
	f := pos - float64(i)
	a, b := c.stops[i], c.stops[i+1]
	mix := func(x, y float64) int { return int(math.Round(x + (y-x)*f)) }
	return fmt.Sprintf("#%02x%02x%02x", mix(a.r, b.r), mix(a.g, b.g), mix(a.b, b.b))
}

// StyleFor derives the style of b. Empty bins are not drawn and report false.
func StyleFor(b Bin) (BinStyle, bool) {
	n := len(b.Transcripts)
	if n == 0 {
		return BinStyle{}, false
	}
	m, ok := binMultipliers[n]
	if !ok {
		m = 1
	}
	shade := float64(min(max(n, minStyledCount), maxStyledCount))
	return BinStyle{
		Count:        n,
		Color:        bluesRamp.at(shade),
		BrushedColor: purplesRamp.at(shade),
		Multiplier:   m,
	}, true
}

// HitTest returns the index of the non-empty bin under pixel (x, y). Each
// axis of a bin covers [min, max) of its two pixel edges, whichever way the
// scale runs.
func HitTest(bins []Bin, x, y float64) (int, bool) {
	within := func(v float64, e0, e1 int) bool {
		lo, hi := float64(min(e0, e1)), float64(max(e0, e1))
		return lo <= v && v < hi
	}
	for i, b := range bins {
		if b.Empty() {
			continue
		}
		if within(x, b.X0, b.X1) && within(y, b.Y0, b.Y1) {
			return i, true
		}
	}
	return -1, false
}

// BrushFromPixels converts a dragged pixel rectangle, top-left (x0, y0) to
// bottom-right (x1, y1), into data coordinates rounded to three decimals.
func BrushFromPixels(xScale, yScale ScaleModel, x0, y0, x1, y1 float64) Brush {
	round3 := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	return Brush{
		MinAbundance:  round3(xScale.Invert(x0)),
		MaxFoldChange: round3(yScale.Invert(y0)),
		MaxAbundance:  round3(xScale.Invert(x1)),
		MinFoldChange: round3(yScale.Invert(y1)),
	}
}
