package core

import (
	"slices"
	"strings"
)

// Selection is the single active way of choosing which transcripts the table
// lists. Exactly one of Brush, SelectedBin, HoveredBin or WatchList.
type Selection interface {
	selection()
}

// Brush is a rectangle in data coordinates. All bounds are inclusive.
type Brush struct {
	MinAbundance  float64 `json:"minAbundance"`
	MaxFoldChange float64 `json:"maxFoldChange"`
	MaxAbundance  float64 `json:"maxAbundance"`
	MinFoldChange float64 `json:"minFoldChange"`
}

// SelectedBin lists the transcripts of a clicked bin.
type SelectedBin struct{ Names []string }

// HoveredBin lists the transcripts of the bin under the pointer.
type HoveredBin struct{ Names []string }

// WatchList lists the transcripts the user has saved.
type WatchList struct{ Names []string }

func (Brush) selection()       {}
func (SelectedBin) selection() {}
func (HoveredBin) selection()  {}
func (WatchList) selection()   {}

// Coords returns the brush as [minAbundance, maxFoldChange, maxAbundance, minFoldChange].
func (b Brush) Coords() [4]float64 {
	return [4]float64{b.MinAbundance, b.MaxFoldChange, b.MaxAbundance, b.MinFoldChange}
}

// BrushFromCoords is the inverse of Brush.Coords.
func BrushFromCoords(c [4]float64) Brush {
	return Brush{MinAbundance: c[0], MaxFoldChange: c[1], MaxAbundance: c[2], MinFoldChange: c[3]}
}

func (b Brush) contains(r *TranscriptRecord, threshold float64) bool {
	return r.PValue >= 0 && r.PValue <= threshold &&
		r.LogATA >= b.MinAbundance && r.LogATA <= b.MaxAbundance &&
		r.LogFC >= b.MinFoldChange && r.LogFC <= b.MaxFoldChange
}

// SelectionState is the raw UI state. A nil slice means the mode is inactive;
// an empty non-nil slice is an active mode with nothing in it.
type SelectionState struct {
	Brush       *Brush   `json:"brush,omitempty"`
	SelectedBin []string `json:"selectedBin,omitempty"`
	HoveredBin  []string `json:"hoveredBin,omitempty"`
	Watched     []string `json:"watched,omitempty"`
}

// Active resolves the state to one selection by priority: brush, selected
// bin, hovered bin, then the watch list.
func (s SelectionState) Active() Selection {
	switch {
	case s.Brush != nil:
		return *s.Brush
	case s.SelectedBin != nil:
		return SelectedBin{Names: s.SelectedBin}
	case s.HoveredBin != nil:
		return HoveredBin{Names: s.HoveredBin}
	default:
		return WatchList{Names: s.Watched}
	}
}

// DisplaySelector derives table rows from a sorted record list and the
// current selection.
type DisplaySelector struct {
	// Canonical folds listed names onto canonical transcript names. Nil means identity.
	Canonical func(string) string
}

// Select returns the rows of sorted chosen by sel, in sorted's order, followed
// or interleaved by name-only placeholders for chosen names the comparison
// does not contain. A nil comparison yields no rows.
func (d DisplaySelector) Select(sorted []*TranscriptRecord, c *PairwiseComparison, sel Selection, threshold float64, spec SortSpec) []DisplayRow {
	if c == nil {
		return []DisplayRow{}
	}
	eligible := make(map[string]struct{})
	var missing []string
	note := func(name string) {
		if _, dup := eligible[name]; dup {
			return
		}
		eligible[name] = struct{}{}
		if !c.Has(name) {
			missing = append(missing, name)
		}
	}

	switch s := sel.(type) {
	case Brush:
		for _, r := range c.order {
			if s.contains(r, threshold) {
				eligible[r.Name] = struct{}{}
			}
		}
	case SelectedBin:
		d.noteAll(s.Names, note)
	case HoveredBin:
		d.noteAll(s.Names, note)
	case WatchList:
		d.noteAll(s.Names, note)
	}

	rows := make([]DisplayRow, 0, len(eligible))
	for _, r := range sorted {
		if _, ok := eligible[r.Name]; ok {
			rows = append(rows, DisplayRow{Name: r.Name, Record: r})
		}
	}
	return mergePlaceholders(rows, missing, spec)
}

func (d DisplaySelector) noteAll(names []string, note func(string)) {
	for _, n := range names {
		if d.Canonical != nil {
			n = d.Canonical(n)
		}
		note(n)
	}
}

// mergePlaceholders adds a name-only row per missing name. Under a name sort
// each is inserted at its alphabetical position; otherwise they trail the
// numeric rows.
func mergePlaceholders(rows []DisplayRow, missing []string, spec SortSpec) []DisplayRow {
	byName := SortSpec{Field: FieldName, Order: spec.Order}
	cmpNames := func(a, b string) int {
		return byName.direct(strings.Compare(strings.ToLower(a), strings.ToLower(b)))
	}
	slices.SortStableFunc(missing, cmpNames)

	present := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		present[r.Name] = struct{}{}
	}
	for _, name := range missing {
		if _, dup := present[name]; dup {
			continue
		}
		present[name] = struct{}{}
		row := DisplayRow{Name: name}
		if spec.Field != FieldName {
			rows = append(rows, row)
			continue
		}
		i := 0
		for i < len(rows) && cmpNames(name, rows[i].Name) > 0 {
			i++
		}
		rows = slices.Insert(rows, i, row)
	}
	return rows
}

// SelectDisplay is DisplaySelector.Select with identity canonicalisation.
func SelectDisplay(sorted []*TranscriptRecord, c *PairwiseComparison, sel Selection, threshold float64, spec SortSpec) []DisplayRow {
	return DisplaySelector{}.Select(sorted, c, sel, threshold, spec)
}
