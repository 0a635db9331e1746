package core

import (
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
)

func checkSortedPermutation(t *testing.T, c *PairwiseComparison, seq SortedSequence) {
	t.Helper()
	if seq.Len() != c.Len() {
		t.Fatalf("%s: length %d, comparison has %d", seq.Field(), seq.Len(), c.Len())
	}
	seen := make(map[string]int)
	for i := 0; i < seq.Len(); i++ {
		seen[seq.At(i).Name]++
		if i == 0 {
			continue
		}
		prev, pok := seq.Field().Value(seq.At(i - 1))
		cur, cok := seq.Field().Value(seq.At(i))
		if cok && !pok {
			t.Fatalf("%s: defined value after undefined at %d", seq.Field(), i)
		}
		if pok && cok && cur < prev {
			t.Fatalf("%s: not ascending at %d: %v < %v", seq.Field(), i, cur, prev)
		}
	}
	for _, r := range c.Records() {
		if seen[r.Name] != 1 {
			t.Fatalf("%s: %s appears %d times", seq.Field(), r.Name, seen[r.Name])
		}
	}
}

func TestComparisonSortedOrdersArePermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([]TranscriptRecord, 0, 200)
	for i := 0; i < 200; i++ {
		r := rec("t"+string(rune('a'+i%26))+strings.Repeat("x", i/26), rng.NormFloat64()*3, rng.Float64()*12, rng.Float64())
		if i%17 == 0 {
			r.LogFC = math.NaN()
		}
		records = append(records, r)
	}
	c := NewPairwiseComparison("a", "b", records)
	checkSortedPermutation(t, c, c.FoldChangeSorted())
	checkSortedPermutation(t, c, c.AbundanceSorted())
}

func TestComparisonOrientedReversesFoldChange(t *testing.T) {
	one := 1.0
	two := 2.0
	r := rec("g1", 1.5, 4, 0.01)
	r.TreatmentAMean, r.TreatmentBMean = &one, &two
	c := NewPairwiseComparison("a", "b", []TranscriptRecord{r, rec("g2", -3, 2, 0.5)})

	if same, err := c.oriented("a", "b"); err != nil || same != c {
		t.Fatalf("same orientation must return the comparison itself: %v", err)
	}
	rev, err := c.oriented("b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if rev.TreatmentA() != "b" || rev.TreatmentB() != "a" {
		t.Fatalf("treatments not swapped: %s %s", rev.TreatmentA(), rev.TreatmentB())
	}
	g1, _ := rev.Get("g1")
	if g1.LogFC != -1.5 || *g1.TreatmentAMean != 2 || *g1.TreatmentBMean != 1 {
		t.Fatalf("unexpected reversed g1: %+v", g1)
	}
	if orig, _ := c.Get("g1"); orig.LogFC != 1.5 {
		t.Fatalf("original modified: %+v", orig)
	}
	if got := names(rev.FoldChangeSorted().Records()); !equalStrings(got, []string{"g1", "g2"}) {
		t.Fatalf("reversed fold change order %v", got)
	}
	if rev.MinPValue() != c.MinPValue() {
		t.Fatalf("min p-value changed")
	}
}

func TestComparisonOrientedRejectsOtherPair(t *testing.T) {
	c := NewPairwiseComparison("a,b", "c", []TranscriptRecord{rec("g1", 1, 1, 0.1)})
	for _, pair := range [][2]string{{"a", "b,c"}, {"b,c", "a"}, {"a", "c"}} {
		if got, err := c.oriented(pair[0], pair[1]); err == nil {
			t.Fatalf("oriented(%q, %q) = %s/%s, want error", pair[0], pair[1], got.TreatmentA(), got.TreatmentB())
		}
	}
}

func TestComparisonSummary(t *testing.T) {
	c := NewPairwiseComparison("a", "b", []TranscriptRecord{
		rec("g1", 2, 5, 0.01),
		rec("g2", -1, 5.2, 0.2),
		rec("g3", math.NaN(), 1, 0.3),
	})
	s := c.Summarize()
	if s.Records != 3 || s.MinPValue != 0.01 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.FoldChange != (Interval{Min: -1, Max: 2}) || s.Abundance != (Interval{Min: 1, Max: 5.2}) {
		t.Fatalf("unexpected extents %+v", s)
	}
}

func TestNilComparisonIsEmpty(t *testing.T) {
	var c *PairwiseComparison
	if c.Len() != 0 || c.Has("g1") || c.Records() != nil {
		t.Fatalf("nil comparison should behave as empty")
	}
}

func TestTranscriptRecordJSON(t *testing.T) {
	mean := 3.5
	r := TranscriptRecord{Name: "g1", LogFC: 1, LogATA: 2, PValue: math.NaN(), TreatmentAMean: &mean}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"pValue":null`) || !strings.Contains(s, `"treatmentA_AbundanceMean":3.5`) {
		t.Fatalf("unexpected json %s", s)
	}
	var back TranscriptRecord
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(back.PValue) || back.LogFC != 1 || *back.TreatmentAMean != 3.5 {
		t.Fatalf("unexpected decode %+v", back)
	}

	row, err := json.Marshal(DisplayRow{Name: "gX"})
	if err != nil || string(row) != `{"name":"gX"}` {
		t.Fatalf("placeholder json %s %v", row, err)
	}
}
