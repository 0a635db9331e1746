package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
)

// CollisionPolicy decides what happens when two rows fold to the same
// canonical transcript name.
type CollisionPolicy string

const (
	// CollisionOverwrite keeps the later row at the earlier row's position.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionKeepFirst ignores later rows, including their p-values.
	CollisionKeepFirst CollisionPolicy = "keep-first"
	// CollisionReject fails the parse.
	CollisionReject CollisionPolicy = "reject"
)

// ParseCollisionPolicy resolves a policy name; empty means overwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionOverwrite, nil
	case CollisionOverwrite, CollisionKeepFirst, CollisionReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
}

// ParseOptions configures ParsePairwise.
type ParseOptions struct {
	TreatmentA string
	TreatmentB string
	// NegateFoldChange flips the sign of every logFC, used when the file on
	// disk was computed as B versus A.
	NegateFoldChange bool
	Collisions       CollisionPolicy
	// Canonical folds raw transcript ids onto canonical names. Nil means identity.
	Canonical func(rawID string) string
	// Samples returns a treatment's replicate abundances for a transcript.
	// Nil means no samples are known.
	Samples func(treatment, transcript string) ([]float64, bool)
}

// ParsePairwise reads a tab-separated pairwise test result: a header line and
// then `id, logFC, logATA, pValue` per transcript.
func ParsePairwise(r io.Reader, opts ParseOptions) (*PairwiseComparison, error) {
	bld := newComparisonBuilder(opts.TreatmentA, opts.TreatmentB, opts.Collisions)
	canonical := opts.Canonical
	if canonical == nil {
		canonical = func(id string) string { return id }
	}
	sign := 1.0
	if opts.NegateFoldChange {
		sign = -1
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	header := false
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if !header {
			header = true
			continue
		}
		cols := strings.Split(text, "\t")
		id := strings.TrimSpace(cols[0])
		if id == "" {
			bld.anomaly(ParseAnomaly{Line: line, Kind: AnomalyMalformedRow, Detail: "empty transcript id"})
			continue
		}
		if len(cols) < 4 {
			bld.anomaly(ParseAnomaly{Line: line, Kind: AnomalyMalformedRow, ID: id, Detail: fmt.Sprintf("%d columns", len(cols))})
		}
		logFC, fcOK := column(cols, 1)
		logATA, ataOK := column(cols, 2)
		pValue, pOK := column(cols, 3)
		if len(cols) >= 4 {
			if !fcOK || !ataOK {
				bld.anomaly(ParseAnomaly{Line: line, Kind: AnomalyMalformedRow, ID: id, Detail: "non-numeric logFC or logATA"})
			}
			if !pOK || math.IsNaN(pValue) {
				bld.anomaly(ParseAnomaly{Line: line, Kind: AnomalyNonNumericPValue, ID: id, Detail: cols[3]})
			}
		}
		name := canonical(id)
		rec := &TranscriptRecord{
			Name:   name,
			LogFC:  sign * logFC,
			LogATA: logATA,
			PValue: pValue,
		}
		if opts.Samples != nil {
			rec.TreatmentAMean, rec.TreatmentAMedian = summarize(opts.Samples(opts.TreatmentA, name))
			rec.TreatmentBMean, rec.TreatmentBMedian = summarize(opts.Samples(opts.TreatmentB, name))
		}
		if err := bld.add(line, rec); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pairwise test: %w", err)
	}
	return bld.build(), nil
}

// column parses cols[i] as a float; missing or non-numeric values are NaN.
func column(cols []string, i int) (float64, bool) {
	if i >= len(cols) {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cols[i]), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// summarize returns the mean and median of the defined samples, or nils when
// there are none.
func summarize(samples []float64, ok bool) (mean, median *float64) {
	if !ok {
		return nil, nil
	}
	xs := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return nil, nil
	}
	slices.Sort(xs)
	m := stats.Mean(xs)
	med := stats.Sample{Xs: xs, Sorted: true}.Quantile(0.5)
	return &m, &med
}
