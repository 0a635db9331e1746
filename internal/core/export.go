package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// DisplayColumns returns the header of an exported display table.
func DisplayColumns(labelA, labelB string) []string {
	return []string{
		"name",
		"p-value",
		"logATA",
		"logFC",
		labelA + " mean",
		labelA + " median",
		labelB + " mean",
		labelB + " median",
	}
}

// WriteDisplayTSV writes rows as tab-separated values with a header.
// Placeholder rows carry only their name; missing numbers are empty cells.
func WriteDisplayTSV(w io.Writer, rows []DisplayRow, labelA, labelB string) error {
	out := csv.NewWriter(w)
	out.Comma = '\t'
	if err := out.Write(DisplayColumns(labelA, labelB)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, 8)
		record[0] = row.Name
		if r := row.Record; r != nil {
			record[1] = formatCell(finite(r.PValue))
			record[2] = formatCell(finite(r.LogATA))
			record[3] = formatCell(finite(r.LogFC))
			record[4] = formatCell(r.TreatmentAMean)
			record[5] = formatCell(r.TreatmentAMedian)
			record[6] = formatCell(r.TreatmentBMean)
			record[7] = formatCell(r.TreatmentBMedian)
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", row.Name, err)
		}
	}
	out.Flush()
	return out.Error()
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
