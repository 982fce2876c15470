package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/coilforge/coilqa-cli/internal/conformance"
)

// WriteGroupsCSV exports group summaries for spreadsheet consumers. Undefined
// statistics are written as N/A so they cannot be mistaken for zeros.
func WriteGroupsCSV(w io.Writer, groups []conformance.GroupSummary) error {
	cw := csv.NewWriter(w)
	header := []string{"group", "num_coils", "num_rows", "insufficient", "spec_min", "spec_max",
		"out_of_spec_coils", "out_of_spec_fraction", "margin", "verdict"}
	for _, role := range fieldOrder {
		header = append(header,
			string(role)+"_count", string(role)+"_mean", string(role)+"_std",
			string(role)+"_p_lo", string(role)+"_p_hi")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, g := range groups {
		row := []string{
			g.Label,
			strconv.Itoa(g.NumCoils),
			strconv.Itoa(g.NumRows),
			strconv.FormatBool(g.Insufficient),
			csvFloat(g.Range.Min, g.Range.Valid),
			csvFloat(g.Range.Max, g.Range.Valid),
			strconv.Itoa(g.OutOfSpecCoils),
			strconv.FormatFloat(g.OutOfSpecFraction, 'g', -1, 64),
			csvStat(g.Margin),
			string(g.Verdict),
		}
		for _, role := range fieldOrder {
			fs, ok := g.Fields[role]
			if !ok {
				row = append(row, "0", "N/A", "N/A", "N/A", "N/A")
				continue
			}
			row = append(row, strconv.Itoa(fs.Count),
				csvStat(fs.Mean), csvStat(fs.Std), csvStat(fs.PLo), csvStat(fs.PHi))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write group %s: %w", g.Label, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvStat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func csvFloat(v float64, ok bool) string {
	if !ok {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
