// Package report renders conformance results for humans: a compact markdown
// report and a CSV export of group summaries. It contains no decision logic.
package report

import (
	"fmt"
	"strings"

	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/schema"
)

// reported field order for group summaries.
var fieldOrder = []schema.Role{
	schema.RoleHardnessLab,
	schema.RoleHardnessLine,
	schema.RoleYieldStrength,
	schema.RoleTensile,
	schema.RoleElongation,
}

// Markdown renders the full result: headline counts, group summaries with
// verdicts, and the spec-warning list. Undefined statistics render as N/A
// inline, next to the affected group, never as zeros.
func Markdown(res *conformance.Result, title string) string {
	var b strings.Builder
	b.WriteString("[CONFORMANCE SUMMARY]\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", title))
	}
	b.WriteString(fmt.Sprintf("Records: %d\n", len(res.Records)))
	b.WriteString(fmt.Sprintf("Groups: %d\n", len(res.Groups)))

	var ngRecords, insufficient int
	for _, r := range res.Records {
		if r.Flags.NGAny {
			ngRecords++
		}
	}
	for _, g := range res.Groups {
		if g.Insufficient {
			insufficient++
		}
	}
	b.WriteString(fmt.Sprintf("NG records: %d\n", ngRecords))
	if insufficient > 0 {
		b.WriteString(fmt.Sprintf("Insufficient-sample groups: %d\n", insufficient))
	}
	if len(res.Warnings) > 0 {
		b.WriteString(fmt.Sprintf("Spec warnings: %d\n", len(res.Warnings)))
	}

	if len(res.Groups) > 0 {
		b.WriteString("\n[GROUPS]\n")
		for _, g := range res.Groups {
			b.WriteString(fmt.Sprintf("- %s (coils=%d", g.Label, g.NumCoils))
			if g.Insufficient {
				b.WriteString(", insufficient sample)\n")
				continue
			}
			b.WriteString(fmt.Sprintf(", NG coils=%d, verdict=%s)\n", g.OutOfSpecCoils, g.Verdict))
			if g.Range.Valid {
				b.WriteString(fmt.Sprintf("  spec: %.4g~%.4g", g.Range.Min, g.Range.Max))
				if g.Margin != nil {
					b.WriteString(fmt.Sprintf(", margin %.4g", *g.Margin))
				}
				b.WriteString("\n")
			}
			for _, role := range fieldOrder {
				fs, ok := g.Fields[role]
				if !ok {
					continue
				}
				b.WriteString(fmt.Sprintf("  • %s: n=%d, mean %s, std %s, p %s..%s\n",
					role, fs.Count, fmtStat(fs.Mean), fmtStat(fs.Std), fmtStat(fs.PLo), fmtStat(fs.PHi)))
			}
		}
	}

	if len(res.Warnings) > 0 {
		b.WriteString("\n[SPEC WARNINGS]\n")
		for _, w := range res.Warnings {
			b.WriteString(fmt.Sprintf("- coil %s (%s): %q → %s\n",
				safeVal(w.CoilNo), safeVal(w.ProductSpec), w.ToleranceText, w.Reason))
		}
	}
	return b.String()
}

func fmtStat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.4g", *v)
}

func safeVal(s string) string {
	if s == "" {
		return "(unset)"
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
