package conformance

import "math"

// Plottable reports whether a measurement may feed charts, histograms, and
// descriptive statistics. A value is plottable iff it is present (not NaN)
// and strictly greater than zero: zero is the domain sentinel for "channel
// not measured on this coil" (e.g. a coil measured at LAB but not at LINE)
// and must never be read as a real 0 HRB. Raw/tabular views are not filtered.
func Plottable(v float64) bool {
	return !math.IsNaN(v) && v > 0
}

// PlottableSeries returns the plottable subset of values, preserving order.
// The input slice is never modified.
func PlottableSeries(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if Plottable(v) {
			out = append(out, v)
		}
	}
	return out
}
