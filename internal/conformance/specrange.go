// Package conformance implements the spec-conformance and variability engine:
// tolerance-range parsing, strict per-coil pass/fail classification, grouped
// descriptive statistics, tiered verdicts, and normal-density overlays.
//
// Every function here is pure: identical inputs always produce identical
// outputs, and nothing mutates its arguments.
package conformance

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// rangePattern accepts "<number>~<number>" with optional surrounding
// whitespace. Numbers are unsigned decimals with an optional fractional part.
var rangePattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*~\s*([0-9]+(?:\.[0-9]+)?)\s*$`)

// Range is a parsed tolerance range (LSL/USL). An invalid range carries NaN
// bounds and must never participate in scoring or statistics; it is routed to
// the spec-warning view instead.
type Range struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

// ParseRange parses tolerance-range text into bounds. Any deviation from the
// expected syntax (wrong separator, signs, non-numeric tokens, empty input)
// yields Valid=false. No ordering check is applied: an inverted range from
// the source propagates as-is and is surfaced via Inverted.
func ParseRange(text string) Range {
	m := rangePattern.FindStringSubmatch(text)
	if m == nil {
		return Range{Min: math.NaN(), Max: math.NaN()}
	}
	lo, err1 := strconv.ParseFloat(m[1], 64)
	hi, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Range{Min: math.NaN(), Max: math.NaN()}
	}
	return Range{Min: lo, Max: hi, Valid: true}
}

// MarshalJSON emits NaN bounds (invalid ranges) as null; encoding/json has
// no representation for NaN.
func (r Range) MarshalJSON() ([]byte, error) {
	type rangeJSON struct {
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
		Valid bool     `json:"valid"`
	}
	out := rangeJSON{Valid: r.Valid}
	if !math.IsNaN(r.Min) {
		out.Min = &r.Min
	}
	if !math.IsNaN(r.Max) {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

// Inverted reports a valid range whose Min exceeds Max. This is a
// data-quality condition to surface, not to auto-correct.
func (r Range) Inverted() bool {
	return r.Valid && r.Min > r.Max
}

// Contains reports whether v lies inside the inclusive [Min, Max] bounds.
// False for invalid ranges.
func (r Range) Contains(v float64) bool {
	return r.Valid && v >= r.Min && v <= r.Max
}
