package conformance

import (
	"math"

	"github.com/coilforge/coilqa-cli/internal/schema"
)

// Flags carries the per-record NG ("no good") determination for the two
// hardness channels. An absent or sentinel-zero channel never contributes an
// NG flag: absence is never a failure.
type Flags struct {
	NGLab  bool `json:"ng_lab"`
	NGLine bool `json:"ng_line"`
	NGAny  bool `json:"ng_any"`
}

// Classify evaluates one record against a valid tolerance range. The caller
// must route records with invalid ranges to the spec-warning collection
// instead; classification is undefined for them and Classify returns zero
// Flags.
func Classify(rec schema.Record, rng Range) Flags {
	if !rng.Valid {
		return Flags{}
	}
	var f Flags
	if Plottable(rec.HardnessLab) {
		f.NGLab = rec.HardnessLab < rng.Min || rec.HardnessLab > rng.Max
	}
	if Plottable(rec.HardnessLine) {
		f.NGLine = rec.HardnessLine < rng.Min || rec.HardnessLine > rng.Max
	}
	f.NGAny = f.NGLab || f.NGLine
	return f
}

// Margin is the distance from v to the nearest tolerance bound, positive
// inside the range and negative outside. NaN when the value is not plottable
// or the range is invalid.
func Margin(v float64, rng Range) float64 {
	if !rng.Valid || !Plottable(v) {
		return math.NaN()
	}
	return math.Min(v-rng.Min, rng.Max-v)
}

// ELPolicy selects how the elongation bound is enforced for mechanical
// conformance. Source variants disagree; both are kept as explicit policies.
type ELPolicy int

const (
	// ELTwoSided checks EL against both its lower and, when supplied, its
	// upper bound. This is the complete behavior and the default.
	ELTwoSided ELPolicy = iota
	// ELLowerOnly checks EL against its lower bound only (legacy variant).
	ELLowerOnly
)

// MechConform evaluates mechanical conformance: YS and TS inside their
// inclusive [min, max] bounds and EL per the selected policy. ok is false
// when a needed value or bound is absent — the result is then undefined,
// not a failure.
func MechConform(rec schema.Record, pol ELPolicy) (pass, ok bool) {
	b := rec.Mech
	if b == nil {
		return false, false
	}
	if !Plottable(rec.YieldStrength) || !Plottable(rec.TensileStrength) || !Plottable(rec.Elongation) {
		return false, false
	}
	if anyNaN(b.YSMin, b.YSMax, b.TSMin, b.TSMax, b.ELMin) {
		return false, false
	}
	pass = rec.YieldStrength >= b.YSMin && rec.YieldStrength <= b.YSMax &&
		rec.TensileStrength >= b.TSMin && rec.TensileStrength <= b.TSMax &&
		rec.Elongation >= b.ELMin
	if pass && pol == ELTwoSided && !math.IsNaN(b.ELMax) {
		pass = rec.Elongation <= b.ELMax
	}
	return pass, true
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
