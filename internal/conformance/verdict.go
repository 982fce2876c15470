package conformance

import "fmt"

// Verdict is the qualitative decision for a group. Strict policy yields
// PASS/FAIL; the graduated policy yields SAFE/WATCH/RISK.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictFail  Verdict = "FAIL"
	VerdictSafe  Verdict = "SAFE"
	VerdictWatch Verdict = "WATCH"
	VerdictRisk  Verdict = "RISK"
)

// StrictVerdict applies the one-strike-fails rule: FAIL if any distinct coil
// in the group carries an NG flag, PASS otherwise. A group with zero
// qualifying coils is PASS by vacuous truth. This is the core business rule
// of the system and is deliberately independent of group size — it must not
// be diluted into an average-based rule.
func StrictVerdict(outOfSpecCoils int) Verdict {
	if outOfSpecCoils > 0 {
		return VerdictFail
	}
	return VerdictPass
}

// Thresholds configure the graduated policy. Safe must exceed Watch; the
// cutoffs are a deliberate policy dimension and differ between dashboards
// (e.g. 7/5 HRB margin), so they are never hardcoded.
type Thresholds struct {
	Safe  float64 `json:"safe"`
	Watch float64 `json:"watch"`
}

// Validate rejects threshold pairs that cannot order the three tiers.
func (t Thresholds) Validate() error {
	if t.Safe <= t.Watch {
		return fmt.Errorf("graduated thresholds: safe (%g) must be greater than watch (%g)", t.Safe, t.Watch)
	}
	return nil
}

// GraduatedVerdict maps a scalar margin m (larger is better, e.g. ΔH in HRB)
// to a tier: SAFE when m ≥ Safe, WATCH when Watch ≤ m < Safe, RISK below.
func GraduatedVerdict(m float64, t Thresholds) Verdict {
	switch {
	case m >= t.Safe:
		return VerdictSafe
	case m >= t.Watch:
		return VerdictWatch
	default:
		return VerdictRisk
	}
}

// FractionVerdict is the graduated policy over an out-of-spec fraction,
// where smaller is better: SAFE when frac ≤ safeMax (typically 0), WATCH
// when frac ≤ watchMax (typically 0.05), RISK above.
func FractionVerdict(frac, safeMax, watchMax float64) Verdict {
	switch {
	case frac <= safeMax:
		return VerdictSafe
	case frac <= watchMax:
		return VerdictWatch
	default:
		return VerdictRisk
	}
}
