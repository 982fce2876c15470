package conformance

import (
	"encoding/json"
	"math"

	"github.com/coilforge/coilqa-cli/internal/schema"
)

// PolicyMode selects which verdict policy fills GroupSummary.Verdict.
type PolicyMode string

const (
	PolicyStrict    PolicyMode = "strict"
	PolicyGraduated PolicyMode = "graduated"
	// PolicyFraction grades on the out-of-spec coil fraction instead of the
	// percentile margin; unlike the margin it is defined for every group.
	PolicyFraction PolicyMode = "fraction"
)

// Config carries every knob of one end-to-end analysis pass. All fields are
// optional; zero values use the documented defaults.
type Config struct {
	Aggregate  AggregateOptions
	Policy     PolicyMode
	Thresholds Thresholds
	ELPolicy   ELPolicy
	BinWidth   float64

	// Fraction-policy cutoffs: SAFE when the out-of-spec fraction is at most
	// FracSafeMax, WATCH up to FracWatchMax, RISK above.
	FracSafeMax  float64
	FracWatchMax float64
}

func (c Config) withDefaults() Config {
	if c.Policy == "" {
		c.Policy = PolicyStrict
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = Thresholds{Safe: 7, Watch: 5}
	}
	if c.BinWidth <= 0 {
		c.BinWidth = 1
	}
	if c.FracWatchMax <= 0 {
		c.FracWatchMax = 0.05
	}
	return c
}

// RecordResult is one raw record with its derived, never-persisted fields:
// the parsed range, NG flags, per-channel deltas, and (when the dataset has
// mechanical standards) the mechanical pass determination.
type RecordResult struct {
	schema.Record

	Range Range `json:"range"`
	Flags Flags `json:"flags"`

	DeltaLab  *float64 `json:"delta_lab,omitempty"`
	DeltaLine *float64 `json:"delta_line,omitempty"`

	MechPass *bool `json:"mech_pass,omitempty"`
}

// MarshalJSON flattens the record into snake_case keys and emits absent
// measurements (NaN) as null. Sentinel zeros stay as real zeros: the raw
// records view is the audit surface and must show them.
func (r RecordResult) MarshalJSON() ([]byte, error) {
	type recordJSON struct {
		ProductSpec   string `json:"product_spec"`
		MaterialGrade string `json:"material_grade"`
		RollingType   string `json:"rolling_type,omitempty"`
		CoatingType   string `json:"coating_type,omitempty"`
		CoatingMass   string `json:"coating_mass"`
		OrderGauge    string `json:"order_gauge"`
		QualityCode   string `json:"quality_code"`
		CoilNo        string `json:"coil_no"`
		ToleranceText string `json:"tolerance_text"`

		HardnessLab     *float64 `json:"hardness_lab"`
		HardnessLine    *float64 `json:"hardness_line"`
		YieldStrength   *float64 `json:"yield_strength,omitempty"`
		TensileStrength *float64 `json:"tensile_strength,omitempty"`
		Elongation      *float64 `json:"elongation,omitempty"`

		Range Range `json:"range"`
		Flags Flags `json:"flags"`

		DeltaLab  *float64 `json:"delta_lab,omitempty"`
		DeltaLine *float64 `json:"delta_line,omitempty"`
		MechPass  *bool    `json:"mech_pass,omitempty"`
	}
	return json.Marshal(recordJSON{
		ProductSpec:     r.ProductSpec,
		MaterialGrade:   r.MaterialGrade,
		RollingType:     r.RollingType,
		CoatingType:     r.CoatingType,
		CoatingMass:     r.CoatingMass,
		OrderGauge:      r.OrderGauge,
		QualityCode:     r.QualityCode,
		CoilNo:          r.CoilNo,
		ToleranceText:   r.ToleranceText,
		HardnessLab:     jsonNum(r.HardnessLab),
		HardnessLine:    jsonNum(r.HardnessLine),
		YieldStrength:   jsonNum(r.YieldStrength),
		TensileStrength: jsonNum(r.TensileStrength),
		Elongation:      jsonNum(r.Elongation),
		Range:           r.Range,
		Flags:           r.Flags,
		DeltaLab:        r.DeltaLab,
		DeltaLine:       r.DeltaLine,
		MechPass:        r.MechPass,
	})
}

func jsonNum(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// SpecWarning is a record excluded from scoring because its tolerance range
// is unusable. It is reported, never silently defaulted.
type SpecWarning struct {
	CoilNo        string `json:"coil_no"`
	ProductSpec   string `json:"product_spec"`
	ToleranceText string `json:"tolerance_text"`
	Reason        string `json:"reason"` // invalid_format | inverted_range
}

// Result is the full core output surface consumed by the presentation layer.
type Result struct {
	Records  []RecordResult `json:"records"`
	Groups   []GroupSummary `json:"groups"`
	Warnings []SpecWarning  `json:"warnings"`
}

// Run executes one synchronous end-to-end pass: parse ranges, classify,
// aggregate, and attach verdicts. It is a pure function of the dataset and
// config; one bad record never aborts the rest.
//
// Records with an unparseable range go to Warnings and are excluded from
// scoring and grouping. Inverted ranges (Min > Max) are scored as-is — the
// source's behavior is undefined there, so the condition is additionally
// surfaced as a warning rather than auto-corrected.
func Run(ds *schema.Dataset, cfg Config) *Result {
	cfg = cfg.withDefaults()

	res := &Result{Records: make([]RecordResult, 0, len(ds.Records))}
	var scorable []schema.Record
	var flags []Flags
	var ranges []Range

	for _, rec := range ds.Records {
		rng := ParseRange(rec.ToleranceText)
		rr := RecordResult{Record: rec, Range: rng}
		if !rng.Valid {
			res.Warnings = append(res.Warnings, SpecWarning{
				CoilNo:        rec.CoilNo,
				ProductSpec:   rec.ProductSpec,
				ToleranceText: rec.ToleranceText,
				Reason:        "invalid_format",
			})
			res.Records = append(res.Records, rr)
			continue
		}
		if rng.Inverted() {
			res.Warnings = append(res.Warnings, SpecWarning{
				CoilNo:        rec.CoilNo,
				ProductSpec:   rec.ProductSpec,
				ToleranceText: rec.ToleranceText,
				Reason:        "inverted_range",
			})
		}
		rr.Flags = Classify(rec, rng)
		if d := Margin(rec.HardnessLab, rng); !math.IsNaN(d) {
			rr.DeltaLab = ptr(d)
		}
		if d := Margin(rec.HardnessLine, rng); !math.IsNaN(d) {
			rr.DeltaLine = ptr(d)
		}
		if ds.HasMechStandards {
			if pass, ok := MechConform(rec, cfg.ELPolicy); ok {
				rr.MechPass = &pass
			}
		}
		res.Records = append(res.Records, rr)
		scorable = append(scorable, rec)
		flags = append(flags, rr.Flags)
		ranges = append(ranges, rng)
	}

	res.Groups = Aggregate(scorable, flags, ranges, cfg.Aggregate)
	for i := range res.Groups {
		res.Groups[i].Verdict = groupVerdict(&res.Groups[i], cfg)
	}
	return res
}

// groupVerdict applies the configured policy to one group. Graduated
// verdicts need a defined percentile margin; groups without one (including
// insufficient-sample groups) fall back to the strict determination, which
// is always defined.
func groupVerdict(gs *GroupSummary, cfg Config) Verdict {
	switch cfg.Policy {
	case PolicyGraduated:
		if gs.Margin != nil {
			return GraduatedVerdict(*gs.Margin, cfg.Thresholds)
		}
	case PolicyFraction:
		return FractionVerdict(gs.OutOfSpecFraction, cfg.FracSafeMax, cfg.FracWatchMax)
	}
	return StrictVerdict(gs.OutOfSpecCoils)
}
