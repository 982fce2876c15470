package schema

import "math"

// Record is one coil measurement row after column mapping. It is immutable
// once built; all derived values (NG flags, deltas, verdicts) live outside.
//
// Measured fields use NaN for "cell absent". A value of exactly zero is a
// domain sentinel meaning the channel was not measured for this coil; it is
// kept here so raw/audit views can show it, and excluded downstream by the
// measurement filter.
type Record struct {
	ProductSpec   string
	MaterialGrade string
	RollingType   string
	CoatingType   string
	CoatingMass   string
	OrderGauge    string
	QualityCode   string
	CoilNo        string

	ToleranceText string

	HardnessLab  float64
	HardnessLine float64

	YieldStrength   float64
	TensileStrength float64
	Elongation      float64

	// Mech holds the per-row mechanical standard bounds when the source
	// carries them; nil otherwise. Presence is a dataset-level capability,
	// see Dataset.HasMechStandards.
	Mech *MechBounds
}

// MechBounds are the mechanical standard limits for YS/TS/EL. A NaN bound
// means the source did not supply that limit.
type MechBounds struct {
	YSMin, YSMax float64
	TSMin, TSMax float64
	ELMin, ELMax float64
}

// Key returns the value of an identifying key role. ok is false for roles
// that are not key components.
func (r Record) Key(role Role) (string, bool) {
	switch role {
	case RoleProductSpec:
		return r.ProductSpec, true
	case RoleMaterialGrade:
		return r.MaterialGrade, true
	case RoleRollingType:
		return r.RollingType, true
	case RoleCoatingType:
		return r.CoatingType, true
	case RoleCoatingMass:
		return r.CoatingMass, true
	case RoleOrderGauge:
		return r.OrderGauge, true
	case RoleQualityCode:
		return r.QualityCode, true
	case RoleCoilNo:
		return r.CoilNo, true
	}
	return "", false
}

// Measure returns the value of a measured field role; NaN for roles that are
// not measurements.
func (r Record) Measure(role Role) float64 {
	switch role {
	case RoleHardnessLab:
		return r.HardnessLab
	case RoleHardnessLine:
		return r.HardnessLine
	case RoleYieldStrength:
		return r.YieldStrength
	case RoleTensile:
		return r.TensileStrength
	case RoleElongation:
		return r.Elongation
	}
	return math.NaN()
}

// Dataset is the typed table handed to the conformance core.
type Dataset struct {
	Records []Record

	// Capabilities checked once at load, instead of per-use column sniffing.
	HasMechValues    bool
	HasMechStandards bool
}
