package schema

import "strings"

// Role is the canonical name of a column in the coil measurement table.
// The source spreadsheet uses mixed-language, inconsistently cased headers;
// everything downstream of the adapter speaks in roles only.
type Role string

const (
	RoleProductSpec    Role = "product_spec"
	RoleMaterialGrade  Role = "material_grade"
	RoleRollingType    Role = "rolling_type"
	RoleCoatingType    Role = "coating_type"
	RoleCoatingMass    Role = "coating_mass"
	RoleOrderGauge     Role = "order_gauge"
	RoleQualityCode    Role = "quality_code"
	RoleCoilNo         Role = "coil_no"
	RoleToleranceRange Role = "tolerance_range"
	RoleHardnessLab    Role = "hardness_lab"
	RoleHardnessLine   Role = "hardness_line"
	RoleYieldStrength  Role = "yield_strength"
	RoleTensile        Role = "tensile_strength"
	RoleElongation     Role = "elongation"
	RoleYSMin          Role = "ys_min"
	RoleYSMax          Role = "ys_max"
	RoleTSMin          Role = "ts_min"
	RoleTSMax          Role = "ts_max"
	RoleELMin          Role = "el_min"
	RoleELMax          Role = "el_max"
)

// RequiredRoles are the columns every view depends on. An unresolved required
// role fails at load time, not deep inside a computation.
var RequiredRoles = []Role{
	RoleProductSpec,
	RoleMaterialGrade,
	RoleCoatingMass,
	RoleOrderGauge,
	RoleQualityCode,
	RoleCoilNo,
	RoleToleranceRange,
	RoleHardnessLab,
	RoleHardnessLine,
}

// DefaultKeyRoles is the identifying key tuple used for grouping, in canonical
// key-column order.
var DefaultKeyRoles = []Role{
	RoleProductSpec,
	RoleMaterialGrade,
	RoleRollingType,
	RoleCoatingType,
	RoleCoatingMass,
	RoleOrderGauge,
	RoleQualityCode,
}

// Mapping maps normalized source header names to canonical roles.
type Mapping map[string]Role

// DefaultMapping covers the header spellings observed across the source
// spreadsheet variants (English, abbreviated, and legacy export forms).
func DefaultMapping() Mapping {
	return Mapping{
		"spec":             RoleProductSpec,
		"spec_code":        RoleProductSpec,
		"product_spec":     RoleProductSpec,
		"steel_grade":      RoleMaterialGrade,
		"material_grade":   RoleMaterialGrade,
		"grade":            RoleMaterialGrade,
		"rolling_type":     RoleRollingType,
		"rolling":          RoleRollingType,
		"coating_type":     RoleCoatingType,
		"metallic_coating": RoleCoatingType,
		"coating_mass":     RoleCoatingMass,
		"coating_weight":   RoleCoatingMass,
		"order_gauge":      RoleOrderGauge,
		"gauge":            RoleOrderGauge,
		"thickness":        RoleOrderGauge,
		"quality_code":     RoleQualityCode,
		"quality":          RoleQualityCode,
		"coil_no":          RoleCoilNo,
		"coil":             RoleCoilNo,
		"coil_id":          RoleCoilNo,
		"hardness_range":   RoleToleranceRange,
		"tolerance_range":  RoleToleranceRange,
		"spec_range":       RoleToleranceRange,
		"hardness_lab":     RoleHardnessLab,
		"hrb_lab":          RoleHardnessLab,
		"hardness_line":    RoleHardnessLine,
		"hrb_line":         RoleHardnessLine,
		"yield_strength":   RoleYieldStrength,
		"ys":               RoleYieldStrength,
		"yp":               RoleYieldStrength,
		"tensile_strength": RoleTensile,
		"ts":               RoleTensile,
		"elongation":       RoleElongation,
		"el":               RoleElongation,
		"ys_min":           RoleYSMin,
		"ys_max":           RoleYSMax,
		"ts_min":           RoleTSMin,
		"ts_max":           RoleTSMax,
		"el_min":           RoleELMin,
		"el_max":           RoleELMax,
	}
}

// NormalizeHeader collapses a raw header cell to the lookup form used by
// Mapping: trimmed, lowercased, spaces and dashes folded to underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return h
}
