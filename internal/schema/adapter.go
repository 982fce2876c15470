package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// MissingFieldError reports required roles that could not be resolved from
// the source header. It is fatal for the affected view.
type MissingFieldError struct {
	Roles []Role
}

func (e *MissingFieldError) Error() string {
	names := make([]string, len(e.Roles))
	for i, r := range e.Roles {
		names[i] = string(r)
	}
	return fmt.Sprintf("missing required field(s): %s", strings.Join(names, ", "))
}

// Adapter resolves a source header against a declared column mapping and
// builds typed records. One Adapter is safe for reuse across loads.
type Adapter struct {
	mapping Mapping
}

// NewAdapter returns an adapter using the given mapping, or DefaultMapping
// when nil.
func NewAdapter(m Mapping) *Adapter {
	if m == nil {
		m = DefaultMapping()
	}
	return &Adapter{mapping: m}
}

// Layout is the resolved role → column index table for one header.
type Layout struct {
	cols map[Role]int
}

// Col returns the column index for a role and whether it resolved.
func (l *Layout) Col(role Role) (int, bool) {
	i, ok := l.cols[role]
	return i, ok
}

// Resolve maps the header once and validates that every required role is
// present. Duplicate headers keep the first occurrence.
func (a *Adapter) Resolve(header []string) (*Layout, error) {
	cols := make(map[Role]int)
	for i, h := range header {
		role, ok := a.mapping[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := cols[role]; seen {
			continue
		}
		cols[role] = i
	}
	var missing []Role
	for _, r := range RequiredRoles {
		if _, ok := cols[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Roles: missing}
	}
	return &Layout{cols: cols}, nil
}

// Dataset resolves the header and converts every row into a typed Record.
// Cell-level problems (unparseable numbers) degrade to "absent" for that
// cell; they never drop the record or abort the load.
func (a *Adapter) Dataset(header []string, rows [][]string) (*Dataset, error) {
	layout, err := a.Resolve(header)
	if err != nil {
		return nil, err
	}

	_, hasYS := layout.Col(RoleYieldStrength)
	_, hasTS := layout.Col(RoleTensile)
	_, hasEL := layout.Col(RoleElongation)
	hasMechValues := hasYS && hasTS && hasEL

	_, hasYSMin := layout.Col(RoleYSMin)
	_, hasYSMax := layout.Col(RoleYSMax)
	_, hasTSMin := layout.Col(RoleTSMin)
	_, hasTSMax := layout.Col(RoleTSMax)
	_, hasELMin := layout.Col(RoleELMin)
	hasMechStandards := hasYSMin && hasYSMax && hasTSMin && hasTSMax && hasELMin

	ds := &Dataset{
		Records:          make([]Record, 0, len(rows)),
		HasMechValues:    hasMechValues,
		HasMechStandards: hasMechStandards,
	}
	for _, row := range rows {
		rec := Record{
			ProductSpec:     textCell(row, layout, RoleProductSpec),
			MaterialGrade:   textCell(row, layout, RoleMaterialGrade),
			RollingType:     textCell(row, layout, RoleRollingType),
			CoatingType:     textCell(row, layout, RoleCoatingType),
			CoatingMass:     textCell(row, layout, RoleCoatingMass),
			OrderGauge:      textCell(row, layout, RoleOrderGauge),
			QualityCode:     textCell(row, layout, RoleQualityCode),
			CoilNo:          textCell(row, layout, RoleCoilNo),
			ToleranceText:   textCell(row, layout, RoleToleranceRange),
			HardnessLab:     numCell(row, layout, RoleHardnessLab),
			HardnessLine:    numCell(row, layout, RoleHardnessLine),
			YieldStrength:   numCell(row, layout, RoleYieldStrength),
			TensileStrength: numCell(row, layout, RoleTensile),
			Elongation:      numCell(row, layout, RoleElongation),
		}
		if hasMechStandards {
			rec.Mech = &MechBounds{
				YSMin: numCell(row, layout, RoleYSMin),
				YSMax: numCell(row, layout, RoleYSMax),
				TSMin: numCell(row, layout, RoleTSMin),
				TSMax: numCell(row, layout, RoleTSMax),
				ELMin: numCell(row, layout, RoleELMin),
				ELMax: numCell(row, layout, RoleELMax),
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func textCell(row []string, l *Layout, role Role) string {
	i, ok := l.Col(role)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// numCell parses a numeric cell; empty or unparseable cells become NaN
// ("absent"), never zero — zero is a real sentinel the filter must see.
func numCell(row []string, l *Layout, role Role) float64 {
	i, ok := l.Col(role)
	if !ok || i >= len(row) {
		return math.NaN()
	}
	v := strings.TrimSpace(row[i])
	if v == "" {
		return math.NaN()
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return f
}
