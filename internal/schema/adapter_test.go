package schema

import (
	"errors"
	"math"
	"testing"
)

var fullHeader = []string{
	"Spec", "Steel Grade", "Rolling Type", "Coating Type", "Coating Mass",
	"Order Gauge", "Quality Code", "Coil No", "Hardness Range",
	"Hardness Lab", "Hardness Line",
}

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Coil No", "coil_no"},
		{"  HARDNESS-LAB ", "hardness_lab"},
		{"quality  code", "quality_code"},
		{"ys_min", "ys_min"},
	}
	for _, tc := range cases {
		if got := NormalizeHeader(tc.in); got != tc.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	a := NewAdapter(nil)
	layout, err := a.Resolve(fullHeader)
	if err != nil {
		t.Fatalf("Resolve failed on a complete header: %v", err)
	}
	if i, ok := layout.Col(RoleCoilNo); !ok || i != 7 {
		t.Errorf("coil_no resolved to (%d, %v), want (7, true)", i, ok)
	}
	if i, ok := layout.Col(RoleToleranceRange); !ok || i != 8 {
		t.Errorf("tolerance_range resolved to (%d, %v), want (8, true)", i, ok)
	}
	if _, ok := layout.Col(RoleYieldStrength); ok {
		t.Error("yield_strength is not in this header and must not resolve")
	}
}

func TestResolveMissingRequired(t *testing.T) {
	a := NewAdapter(nil)
	header := []string{"Spec", "Coil No", "Hardness Lab"}
	_, err := a.Resolve(header)
	if err == nil {
		t.Fatal("header without required columns must fail to resolve")
	}
	var mfe *MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatalf("error type = %T, want *MissingFieldError", err)
	}
	found := false
	for _, r := range mfe.Roles {
		if r == RoleToleranceRange {
			found = true
		}
	}
	if !found {
		t.Errorf("missing roles %v must include tolerance_range", mfe.Roles)
	}
}

func TestResolveDuplicateKeepsFirst(t *testing.T) {
	a := NewAdapter(nil)
	header := append(append([]string{}, fullHeader...), "coil_no")
	layout, err := a.Resolve(header)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if i, _ := layout.Col(RoleCoilNo); i != 7 {
		t.Errorf("duplicate header must keep the first occurrence, got col %d", i)
	}
}

func TestDataset(t *testing.T) {
	a := NewAdapter(nil)
	rows := [][]string{
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C001", "56~62", "58.5", "60"},
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C002", "56~62", "0", ""},
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C003", "56~62", "n/a", "61"},
	}
	ds, err := a.Dataset(fullHeader, rows)
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if len(ds.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(ds.Records))
	}
	if ds.HasMechValues || ds.HasMechStandards {
		t.Error("header without YS/TS/EL columns must not claim mech capabilities")
	}

	r0 := ds.Records[0]
	if r0.CoilNo != "C001" || r0.ToleranceText != "56~62" {
		t.Errorf("text cells mis-mapped: %+v", r0)
	}
	if r0.HardnessLab != 58.5 || r0.HardnessLine != 60 {
		t.Errorf("numeric cells = %v/%v, want 58.5/60", r0.HardnessLab, r0.HardnessLine)
	}
	if r0.Mech != nil {
		t.Error("Mech must be nil without standard columns")
	}

	// Zero is preserved as a real sentinel; empty and unparseable become NaN.
	r1 := ds.Records[1]
	if r1.HardnessLab != 0 {
		t.Errorf("explicit zero must survive as 0, got %v", r1.HardnessLab)
	}
	if !math.IsNaN(r1.HardnessLine) {
		t.Errorf("empty cell must be NaN, got %v", r1.HardnessLine)
	}
	if !math.IsNaN(ds.Records[2].HardnessLab) {
		t.Errorf("unparseable cell must be NaN, got %v", ds.Records[2].HardnessLab)
	}
	// Unmapped measures on a short header are absent, not zero.
	if !math.IsNaN(r0.YieldStrength) {
		t.Errorf("unmapped yield_strength must be NaN, got %v", r0.YieldStrength)
	}
}

func TestDatasetShortRow(t *testing.T) {
	a := NewAdapter(nil)
	rows := [][]string{
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C001"},
	}
	ds, err := a.Dataset(fullHeader, rows)
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	r := ds.Records[0]
	if r.ToleranceText != "" {
		t.Errorf("cell past row end must read empty, got %q", r.ToleranceText)
	}
	if !math.IsNaN(r.HardnessLab) {
		t.Errorf("numeric cell past row end must be NaN, got %v", r.HardnessLab)
	}
}

func TestDatasetMechStandards(t *testing.T) {
	header := append(append([]string{}, fullHeader...),
		"YS", "TS", "EL", "YS Min", "YS Max", "TS Min", "TS Max", "EL Min", "EL Max")
	rows := [][]string{
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C001", "56~62", "58", "60",
			"250", "400", "38", "200", "300", "350", "450", "30", ""},
	}
	ds, err := NewAdapter(nil).Dataset(header, rows)
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if !ds.HasMechValues || !ds.HasMechStandards {
		t.Fatal("header with YS/TS/EL and standard columns must set both capabilities")
	}
	r := ds.Records[0]
	if r.Mech == nil {
		t.Fatal("record must carry mech bounds")
	}
	if r.Mech.YSMin != 200 || r.Mech.TSMax != 450 || r.Mech.ELMin != 30 {
		t.Errorf("bounds mis-mapped: %+v", r.Mech)
	}
	if !math.IsNaN(r.Mech.ELMax) {
		t.Errorf("empty EL Max bound must be NaN, got %v", r.Mech.ELMax)
	}
	if r.YieldStrength != 250 || r.Elongation != 38 {
		t.Errorf("mech values mis-mapped: YS=%v EL=%v", r.YieldStrength, r.Elongation)
	}
}
