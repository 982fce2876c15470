package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/schema"
	"github.com/coilforge/coilqa-cli/internal/source"
)

var testHeader = []string{
	"spec", "steel_grade", "rolling_type", "coating_type", "coating_mass",
	"order_gauge", "quality_code", "coil_no", "hardness_range",
	"hardness_lab", "hardness_line",
}

func testRows() [][]string {
	return [][]string{
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C001", "56~62", "58", "60"},
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C002", "56~62", "63", "60"},
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C003", "56~62", "59", "0"},
		{"SP-2", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C004", "abc", "58", "60"},
		{"SP-1", "SGCC", "CR", "GI", "Z120", "0.8", "Q1", "C005", "bad", "99", "99"},
	}
}

func testServer(t *testing.T, cfg conformance.Config) *Server {
	t.Helper()
	cache := source.NewCache("", "test", func(ctx context.Context) (*source.Table, error) {
		return &source.Table{Header: testHeader, Rows: testRows()}, nil
	})
	return New(cache, schema.NewAdapter(nil), cfg)
}

func defaultTestConfig() conformance.Config {
	return conformance.Config{
		Aggregate: conformance.AggregateOptions{
			KeyRoles:     []schema.Role{schema.RoleProductSpec},
			MinGroupSize: 1,
		},
	}
}

type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

func doGet(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s: %v\nbody: %s", path, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	rec, env := doGet(t, testServer(t, defaultTestConfig()), "/health")
	if rec.Code != http.StatusOK || env.Msg != "ok" {
		t.Fatalf("health = %d %q", rec.Code, env.Msg)
	}
}

func TestRecords(t *testing.T) {
	rec, env := doGet(t, testServer(t, defaultTestConfig()), "/api/records")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		SnapshotID string                     `json:"snapshot_id"`
		Records    []conformance.RecordResult `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.SnapshotID == "" {
		t.Error("response must carry the snapshot id")
	}
	if len(data.Records) != 5 {
		t.Fatalf("got %d records, want all 5 raw rows", len(data.Records))
	}
	if !data.Records[1].Flags.NGAny {
		t.Error("coil C002 (63 against 56~62) must be flagged NG")
	}
}

func TestGroups(t *testing.T) {
	_, env := doGet(t, testServer(t, defaultTestConfig()), "/api/groups")
	var data struct {
		Groups []conformance.GroupSummary `json:"groups"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Groups) != 1 {
		t.Fatalf("got %d groups, want 1 (invalid-spec coil excluded)", len(data.Groups))
	}
	g := data.Groups[0]
	if g.Label != "product_spec=SP-1" || g.Verdict != conformance.VerdictFail {
		t.Fatalf("group = %s verdict %s, want SP-1 FAIL", g.Label, g.Verdict)
	}
}

func TestGroupsPolicyOverride(t *testing.T) {
	s := testServer(t, defaultTestConfig())

	rec, _ := doGet(t, s, "/api/groups?policy=strict")
	if rec.Code != http.StatusOK {
		t.Fatalf("explicit strict policy rejected: %d", rec.Code)
	}
	rec, env := doGet(t, s, "/api/groups?policy=fraction")
	if rec.Code != http.StatusOK {
		t.Fatalf("fraction policy rejected: %d", rec.Code)
	}
	var data struct {
		Groups []conformance.GroupSummary `json:"groups"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	// SP-1 has 1 NG coil of 3 (0.33): above the default 0.05 watch cutoff.
	if data.Groups[0].Verdict != conformance.VerdictRisk {
		t.Fatalf("fraction verdict = %s, want RISK", data.Groups[0].Verdict)
	}
	rec, env = doGet(t, s, "/api/groups?policy=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown policy: status %d, want 400", rec.Code)
	}
	if env.Msg == "" {
		t.Error("error envelope must carry a message")
	}
}

func TestWarnings(t *testing.T) {
	_, env := doGet(t, testServer(t, defaultTestConfig()), "/api/warnings")
	var data struct {
		Warnings []conformance.SpecWarning `json:"warnings"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2", len(data.Warnings))
	}
	w := data.Warnings[0]
	if w.CoilNo != "C004" || w.Reason != "invalid_format" {
		t.Fatalf("warning = %+v, want C004 invalid_format", w)
	}
	if data.Warnings[1].CoilNo != "C005" {
		t.Fatalf("warning = %+v, want C005", data.Warnings[1])
	}
}

func TestDistribution(t *testing.T) {
	s := testServer(t, defaultTestConfig())

	rec, env := doGet(t, s, "/api/distribution?group=product_spec%3DSP-1&field=hardness_lab")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Histogram conformance.Histogram  `json:"histogram"`
		Fit       *conformance.NormalFit `json:"fit"`
		Overlay   []conformance.Point    `json:"overlay"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	total := 0
	for _, b := range data.Histogram.Bins {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("histogram binned %d values, want 3 plottable lab readings", total)
	}
	if data.Fit == nil || data.Fit.N != 3 {
		t.Errorf("fit = %+v, want N=3", data.Fit)
	}
	if len(data.Overlay) == 0 {
		t.Error("defined fit must come with an overlay")
	}
}

func TestDistributionExcludesInvalidSpecRecords(t *testing.T) {
	// Coil C005 shares the SP-1 key but its tolerance text never parsed: its
	// 99 reading belongs to the warning view, not the group's distribution.
	s := testServer(t, defaultTestConfig())
	_, env := doGet(t, s, "/api/distribution?group=product_spec%3DSP-1&field=hardness_lab")
	var data struct {
		Histogram conformance.Histogram  `json:"histogram"`
		Fit       *conformance.NormalFit `json:"fit"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	total := 0
	for _, b := range data.Histogram.Bins {
		total += b.Count
		if b.Lo >= 90 && b.Count > 0 {
			t.Errorf("bin [%g,%g) holds the invalid-spec coil's reading", b.Lo, b.Hi)
		}
	}
	if total != 3 {
		t.Errorf("histogram binned %d values, want 3 scorable lab readings", total)
	}
	if data.Fit != nil && data.Fit.N != 3 {
		t.Errorf("fit N = %d, want 3", data.Fit.N)
	}
}

func TestDistributionSentinelsExcluded(t *testing.T) {
	// hardness_line has values 60, 60, 0: the sentinel is excluded and the
	// remaining pair has zero spread, so the fit is undefined.
	s := testServer(t, defaultTestConfig())
	_, env := doGet(t, s, "/api/distribution?group=product_spec%3DSP-1&field=hardness_line")
	var data struct {
		Histogram conformance.Histogram  `json:"histogram"`
		Fit       *conformance.NormalFit `json:"fit"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	total := 0
	for _, b := range data.Histogram.Bins {
		total += b.Count
	}
	if total != 2 {
		t.Errorf("histogram binned %d values, want 2 (zero sentinel excluded)", total)
	}
	if data.Fit != nil {
		t.Errorf("zero-spread fit must be reported absent, got %+v", data.Fit)
	}
}

func TestDistributionErrors(t *testing.T) {
	s := testServer(t, defaultTestConfig())

	if rec, _ := doGet(t, s, "/api/distribution"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing group: status %d, want 400", rec.Code)
	}
	if rec, _ := doGet(t, s, "/api/distribution?group=nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown group: status %d, want 404", rec.Code)
	}
	if rec, _ := doGet(t, s, "/api/distribution?group=product_spec%3DSP-1&bin_width=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid bin_width: status %d, want 400", rec.Code)
	}

	gated := defaultTestConfig()
	gated.Aggregate.MinGroupSize = 30
	if rec, _ := doGet(t, testServer(t, gated), "/api/distribution?group=product_spec%3DSP-1"); rec.Code != http.StatusConflict {
		t.Errorf("insufficient group: status %d, want 409", rec.Code)
	}
}

func TestInvalidate(t *testing.T) {
	s := testServer(t, defaultTestConfig())
	_, first := doGet(t, s, "/api/records")
	var a struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := json.Unmarshal(first.Data, &a); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("invalidate status = %d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var b struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := json.Unmarshal(env.Data, &b); err != nil {
		t.Fatal(err)
	}
	if b.SnapshotID == "" || b.SnapshotID == a.SnapshotID {
		t.Fatalf("invalidate must install a new snapshot: %s vs %s", a.SnapshotID, b.SnapshotID)
	}
}

func TestSchemaErrorMapsTo422(t *testing.T) {
	cache := source.NewCache("", "test", func(ctx context.Context) (*source.Table, error) {
		return &source.Table{Header: []string{"unrelated"}, Rows: nil}, nil
	})
	s := New(cache, schema.NewAdapter(nil), defaultTestConfig())
	rec, _ := doGet(t, s, "/api/groups")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing required columns: status %d, want 422", rec.Code)
	}
}
