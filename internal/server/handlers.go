package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]string{"status": "healthy"})
}

// handleRecords returns the raw table with derived NG flags and deltas.
// Zero-sentinel measurements stay visible here for audit; filtering is the
// chart consumers' concern.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	res, snap, err := s.analyze(r, s.cfg)
	if err != nil {
		respondErr(w, r, errStatus(err), err)
		return
	}
	respondOK(w, r, map[string]any{
		"snapshot_id": snap.ID,
		"fetched_at":  snap.FetchedAt,
		"records":     res.Records,
	})
}

// handleGroups returns group summaries with verdicts. ?policy=strict,
// ?policy=graduated, or ?policy=fraction overrides the configured default
// for this request.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg
	switch p := r.URL.Query().Get("policy"); p {
	case "":
	case string(conformance.PolicyStrict):
		cfg.Policy = conformance.PolicyStrict
	case string(conformance.PolicyGraduated):
		cfg.Policy = conformance.PolicyGraduated
	case string(conformance.PolicyFraction):
		cfg.Policy = conformance.PolicyFraction
	default:
		respondErr(w, r, http.StatusBadRequest, fmt.Errorf("unknown policy %q (use strict|graduated|fraction)", p))
		return
	}
	res, snap, err := s.analyze(r, cfg)
	if err != nil {
		respondErr(w, r, errStatus(err), err)
		return
	}
	respondOK(w, r, map[string]any{
		"snapshot_id": snap.ID,
		"groups":      res.Groups,
	})
}

// handleDistribution returns the histogram and scaled normal overlay for one
// group and field: ?group=<label>&field=<role>[&bin_width=N].
func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("group")
	if label == "" {
		respondErr(w, r, http.StatusBadRequest, fmt.Errorf("missing group parameter"))
		return
	}
	field := schema.Role(r.URL.Query().Get("field"))
	if field == "" {
		field = schema.RoleHardnessLab
	}
	binWidth := s.cfg.BinWidth
	if bw := r.URL.Query().Get("bin_width"); bw != "" {
		f, err := strconv.ParseFloat(bw, 64)
		if err != nil || f <= 0 {
			respondErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid bin_width %q", bw))
			return
		}
		binWidth = f
	}

	res, _, err := s.analyze(r, s.cfg)
	if err != nil {
		respondErr(w, r, errStatus(err), err)
		return
	}
	var group *conformance.GroupSummary
	for i := range res.Groups {
		if res.Groups[i].Label == label {
			group = &res.Groups[i]
			break
		}
	}
	if group == nil {
		respondErr(w, r, http.StatusNotFound, fmt.Errorf("group not found: %s", label))
		return
	}
	if group.Insufficient {
		respondErr(w, r, http.StatusConflict,
			fmt.Errorf("group has insufficient sample (%d coils)", group.NumCoils))
		return
	}

	var values []float64
	for _, rr := range res.Records {
		// Invalid-range records live in the warning view only; letting them
		// feed the histogram would disagree with the group's own stats.
		if !rr.Range.Valid {
			continue
		}
		if key, ok := recordKey(rr.Record, s.cfg.Aggregate.KeyRoles); ok && key == label {
			values = append(values, rr.Record.Measure(field))
		}
	}
	hist := conformance.BuildHistogram(values, binWidth)
	data := map[string]any{
		"group":     group.Label,
		"field":     field,
		"histogram": hist,
	}
	if fit, ok := conformance.FitNormal(values); ok {
		data["fit"] = fit
		data["overlay"] = conformance.HistogramOverlay(fit, hist, 100)
	} else {
		// Too few values or zero spread: the fit is undefined, reported
		// as absent rather than as a degenerate curve.
		data["fit"] = nil
	}
	respondOK(w, r, data)
}

// handleWarnings lists records excluded from scoring (invalid or inverted
// tolerance ranges).
func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.analyze(r, s.cfg)
	if err != nil {
		respondErr(w, r, errStatus(err), err)
		return
	}
	respondOK(w, r, map[string]any{"warnings": res.Warnings})
}

// handleInvalidate clears the cached snapshot and reloads it, returning the
// new snapshot identity.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cache.Refresh(r.Context())
	if err != nil {
		respondErr(w, r, http.StatusBadGateway, err)
		return
	}
	respondOK(w, r, map[string]any{
		"snapshot_id": snap.ID,
		"fetched_at":  snap.FetchedAt,
	})
}

// recordKey rebuilds the group label for one record; mirrors the aggregator's
// labeling so distribution lookups match group listings exactly.
func recordKey(rec schema.Record, keyRoles []schema.Role) (string, bool) {
	if len(keyRoles) == 0 {
		keyRoles = schema.DefaultKeyRoles
	}
	parts := make([]string, 0, len(keyRoles))
	for _, role := range keyRoles {
		v, ok := rec.Key(role)
		if !ok || v == "" {
			return "", false
		}
		parts = append(parts, string(role)+"="+v)
	}
	return strings.Join(parts, " | "), true
}
