package conformance

import (
	"math"
	"sort"
	"strings"

	"github.com/coilforge/coilqa-cli/internal/schema"
)

// AggregateOptions parameterizes grouping. Zero values fall back to the
// documented defaults so callers only set what they override.
type AggregateOptions struct {
	// KeyRoles is the identifying key tuple, in key-column order.
	KeyRoles []schema.Role
	// MeasureRoles are the fields to summarize per group.
	MeasureRoles []schema.Role
	// MinGroupSize gates statistical views; groups below it are flagged
	// InsufficientSample, listed with their size but carry no statistics.
	MinGroupSize int
	// PercentileLo and PercentileHi are the reported percentile levels.
	PercentileLo float64
	PercentileHi float64
}

func (o AggregateOptions) withDefaults() AggregateOptions {
	if len(o.KeyRoles) == 0 {
		o.KeyRoles = schema.DefaultKeyRoles
	}
	if len(o.MeasureRoles) == 0 {
		o.MeasureRoles = []schema.Role{
			schema.RoleHardnessLab,
			schema.RoleHardnessLine,
			schema.RoleYieldStrength,
			schema.RoleTensile,
			schema.RoleElongation,
		}
	}
	if o.MinGroupSize <= 0 {
		o.MinGroupSize = 30
	}
	if o.PercentileLo <= 0 {
		o.PercentileLo = 0.10
	}
	if o.PercentileHi <= 0 {
		o.PercentileHi = 0.90
	}
	return o
}

// FieldStats summarizes one measured field inside a group. Undefined
// statistics are nil, never zero: stdev needs at least 2 plottable values,
// percentiles need at least 3.
type FieldStats struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean,omitempty"`
	Std   *float64 `json:"std,omitempty"`
	PLo   *float64 `json:"p_lo,omitempty"`
	PHi   *float64 `json:"p_hi,omitempty"`
}

// GroupSummary is the aggregate view of one identifying-key combination.
type GroupSummary struct {
	// Key holds the key tuple values in key-column order; Label is the
	// human-readable "role=value | ..." form.
	Key   []string `json:"key"`
	Label string   `json:"label"`

	Range    Range `json:"range"`
	NumCoils int   `json:"num_coils"`
	NumRows  int   `json:"num_rows"`

	// Insufficient marks groups below the minimum sample size. They stay
	// listed for transparency but carry no Fields or Margin.
	Insufficient bool `json:"insufficient"`

	OutOfSpecCoils    int     `json:"out_of_spec_coils"`
	OutOfSpecFraction float64 `json:"out_of_spec_fraction"`

	Fields map[schema.Role]FieldStats `json:"fields,omitempty"`

	// Margin is the percentile-based safety margin: the smallest distance
	// from the reported percentile band of either hardness channel to its
	// tolerance bound. Negative when the band crosses a bound; nil when no
	// channel has defined percentiles.
	Margin *float64 `json:"margin,omitempty"`

	Verdict Verdict `json:"verdict,omitempty"`
}

// Aggregate groups records by exact equality of the key tuple and computes
// per-field descriptive statistics. records and flags are parallel slices;
// ranges[i] must be the parsed (valid) tolerance range of records[i] —
// invalid-range records belong to the warning view and must not be passed
// here. Records with an empty value in any key column are excluded from
// grouping, never coerced to a sentinel key.
//
// NumCoils counts distinct coil identifiers, so re-measured coils are not
// double counted — in the row counts, in the out-of-spec counts, or in the
// strict verdict downstream.
func Aggregate(records []schema.Record, flags []Flags, ranges []Range, opts AggregateOptions) []GroupSummary {
	opts = opts.withDefaults()

	type acc struct {
		key     []string
		rng     Range
		rows    int
		coils   map[string]struct{}
		ngCoils map[string]struct{}
		values  map[schema.Role][]float64
	}
	groups := make(map[string]*acc)

	for i, rec := range records {
		key, ok := keyTuple(rec, opts.KeyRoles)
		if !ok {
			continue
		}
		mk := strings.Join(key, "\x1f")
		ga := groups[mk]
		if ga == nil {
			ga = &acc{
				key:     key,
				rng:     ranges[i],
				coils:   make(map[string]struct{}),
				ngCoils: make(map[string]struct{}),
				values:  make(map[schema.Role][]float64),
			}
			groups[mk] = ga
		}
		ga.rows++
		ga.coils[rec.CoilNo] = struct{}{}
		if flags[i].NGAny {
			ga.ngCoils[rec.CoilNo] = struct{}{}
		}
		for _, role := range opts.MeasureRoles {
			if v := rec.Measure(role); Plottable(v) {
				ga.values[role] = append(ga.values[role], v)
			}
		}
	}

	out := make([]GroupSummary, 0, len(groups))
	for _, ga := range groups {
		gs := GroupSummary{
			Key:            ga.key,
			Label:          keyLabel(opts.KeyRoles, ga.key),
			Range:          ga.rng,
			NumCoils:       len(ga.coils),
			NumRows:        ga.rows,
			OutOfSpecCoils: len(ga.ngCoils),
		}
		if gs.NumCoils > 0 {
			gs.OutOfSpecFraction = float64(gs.OutOfSpecCoils) / float64(gs.NumCoils)
		}
		if gs.NumCoils < opts.MinGroupSize {
			gs.Insufficient = true
			out = append(out, gs)
			continue
		}
		gs.Fields = make(map[schema.Role]FieldStats, len(opts.MeasureRoles))
		for _, role := range opts.MeasureRoles {
			vals := ga.values[role]
			if len(vals) == 0 {
				continue
			}
			gs.Fields[role] = fieldStats(vals, opts.PercentileLo, opts.PercentileHi)
		}
		gs.Margin = percentileMargin(gs.Fields, ga.rng)
		out = append(out, gs)
	}

	// Canonical order: NumCoils descending, ties by key tuple lexicographic.
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumCoils != out[j].NumCoils {
			return out[i].NumCoils > out[j].NumCoils
		}
		return lessTuple(out[i].Key, out[j].Key)
	})
	return out
}

func keyTuple(rec schema.Record, roles []schema.Role) ([]string, bool) {
	key := make([]string, len(roles))
	for i, role := range roles {
		v, ok := rec.Key(role)
		if !ok || v == "" {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

func keyLabel(roles []schema.Role, key []string) string {
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role) + "=" + key[i]
	}
	return strings.Join(parts, " | ")
}

func lessTuple(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// fieldStats computes mean, sample stdev (n-1 denominator), and percentiles
// for one value series. Mean uses the Welford update so long series stay
// numerically stable.
func fieldStats(vals []float64, pLo, pHi float64) FieldStats {
	fs := FieldStats{Count: len(vals)}
	var n int
	var mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	fs.Mean = ptr(mean)
	if n > 1 {
		fs.Std = ptr(math.Sqrt(m2 / float64(n-1)))
	}
	if n > 2 {
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		fs.PLo = ptr(Quantile(sorted, pLo))
		fs.PHi = ptr(Quantile(sorted, pHi))
	}
	return fs
}

// percentileMargin derives the group safety margin from the hardness
// channels: min over channels of (PLo − LSL, USL − PHi).
func percentileMargin(fields map[schema.Role]FieldStats, rng Range) *float64 {
	if !rng.Valid {
		return nil
	}
	margin := math.Inf(1)
	found := false
	for _, role := range []schema.Role{schema.RoleHardnessLab, schema.RoleHardnessLine} {
		fs, ok := fields[role]
		if !ok || fs.PLo == nil || fs.PHi == nil {
			continue
		}
		found = true
		if m := *fs.PLo - rng.Min; m < margin {
			margin = m
		}
		if m := rng.Max - *fs.PHi; m < margin {
			margin = m
		}
	}
	if !found {
		return nil
	}
	return ptr(margin)
}

// Quantile returns the q-quantile of a sorted series using linear
// interpolation between order statistics. This is the single percentile
// routine used everywhere in the system, so results reproduce exactly
// across views.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func ptr(v float64) *float64 { return &v }
