package conformance

import (
	"math"
	"sort"
)

// NormalFit is a Gaussian fitted to a sample, used only as a visual overlay
// and for safety-margin banding — never for statistical testing.
type NormalFit struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

// FitNormal fits a normal density to the plottable values. The fit is
// undefined (ok=false) with fewer than 2 values or zero spread; callers
// report "undefined" instead of dividing by zero.
func FitNormal(values []float64) (NormalFit, bool) {
	vals := PlottableSeries(values)
	if len(vals) < 2 {
		return NormalFit{}, false
	}
	var n int
	var mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	std := math.Sqrt(m2 / float64(n-1))
	if std <= 0 {
		return NormalFit{}, false
	}
	return NormalFit{Mean: mean, Std: std, N: n}, true
}

// Density evaluates the fitted normal PDF at x.
func (f NormalFit) Density(x float64) float64 {
	z := (x - f.Mean) / f.Std
	return math.Exp(-0.5*z*z) / (f.Std * math.Sqrt(2*math.Pi))
}

// DefaultDomain is the plotting span mean ± 3σ.
func (f NormalFit) DefaultDomain() (lo, hi float64) {
	return f.Mean - 3*f.Std, f.Mean + 3*f.Std
}

// Point is one (x, y) coordinate of an overlay series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Overlay samples the fitted density over [lo, hi] into a finite series of
// points. points defaults to 100 when fewer than 2 are requested; a single
// point cannot span an interval.
func Overlay(f NormalFit, lo, hi float64, points int) []Point {
	if points < 2 {
		points = 100
	}
	if hi <= lo {
		lo, hi = f.DefaultDomain()
	}
	step := (hi - lo) / float64(points-1)
	out := make([]Point, points)
	for i := 0; i < points; i++ {
		x := lo + float64(i)*step
		out[i] = Point{X: x, Y: f.Density(x)}
	}
	return out
}

// Bin is one histogram bucket over [Lo, Hi).
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram is a fixed-width binning of a plottable series.
type Histogram struct {
	BinWidth float64 `json:"bin_width"`
	Bins     []Bin   `json:"bins"`
}

// BuildHistogram bins the plottable values with the given width. Width
// defaults to 1 (the safety-analysis convention for HRB). Bin edges are
// aligned to multiples of the width so identical inputs always bin
// identically.
func BuildHistogram(values []float64, binWidth float64) Histogram {
	if binWidth <= 0 {
		binWidth = 1
	}
	vals := PlottableSeries(values)
	h := Histogram{BinWidth: binWidth}
	if len(vals) == 0 {
		return h
	}
	sort.Float64s(vals)
	lo := math.Floor(vals[0]/binWidth) * binWidth
	hi := math.Floor(vals[len(vals)-1]/binWidth)*binWidth + binWidth
	nbins := int(math.Round((hi - lo) / binWidth))
	h.Bins = make([]Bin, nbins)
	for i := range h.Bins {
		h.Bins[i] = Bin{Lo: lo + float64(i)*binWidth, Hi: lo + float64(i+1)*binWidth}
	}
	for _, v := range vals {
		idx := int((v - lo) / binWidth)
		if idx >= nbins {
			idx = nbins - 1
		}
		h.Bins[idx].Count++
	}
	return h
}

// HistogramOverlay samples the density over the histogram's observed range,
// scaled by count × bin width so the curve height matches histogram counts
// rather than raw density. The scaling is a consumer contract for visual
// fidelity, not a correctness requirement.
func HistogramOverlay(f NormalFit, h Histogram, points int) []Point {
	if len(h.Bins) == 0 {
		return nil
	}
	lo := h.Bins[0].Lo
	hi := h.Bins[len(h.Bins)-1].Hi
	out := Overlay(f, lo, hi, points)
	scale := float64(f.N) * h.BinWidth
	for i := range out {
		out[i].Y *= scale
	}
	return out
}
