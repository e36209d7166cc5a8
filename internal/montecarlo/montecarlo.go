// Package montecarlo empirically characterizes a stackup's distribution by
// repeatedly sampling every contributor's distribution and accumulating the
// per-iteration stackup value.
package montecarlo

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"tsa/internal/dist"
	"tsa/internal/stackup"
)

// maxSeriesPoints caps the per-contributor visualization series.
const maxSeriesPoints = 1000

// standardLevels are always emitted alongside the user-configured level.
var standardLevels = []float64{0.90, 0.95, 0.99}

// Compute runs the Monte Carlo analysis over resolved contributions.
//
// The RNG is owned locally by the run: seeded from settings.Seed when
// provided (reproducible regression runs), otherwise from the wall clock.
// Within an iteration each contribution is sampled independently; iterations
// are independent of each other.
func Compute(resolved []stackup.Resolved, settings stackup.MonteCarloSettings) (*stackup.MonteCarloResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	n := settings.Iterations
	bins := settings.Bins
	if bins == 0 {
		bins = stackup.DefaultHistogramBins
	}
	seed := time.Now().UnixNano()
	if settings.Seed != nil {
		seed = *settings.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	// Effective sampling parameters are frozen for the whole run.
	params := make([]dist.Params, len(resolved))
	scales := make([]float64, len(resolved))
	for i := range resolved {
		r := &resolved[i]
		p, err := stackup.EffectiveDistribution(&r.Contribution, r.Feature)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		params[i] = p
		scales[i] = r.Contribution.Direction * r.Contribution.Multiplier()
	}

	samples := make([]float64, n)
	sampled := make([][]float64, len(resolved))
	signed := make([][]float64, len(resolved))
	for i := range resolved {
		sampled[i] = make([]float64, n)
		signed[i] = make([]float64, n)
	}

	for j := 0; j < n; j++ {
		var total float64
		for i := range resolved {
			x := params[i].Sample(rng)
			s := x * scales[i]
			sampled[i][j] = x
			signed[i][j] = s
			total += s
		}
		samples[j] = total
	}

	sampleMean := mean(samples)
	totalVar := variance(samples, sampleMean)
	min, max := bounds(samples)

	result := &stackup.MonteCarloResult{
		Iterations:    n,
		Seed:          seed,
		Mean:          sampleMean,
		StdDev:        math.Sqrt(totalVar),
		Min:           min,
		Max:           max,
		Histogram:     histogram(samples, min, max, bins),
		Sensitivities: make([]stackup.Sensitivity, 0, len(resolved)),
		Samples:       samples,
		Contributor:   make([]stackup.ContributorSamples, 0, len(resolved)),
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)
	result.Intervals = intervals(sorted, settings.Confidence)

	// Sensitivity weights variance by |correlation|: variance that doesn't
	// correlate with the outcome (duplicated dimensions cancel each other)
	// must not claim credit for it.
	weights := make([]float64, len(resolved))
	var weightSum float64
	for i := range resolved {
		r := &resolved[i]
		m := mean(signed[i])
		v := variance(signed[i], m)
		c := pearson(signed[i], samples, m, sampleMean, v, totalVar)
		weights[i] = v * math.Abs(c)
		weightSum += weights[i]

		result.Sensitivities = append(result.Sensitivities, stackup.Sensitivity{
			ContributionID: r.Contribution.ID,
			ComponentName:  r.Component.Name,
			FeatureName:    r.Feature.Name,
			Direction:      r.Contribution.Direction,
			HalfCount:      r.Contribution.HalfCount,
			Variance:       v,
			Correlation:    c,
			Series:         series(sampled[i]),
		})
		result.Contributor = append(result.Contributor, stackup.ContributorSamples{
			ContributionID: r.Contribution.ID,
			ComponentName:  r.Component.Name,
			FeatureName:    r.Feature.Name,
			Sampled:        sampled[i],
			Signed:         signed[i],
		})
	}

	if weightSum > 0 {
		for i := range result.Sensitivities {
			result.Sensitivities[i].Percent = weights[i] / weightSum * 100
		}
	} else if len(result.Sensitivities) > 0 {
		// Degenerate fallback: nothing varied, credit the first contributor.
		result.Sensitivities[0].Percent = 100
	}

	return result, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is Bessel-corrected (divisor n-1); 0 when n <= 1.
func variance(xs []float64, mean float64) float64 {
	n := len(xs)
	if n <= 1 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(n-1)
}

func bounds(xs []float64) (min, max float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

// pearson computes the correlation between xs and ys given their
// precomputed means and Bessel-corrected variances. Returns 0 when either
// variance is 0.
func pearson(xs, ys []float64, meanX, meanY, varX, varY float64) float64 {
	if varX == 0 || varY == 0 {
		return 0
	}
	var cov float64
	for i := range xs {
		cov += (xs[i] - meanX) * (ys[i] - meanY)
	}
	cov /= float64(len(xs) - 1)
	return cov / math.Sqrt(varX*varY)
}

// histogram partitions [min, max] into equal-width bins. A sample lands in
// the bin satisfying start <= x < start+width; the index clamp keeps
// x == max in the last bin. When all samples are identical the width is
// zero and everything lands in the first bin.
func histogram(samples []float64, min, max float64, bins int) []stackup.HistogramBin {
	out := make([]stackup.HistogramBin, bins)
	width := (max - min) / float64(bins)
	for i := range out {
		out[i].Start = min + float64(i)*width
	}
	if width == 0 {
		out[0].Count = len(samples)
		return out
	}
	for _, x := range samples {
		idx := int((x - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// intervals emits the 100% interval (literal min/max) followed by the
// standard levels plus the user level, ascending and deduplicated. Bounds
// use symmetric nearest-rank percentile clipping of the sorted samples.
func intervals(sorted []float64, userLevel float64) []stackup.ConfidenceInterval {
	n := len(sorted)
	out := []stackup.ConfidenceInterval{
		{Level: 1.0, Lower: sorted[0], Upper: sorted[n-1]},
	}

	if userLevel < 0 {
		userLevel = 0
	}
	if userLevel > 0.9999 {
		userLevel = 0.9999
	}
	levels := make([]float64, 0, len(standardLevels)+1)
	levels = append(levels, standardLevels...)
	seen := false
	for _, l := range standardLevels {
		if l == userLevel {
			seen = true
		}
	}
	if !seen {
		levels = append(levels, userLevel)
	}
	sort.Float64s(levels)

	for _, level := range levels {
		alpha := 1 - level
		lo := clampIndex(int(math.Round(alpha/2*float64(n))), n)
		hi := clampIndex(int(math.Round((1-alpha/2)*float64(n))), n)
		out = append(out, stackup.ConfidenceInterval{Level: level, Lower: sorted[lo], Upper: sorted[hi]})
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// series down-samples values to at most maxSeriesPoints (value, running
// mean) pairs at a uniform stride. Kept for plotting only.
func series(values []float64) []stackup.SeriesPoint {
	n := len(values)
	stride := 1
	if n > maxSeriesPoints {
		stride = (n + maxSeriesPoints - 1) / maxSeriesPoints
	}
	out := make([]stackup.SeriesPoint, 0, (n+stride-1)/stride)
	var sum float64
	for i, v := range values {
		sum += v
		if i%stride == 0 {
			out = append(out, stackup.SeriesPoint{Value: v, Mean: sum / float64(i+1)})
		}
	}
	return out
}
