package ensemble

import (
	"math"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// highVarianceThreshold flags an ensemble whose per-trial brand counts
// swing widely; above this coefficient of variation the engine is not
// behaving consistently run-to-run and a caveat note is attached.
const highVarianceThreshold = 0.3

// significanceAlpha is the two-sided significance level for the
// visibility-frequency test.
const significanceAlpha = 0.05

// minTrialsForSignificance guards the normal approximation; below this
// the test is never reported significant.
const minTrialsForSignificance = 5

// BrandCountVariance computes the coefficient of variation
// (stddev/mean) of the number of distinct brands detected per
// successful trial — a proxy for how consistently the engine behaves
// across runs. Returns 0 when fewer than two successful trials exist or
// the mean is zero.
func BrandCountVariance(trials []model.TrialResult) float64 {
	var counts []float64
	for _, trial := range trials {
		if !trial.Success || trial.Extraction == nil {
			continue
		}
		counts = append(counts, float64(len(trial.Extraction.AllBrands)))
	}
	if len(counts) < 2 {
		return 0
	}

	var sum float64
	for _, c := range counts {
		sum += c
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, c := range counts {
		sq += (c - mean) * (c - mean)
	}
	stddev := math.Sqrt(sq / float64(len(counts)))

	return stddev / mean
}

// ComputeVarianceMetrics derives the optional statistics for the
// target's visibility frequency from the N-trial Bernoulli sample:
// a 95% normal-approximation confidence interval clamped to [0,1], the
// standard error, and a two-sided z-test of H0: p = 0.5 (is the
// observed frequency distinguishable from a coin flip).
func ComputeVarianceMetrics(visibleRuns, successfulRuns int) model.VarianceMetrics {
	if successfulRuns <= 0 {
		return model.VarianceMetrics{PValue: 1}
	}

	p := float64(visibleRuns) / float64(successfulRuns)
	n := float64(successfulRuns)

	stderr := math.Sqrt(p * (1 - p) / n)

	const z95 = 1.959963984540054
	lower := math.Max(0, p-z95*stderr)
	upper := math.Min(1, p+z95*stderr)

	// Under H0 the standard error is fixed at sqrt(0.25/n).
	se0 := math.Sqrt(0.25 / n)
	z := (p - 0.5) / se0
	pValue := 2 * normalTailProbability(math.Abs(z))
	if pValue > 1 {
		pValue = 1
	}

	return model.VarianceMetrics{
		ConfidenceLower: lower,
		ConfidenceUpper: upper,
		Significant:     successfulRuns >= minTrialsForSignificance && pValue < significanceAlpha,
		PValue:          pValue,
		StandardError:   stderr,
	}
}

// normalTailProbability returns P(Z > z) for a standard normal Z.
func normalTailProbability(z float64) float64 {
	return 0.5 * math.Erfc(z/math.Sqrt2)
}
