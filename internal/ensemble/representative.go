package ensemble

import (
	"math"
	"sort"

	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// missingTargetPenalty biases representative selection away from trials
// that missed a usually-visible target brand. The weight exceeds any
// realistic brand-count spread so that such trials only win when every
// candidate missed the target.
const missingTargetPenalty = 10.0

// FindRepresentativeRun picks the successful trial whose answer best
// stands in for the whole ensemble: the one whose distinct-brand count
// is closest to the median across successful trials. When the target
// brand is visible in at least half the runs, trials that missed it are
// penalized so the representative answer reflects the majority outcome.
// Returns the trial index and its answer text, or (-1, "") when no
// trial succeeded.
func FindRepresentativeRun(trials []model.TrialResult, target model.TargetBrand, targetFrequency float64) (int, string) {
	type candidate struct {
		index      int
		brandCount int
		hasTarget  bool
		answer     string
	}

	var candidates []candidate
	for _, trial := range trials {
		if !trial.Success || trial.Extraction == nil {
			continue
		}
		vis := extract.CheckBrandVisibility(trial.Extraction, target)
		candidates = append(candidates, candidate{
			index:      trial.Index,
			brandCount: len(trial.Extraction.AllBrands),
			hasTarget:  vis.Visible,
			answer:     trial.AnswerText,
		})
	}
	if len(candidates) == 0 {
		return -1, ""
	}

	counts := make([]int, len(candidates))
	for i, c := range candidates {
		counts[i] = c.brandCount
	}
	median := medianInt(counts)

	penalizeMissing := targetFrequency >= 0.5

	best := 0
	bestScore := math.Inf(1)
	for i, c := range candidates {
		score := math.Abs(float64(c.brandCount) - median)
		if penalizeMissing && !c.hasTarget {
			score += missingTargetPenalty
		}
		// Ties resolve to the earliest trial.
		if score < bestScore {
			best = i
			bestScore = score
		}
	}

	return candidates[best].index, candidates[best].answer
}

func medianInt(values []int) float64 {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
