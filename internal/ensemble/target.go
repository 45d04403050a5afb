package ensemble

import (
	"fmt"

	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// Confidence bands for the target-brand measurement. Frequencies at or
// beyond 0.8 / 0.2 are unambiguous in either direction; the middle of
// the range is where repeated sampling disagrees with itself.
const (
	highConfidenceUpper = 0.8
	highConfidenceLower = 0.2
	mediumConfidenceMin = 0.5
)

// classifyConfidence grades how trustworthy a visibility frequency is.
// Exactly 0.5 maps to medium (the >= 0.5 branch); low is only reachable
// strictly between 0.2 and 0.5. This boundary is load-bearing and
// covered by tests; do not symmetrize it.
func classifyConfidence(frequency float64) model.Confidence {
	switch {
	case frequency >= highConfidenceUpper || frequency <= highConfidenceLower:
		return model.ConfidenceHigh
	case frequency >= mediumConfidenceMin:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// AnalyzeTargetBrand measures the target brand across all successful
// trials: per-trial visibility via the extractor's matcher, a
// cross-trial visibility frequency over successfulRuns, a presence
// level, a confidence grade, and a human-readable summary. Returns nil
// when no trial succeeded.
func AnalyzeTargetBrand(target model.TargetBrand, trials []model.TrialResult, successfulRuns int, withVariance bool) *model.TargetBrandResult {
	if successfulRuns <= 0 {
		return nil
	}

	var (
		runResults  []model.TargetRunResult
		visibleRuns int
		mentionedIn int
		supportedIn int
	)

	for _, trial := range trials {
		if !trial.Success {
			continue
		}
		visibility := extract.CheckBrandVisibility(trial.Extraction, target)
		runResults = append(runResults, model.TargetRunResult{
			RunIndex:       trial.Index,
			Visible:        visibility.Visible,
			VisibilityType: visibility.VisibilityType,
			Evidence:       visibility.Evidence,
		})
		if visibility.Visible {
			visibleRuns++
		}
		if visibility.MentionCount > 0 {
			mentionedIn++
		}
		if visibility.SourceCount > 0 {
			supportedIn++
		}
	}

	frequency := float64(visibleRuns) / float64(successfulRuns)
	level := ClassifyPresence(frequency)

	result := &model.TargetBrandResult{
		Name:                target.Name,
		Domain:              target.Domain,
		VisibilityFrequency: frequency,
		PresenceLevel:       level,
		Confidence:          classifyConfidence(frequency),
		MentionedInRuns:     mentionedIn,
		SupportedInRuns:     supportedIn,
		TotalRuns:           successfulRuns,
		RunResults:          runResults,
		Summary:             targetSummary(target.Name, level, visibleRuns, successfulRuns),
	}

	if withVariance {
		metrics := ComputeVarianceMetrics(visibleRuns, successfulRuns)
		result.VarianceMetrics = &metrics
	}

	return result
}

func targetSummary(name string, level model.PresenceLevel, visibleRuns, totalRuns int) string {
	ratio := fmt.Sprintf("%d of %d runs", visibleRuns, totalRuns)
	switch level {
	case model.PresenceDefinite:
		return fmt.Sprintf("%s is consistently visible: it appeared in %s.", name, ratio)
	case model.PresencePossible:
		return fmt.Sprintf("%s is intermittently visible: it appeared in %s.", name, ratio)
	case model.PresenceInconclusive:
		return fmt.Sprintf("%s appeared in %s; too rare to call it present.", name, ratio)
	default:
		return fmt.Sprintf("%s did not appear in any of %d runs.", name, totalRuns)
	}
}
