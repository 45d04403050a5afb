package ensemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// Presence thresholds partition [0,1] with no gaps or overlaps.
const (
	definiteThreshold = 0.60
	possibleThreshold = 0.20
)

// ClassifyPresence maps a cross-trial frequency to a presence level:
// >= 0.60 definite, [0.20, 0.60) possible, (0, 0.20) inconclusive,
// exactly 0 likely absent.
func ClassifyPresence(frequency float64) model.PresenceLevel {
	switch {
	case frequency >= definiteThreshold:
		return model.PresenceDefinite
	case frequency >= possibleThreshold:
		return model.PresencePossible
	case frequency > 0:
		return model.PresenceInconclusive
	default:
		return model.PresenceLikelyAbsent
	}
}

// brandAccumulator collects one brand's appearances across trials.
type brandAccumulator struct {
	name          string
	domain        string
	appearances   int
	mentionedIn   int
	supportedIn   int
	totalMentions int
	totalSources  int
	runDetails    []model.RunDetail
}

// AggregateBrandsAcrossRuns folds per-trial extractions into one row
// per distinct normalized brand name seen in any trial. Frequencies are
// computed over successfulRuns, never over the requested run count, so
// infrastructure failures do not skew the statistics. The result is
// sorted descending by frequency (ties broken by name for a stable
// order under permutation of the input).
func AggregateBrandsAcrossRuns(trials []model.TrialResult, successfulRuns int) []model.EnsembleBrandResult {
	if successfulRuns <= 0 {
		return nil
	}

	brands := make(map[string]*brandAccumulator)

	for _, trial := range trials {
		if !trial.Success || trial.Extraction == nil {
			continue
		}
		for _, b := range trial.Extraction.AllBrands {
			key := b.NormalizedName
			if key == "" {
				continue
			}
			acc, ok := brands[key]
			if !ok {
				acc = &brandAccumulator{name: b.Name, domain: b.Domain}
				brands[key] = acc
			}
			if acc.domain == "" && b.Domain != "" {
				acc.domain = b.Domain
			}
			acc.appearances++
			if b.IsMentioned {
				acc.mentionedIn++
			}
			if b.IsSupported {
				acc.supportedIn++
			}
			acc.totalMentions += b.MentionCount
			acc.totalSources += b.SourceCount
			acc.runDetails = append(acc.runDetails, model.RunDetail{
				RunIndex:     trial.Index,
				IsMentioned:  b.IsMentioned,
				IsSupported:  b.IsSupported,
				MentionCount: b.MentionCount,
				SourceCount:  b.SourceCount,
			})
		}
	}

	results := make([]model.EnsembleBrandResult, 0, len(brands))
	for key, acc := range brands {
		frequency := float64(acc.appearances) / float64(successfulRuns)
		results = append(results, model.EnsembleBrandResult{
			Name:             acc.name,
			NormalizedName:   key,
			Domain:           acc.domain,
			Frequency:        frequency,
			AppearanceCount:  acc.appearances,
			TotalRuns:        successfulRuns,
			PresenceLevel:    ClassifyPresence(frequency),
			MentionFrequency: float64(acc.mentionedIn) / float64(successfulRuns),
			SourceFrequency:  float64(acc.supportedIn) / float64(successfulRuns),
			RunDetails:       acc.runDetails,
			Evidence:         brandEvidence(acc, successfulRuns),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Frequency != results[j].Frequency {
			return results[i].Frequency > results[j].Frequency
		}
		return results[i].NormalizedName < results[j].NormalizedName
	})

	return results
}

func brandEvidence(acc *brandAccumulator, successfulRuns int) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("appeared in %d/%d runs", acc.appearances, successfulRuns))
	if acc.totalMentions > 0 {
		parts = append(parts, fmt.Sprintf("%d text mentions across %d runs", acc.totalMentions, acc.mentionedIn))
	}
	if acc.totalSources > 0 {
		parts = append(parts, fmt.Sprintf("%d citing sources across %d runs", acc.totalSources, acc.supportedIn))
	}
	return strings.Join(parts, "; ")
}
