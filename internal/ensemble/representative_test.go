package ensemble

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// repTrial builds a successful trial with a given distinct-brand count;
// withTarget additionally makes the target brand "Acme" visible.
func repTrial(index, brandCount int, withTarget bool) model.TrialResult {
	extraction := &model.BrandExtractionResult{}
	for i := 0; i < brandCount; i++ {
		extraction.AllBrands = append(extraction.AllBrands, model.ExtractedBrand{
			NormalizedName: fmt.Sprintf("brand%d", i),
		})
	}
	if withTarget {
		extraction.MentionedBrands = []model.MentionedBrand{{Name: "Acme"}}
	}
	return model.TrialResult{
		Index:      index,
		Success:    true,
		Extraction: extraction,
		AnswerText: fmt.Sprintf("answer %d", index),
	}
}

func TestFindRepresentativeRun_ClosestToMedian(t *testing.T) {
	t.Parallel()

	target := model.TargetBrand{Name: "Acme"}
	trials := []model.TrialResult{
		repTrial(0, 2, true),
		repTrial(1, 5, true),
		repTrial(2, 3, true),
		repTrial(3, 3, true),
		repTrial(4, 7, true),
	}

	// Median of [2,3,3,5,7] is 3; trials 2 and 3 both hit it and the
	// earlier one wins.
	index, answer := FindRepresentativeRun(trials, target, 1.0)
	assert.Equal(t, 2, index)
	assert.Equal(t, "answer 2", answer)
}

func TestFindRepresentativeRun_PenalizesMissingTarget(t *testing.T) {
	t.Parallel()

	target := model.TargetBrand{Name: "Acme"}
	trials := []model.TrialResult{
		repTrial(0, 3, false),
		repTrial(1, 5, true),
	}

	// Trial 0 sits nearer the median but missed a majority-visible
	// target; the penalty hands the pick to trial 1.
	index, _ := FindRepresentativeRun(trials, target, 0.5)
	assert.Equal(t, 1, index)

	// Below the majority threshold the penalty is off and proximity to
	// the median decides. Median of [3,5] is 4: a tie, earliest wins.
	index, _ = FindRepresentativeRun(trials, target, 0.4)
	assert.Equal(t, 0, index)
}

func TestFindRepresentativeRun_PenaltyBreaksMedianTie(t *testing.T) {
	t.Parallel()

	target := model.TargetBrand{Name: "Acme"}
	trials := []model.TrialResult{
		repTrial(0, 2, true),
		repTrial(1, 5, false),
		repTrial(2, 3, false),
		repTrial(3, 3, true),
		repTrial(4, 7, false),
	}

	// Trials 2 and 3 are equidistant from the median of 3, but only
	// trial 3 contains the majority-visible target.
	index, _ := FindRepresentativeRun(trials, target, 0.5)
	assert.Equal(t, 3, index)
}

func TestFindRepresentativeRun_AllMissedTarget(t *testing.T) {
	t.Parallel()

	target := model.TargetBrand{Name: "Acme"}
	trials := []model.TrialResult{
		repTrial(0, 4, false),
		repTrial(1, 2, false),
	}

	// Every candidate carries the same penalty, so it cancels out.
	index, _ := FindRepresentativeRun(trials, target, 0.9)
	assert.Equal(t, 0, index)
}

func TestFindRepresentativeRun_SkipsFailedTrials(t *testing.T) {
	t.Parallel()

	target := model.TargetBrand{Name: "Acme"}
	trials := []model.TrialResult{
		failedTrial(0),
		repTrial(1, 3, true),
	}

	index, answer := FindRepresentativeRun(trials, target, 1.0)
	assert.Equal(t, 1, index)
	assert.Equal(t, "answer 1", answer)
}

func TestFindRepresentativeRun_NoSuccessfulTrials(t *testing.T) {
	t.Parallel()

	index, answer := FindRepresentativeRun([]model.TrialResult{failedTrial(0)}, model.TargetBrand{Name: "Acme"}, 0)
	assert.Equal(t, -1, index)
	assert.Empty(t, answer)
}

func TestMedianInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3.0, medianInt([]int{3}))
	assert.Equal(t, 3.0, medianInt([]int{7, 3, 2}))
	assert.Equal(t, 4.0, medianInt([]int{5, 3}))
	assert.Equal(t, 3.0, medianInt([]int{2, 3, 3, 5, 7}))
}
