package ensemble

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/simulate"
)

// scriptedSimulator replays a fixed sequence of outputs and errors, one
// per trial.
type scriptedSimulator struct {
	outputs []*simulate.Output
	errs    []error
	calls   int
}

func (s *scriptedSimulator) Simulate(_ context.Context, _ model.Engine, _, _, _ string) (*simulate.Output, error) {
	i := s.calls
	s.calls++
	if s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.outputs[i], nil
}

// echoExtractor reports the target brand as mentioned whenever the
// answer text contains its name.
type echoExtractor struct{}

func (echoExtractor) Extract(_ context.Context, in extract.Input) (*model.BrandExtractionResult, error) {
	result := &model.BrandExtractionResult{
		AllBrands: []model.ExtractedBrand{
			{Name: "Globex", NormalizedName: "globex", IsMentioned: true, MentionCount: 1},
		},
	}
	if in.Target.Name != "" && strings.Contains(in.AnswerText, in.Target.Name) {
		result.MentionedBrands = []model.MentionedBrand{
			{Name: in.Target.Name, AnswerSpans: []string{in.AnswerText}, Confidence: model.ConfidenceHigh},
		}
		result.AllBrands = append(result.AllBrands, model.ExtractedBrand{
			Name:           in.Target.Name,
			NormalizedName: model.NormalizeBrandName(in.Target.Name),
			IsMentioned:    true,
			MentionCount:   1,
		})
	}
	return result, nil
}

func testRequest(runs int) model.SimulationRequest {
	return model.SimulationRequest{
		Engine:   model.EnginePerplexity,
		Query:    "best crm software",
		Language: "en",
		Region:   "global",
		Target:   model.TargetBrand{Name: "Acme", Domain: "acme.com"},
		RunCount: runs,
	}
}

func output(answer string, urls ...string) *simulate.Output {
	out := &simulate.Output{AnswerText: answer}
	for _, u := range urls {
		out.Sources = append(out.Sources, model.SourceReference{URL: u})
	}
	return out
}

func TestRunnerRun_AllTrialsSucceed(t *testing.T) {
	sim := &scriptedSimulator{
		outputs: []*simulate.Output{
			output("Acme and Globex lead.", "https://acme.com/a", "https://globex.io/b"),
			output("Acme again.", "https://acme.com/a"),
			output("Acme still.", "https://review.example.org/c"),
		},
		errs: make([]error, 3),
	}
	runner := NewRunner(sim, echoExtractor{}, 1, 20, 0)

	result, err := runner.Run(context.Background(), testRequest(3))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRuns)
	assert.Equal(t, 3, result.SuccessfulRuns)
	assert.Equal(t, model.EnginePerplexity, result.Engine)
	assert.Equal(t, "best crm software", result.Keyword)
	assert.Empty(t, result.Notes)

	require.NotNil(t, result.TargetBrandResult)
	assert.InDelta(t, 1.0, result.TargetBrandResult.VisibilityFrequency, 1e-9)
	assert.Equal(t, model.PresenceDefinite, result.TargetBrandResult.PresenceLevel)

	require.Len(t, result.AllBrands, 2)
	assert.Equal(t, "acme", result.AllBrands[0].NormalizedName)
	assert.InDelta(t, 1.0, result.AllBrands[0].Frequency, 1e-9)

	// Sources union dedupes by canonical URL across trials.
	assert.Len(t, result.AllSources, 3)
	assert.Equal(t, []string{"acme.com", "globex.io", "example.org"}, result.UniqueDomains)

	assert.GreaterOrEqual(t, result.RepresentativeRunIndex, 0)
	assert.NotEmpty(t, result.RepresentativeAnswer)
	require.Len(t, result.RunResults, 3)
}

func TestRunnerRun_PartialFailure(t *testing.T) {
	sim := &scriptedSimulator{
		outputs: []*simulate.Output{
			output("Acme leads."),
			nil,
			output("Acme again."),
		},
		errs: []error{nil, eris.New("perplexity: 429 rate limited"), nil},
	}
	runner := NewRunner(sim, echoExtractor{}, 1, 20, 0)

	result, err := runner.Run(context.Background(), testRequest(3))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRuns)
	assert.Equal(t, 2, result.SuccessfulRuns)

	// Frequencies run over the successes, not the requested count.
	require.NotNil(t, result.TargetBrandResult)
	assert.InDelta(t, 1.0, result.TargetBrandResult.VisibilityFrequency, 1e-9)

	require.Len(t, result.RunResults, 3)
	failed := result.RunResults[1]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "rate limited")

	require.NotEmpty(t, result.Notes)
	assert.Contains(t, result.Notes[0], "1 of 3 trials failed")
}

func TestRunnerRun_AllTrialsFail(t *testing.T) {
	boom := eris.New("engine unavailable")
	sim := &scriptedSimulator{
		outputs: make([]*simulate.Output, 2),
		errs:    []error{boom, boom},
	}
	runner := NewRunner(sim, echoExtractor{}, 1, 20, 0)

	_, err := runner.Run(context.Background(), testRequest(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 trials failed")
}

func TestRunnerRun_InvalidRequest(t *testing.T) {
	runner := NewRunner(&scriptedSimulator{}, echoExtractor{}, 3, 20, 0)

	tests := []struct {
		name    string
		mutate  func(*model.SimulationRequest)
		wantErr string
	}{
		{"unknown engine", func(r *model.SimulationRequest) { r.Engine = "copilot" }, "unknown engine"},
		{"empty query", func(r *model.SimulationRequest) { r.Query = "" }, "query is required"},
		{"run count below minimum", func(r *model.SimulationRequest) { r.RunCount = 2 }, "outside"},
		{"bad language tag", func(r *model.SimulationRequest) { r.Language = "not a tag" }, "invalid language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(5)
			tt.mutate(&req)
			_, err := runner.Run(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunnerRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&scriptedSimulator{}, echoExtractor{}, 1, 20, 0)
	_, err := runner.Run(ctx, testRequest(1))
	require.Error(t, err)
}
