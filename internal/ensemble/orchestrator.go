// Package ensemble runs N independent trials of one query and folds
// the per-trial extractions into frequency-based presence statistics.
package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/simulate"
)

// Extractor is the per-trial brand extraction pass.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (*model.BrandExtractionResult, error)
}

// Runner executes ensemble simulations: sequential trials with a pause
// between them so the engine does not serve the same cached completion
// N times.
type Runner struct {
	simulator simulate.Simulator
	extractor Extractor
	limiter   *rate.Limiter
	minRuns   int
	maxRuns   int
}

// NewRunner wires a Runner. interTrialDelay of zero disables pacing.
func NewRunner(sim simulate.Simulator, ext Extractor, minRuns, maxRuns int, interTrialDelay time.Duration) *Runner {
	limit := rate.Inf
	if interTrialDelay > 0 {
		limit = rate.Every(interTrialDelay)
	}
	return &Runner{
		simulator: sim,
		extractor: ext,
		limiter:   rate.NewLimiter(limit, 1),
		minRuns:   minRuns,
		maxRuns:   maxRuns,
	}
}

// Run executes the full ensemble for one request: N trials, per-trial
// extraction, cross-trial aggregation, target-brand analysis, and
// representative-run selection. Individual trial failures are recorded
// and skipped; the run as a whole fails only when every trial does.
func (r *Runner) Run(ctx context.Context, req model.SimulationRequest) (*model.EnsembleSimulationResult, error) {
	if err := req.Validate(r.minRuns, r.maxRuns); err != nil {
		return nil, eris.Wrap(err, "ensemble: invalid request")
	}

	log := zap.L().With(
		zap.String("engine", string(req.Engine)),
		zap.String("query", req.Query),
		zap.Int("run_count", req.RunCount),
	)
	log.Info("ensemble: starting")

	trials := make([]model.TrialResult, 0, req.RunCount)
	for i := 0; i < req.RunCount; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ensemble: canceled between trials")
		}
		trials = append(trials, r.runTrial(ctx, i, req))
	}

	successful := 0
	for _, t := range trials {
		if t.Success {
			successful++
		}
	}
	if successful == 0 {
		return nil, eris.Errorf("ensemble: all %d trials failed", req.RunCount)
	}

	allBrands := AggregateBrandsAcrossRuns(trials, successful)
	targetResult := AnalyzeTargetBrand(req.Target, trials, successful, req.EnableVarianceMetrics)

	targetFrequency := 0.0
	if targetResult != nil {
		targetFrequency = targetResult.VisibilityFrequency
	}
	repIndex, repAnswer := FindRepresentativeRun(trials, req.Target, targetFrequency)

	allSources := unionSources(trials)

	result := &model.EnsembleSimulationResult{
		Engine:                 req.Engine,
		Keyword:                req.Query,
		Region:                 req.Region,
		TotalRuns:              req.RunCount,
		SuccessfulRuns:         successful,
		TargetBrandResult:      targetResult,
		AllBrands:              allBrands,
		AllSources:             allSources,
		UniqueDomains:          uniqueDomains(allSources),
		RepresentativeAnswer:   repAnswer,
		RepresentativeRunIndex: repIndex,
		RunResults:             trials,
		Notes:                  runNotes(trials, successful, req.RunCount),
	}

	log.Info("ensemble: complete",
		zap.Int("successful_runs", successful),
		zap.Int("brands", len(allBrands)),
		zap.Int("representative_run", repIndex),
	)

	return result, nil
}

// runTrial executes one simulate+extract pair. Failures are folded into
// the TrialResult rather than propagated.
func (r *Runner) runTrial(ctx context.Context, index int, req model.SimulationRequest) model.TrialResult {
	trial := model.TrialResult{Index: index}

	out, err := r.simulator.Simulate(ctx, req.Engine, req.Query, req.Language, req.Region)
	if err != nil {
		zap.L().Warn("ensemble: trial failed", zap.Int("trial", index), zap.Error(err))
		trial.Error = err.Error()
		return trial
	}

	extraction, err := r.extractor.Extract(ctx, extract.Input{
		Engine:        req.Engine,
		AnswerText:    out.AnswerText,
		Sources:       out.Sources,
		SearchResults: out.SearchResults,
		Target:        req.Target,
	})
	if err != nil {
		zap.L().Warn("ensemble: extraction failed", zap.Int("trial", index), zap.Error(err))
		trial.Error = err.Error()
		return trial
	}

	trial.Success = true
	trial.AnswerText = out.AnswerText
	trial.Sources = out.Sources
	trial.Extraction = extraction
	trial.DurationMS = out.DurationMS
	return trial
}

// unionSources merges every successful trial's sources, deduplicated by
// canonical URL with the first-seen entry winning.
func unionSources(trials []model.TrialResult) []model.SourceReference {
	var merged []model.SourceReference
	for _, trial := range trials {
		if !trial.Success {
			continue
		}
		merged = domains.MergeSources(merged, trial.Sources)
	}
	return merged
}

// uniqueDomains lists the registrable domains behind the source union,
// in first-seen order.
func uniqueDomains(sources []model.SourceReference) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sources {
		d := domains.RegistrableDomain(s.URL)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// runNotes attaches caveats a consumer should see next to the numbers.
func runNotes(trials []model.TrialResult, successful, requested int) []string {
	var notes []string
	if successful < requested {
		notes = append(notes, fmt.Sprintf("%d of %d trials failed; frequencies are computed over the %d successful runs", requested-successful, requested, successful))
	}
	if cv := BrandCountVariance(trials); cv > highVarianceThreshold {
		notes = append(notes, fmt.Sprintf("high run-to-run variance in brand counts (cv=%.2f); results may be unstable", cv))
	}
	return notes
}
