package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ellipsesearch/visibility-cli/internal/ensemble"
	"github.com/ellipsesearch/visibility-cli/internal/extract"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/internal/simulate"
	"github.com/ellipsesearch/visibility-cli/internal/store"
	anthropicpkg "github.com/ellipsesearch/visibility-cli/pkg/anthropic"
	"github.com/ellipsesearch/visibility-cli/pkg/perplexity"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewFromConfig(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func validateAPIKeys() error {
	if cfg.Perplexity.Key == "" {
		return eris.New("perplexity API key is required (VISIBILITY_PERPLEXITY_KEY)")
	}
	if cfg.Anthropic.Key == "" {
		return eris.New("anthropic API key is required (VISIBILITY_ANTHROPIC_KEY)")
	}
	return nil
}

// initRunner wires the simulator, extractor and trial loop from config.
func initRunner() (*ensemble.Runner, error) {
	if err := validateAPIKeys(); err != nil {
		return nil, err
	}

	models := make(simulate.EngineModels, len(cfg.Ensemble.EngineModels))
	for name, modelID := range cfg.Ensemble.EngineModels {
		engine, err := model.ParseEngine(name)
		if err != nil {
			return nil, eris.Wrap(err, "engine_models config")
		}
		models[engine] = modelID
	}

	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
	simulator := simulate.NewClient(perplexityClient, models, extract.ExcludedDomainList())

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	extractor := extract.New(anthropicClient, cfg.Anthropic.ExtractionModel)

	delay := time.Duration(cfg.Ensemble.InterTrialDelaySecs * float64(time.Second))
	return ensemble.NewRunner(simulator, extractor, cfg.Ensemble.MinRunCount, cfg.Ensemble.MaxRunCount, delay), nil
}
