// Package simulate issues one raw generative trial against an answer
// engine and normalizes its output. The ensemble layer treats this as
// an opaque collaborator: one call in, answer text plus sources out, an
// error on failure. No retries happen here; retry policy belongs to the
// external job layer.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/pkg/perplexity"
)

// Output is one trial's normalized engine response.
type Output struct {
	AnswerText    string
	Sources       []model.SourceReference
	SearchResults []model.SearchResult
	DurationMS    int64
}

// Simulator runs one trial of a query against an engine.
type Simulator interface {
	Simulate(ctx context.Context, engine model.Engine, query, language, region string) (*Output, error)
}

// EngineModels maps each engine to the search-grounded model family
// used to emulate it.
type EngineModels map[model.Engine]string

// Client runs trials through the Perplexity chat-completions API, with
// per-engine model routing. Excluded-domain mentions in the answer body
// are folded into the source list so brands cited without a link still
// surface as candidates.
type Client struct {
	api             perplexity.Client
	models          EngineModels
	excludedDomains []string
}

// NewClient creates a Simulator over a Perplexity API client.
func NewClient(api perplexity.Client, models EngineModels, excludedDomains []string) *Client {
	return &Client{api: api, models: models, excludedDomains: excludedDomains}
}

// Simulate issues one chat completion and maps citations, search
// results and in-text domain mentions to a normalized Output.
func (c *Client) Simulate(ctx context.Context, engine model.Engine, query, language, region string) (*Output, error) {
	start := time.Now()

	req := perplexity.ChatCompletionRequest{
		Model: c.models[engine],
		Messages: []perplexity.Message{
			{Role: "system", Content: systemPrompt(language, region)},
			{Role: "user", Content: query},
		},
	}

	resp, err := c.api.ChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "simulate: %s trial", engine)
	}

	answer := resp.AnswerText()
	if answer == "" {
		return nil, eris.Errorf("simulate: %s returned an empty answer", engine)
	}

	out := &Output{
		AnswerText: answer,
		DurationMS: time.Since(start).Milliseconds(),
	}

	for _, u := range resp.Citations {
		out.Sources = append(out.Sources, model.SourceReference{URL: u})
	}
	for _, r := range resp.SearchResults {
		out.SearchResults = append(out.SearchResults, model.SearchResult{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Snippet,
		})
		// Search results double as sources when citations are sparse.
		out.Sources = domains.MergeSources(out.Sources, []model.SourceReference{
			{URL: r.URL, Title: r.Title, Snippet: r.Snippet},
		})
	}

	// Recover domains the answer names but never links.
	mentions := domains.ExtractDomainMentions(answer, c.excludedDomains)
	if len(mentions) > 0 {
		out.Sources = domains.MergeSources(out.Sources, domains.SourcesFromMentions(mentions))
	}

	zap.L().Debug("simulate: trial complete",
		zap.String("engine", string(engine)),
		zap.Int("sources", len(out.Sources)),
		zap.Int("answer_chars", len(answer)),
		zap.Int64("duration_ms", out.DurationMS),
	)

	return out, nil
}

func systemPrompt(language, region string) string {
	lang := language
	if lang == "" {
		lang = "en"
	}
	loc := region
	if loc == "" || loc == "global" {
		loc = "a global audience"
	} else {
		loc = fmt.Sprintf("a user in %s", loc)
	}
	return fmt.Sprintf("Answer in language %q for %s. Recommend specific products, services or companies where relevant, and cite your sources.", lang, loc)
}
