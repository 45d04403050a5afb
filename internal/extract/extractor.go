// Package extract runs the per-trial brand extraction pass: given one
// trial's answer and sources, it produces a structured list of brands
// mentioned in text and/or supported by citations.
package extract

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
	"github.com/ellipsesearch/visibility-cli/internal/model"
	"github.com/ellipsesearch/visibility-cli/pkg/anthropic"
)

// Input is one trial's raw output plus the measurement target.
type Input struct {
	Engine        model.Engine
	AnswerText    string
	Sources       []model.SourceReference
	SearchResults []model.SearchResult
	Target        model.TargetBrand
}

// Extractor issues the structured extraction call for each trial.
type Extractor struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	systemBlocks []anthropic.SystemBlock
}

// New creates an Extractor bound to a model ID.
func New(client anthropic.Client, modelID string) *Extractor {
	return &Extractor{
		client:       client,
		model:        modelID,
		maxTokens:    4096,
		systemBlocks: anthropic.BuildCachedSystemBlocks(extractionSystemText),
	}
}

// Extract runs one structured extraction pass. Unparsable or empty
// model output degrades to an empty extraction with an uncertainty
// note; a missed trial is preferable to a false positive. The returned
// error is reserved for transport failures.
func (e *Extractor) Extract(ctx context.Context, in Input) (*model.BrandExtractionResult, error) {
	candidates, analysis := BuildCandidates(in.Sources, in.SearchResults, in.Target)
	prompt := buildExtractionPrompt(in.Engine, in.AnswerText, in.Sources, candidates)

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      e.systemBlocks,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	mentioned, supported, notes, ok := parseExtraction(resp.Text())
	if !ok {
		zap.L().Warn("extract: extraction output rejected, returning empty result",
			zap.String("engine", string(in.Engine)),
			zap.Int("candidates", len(candidates)),
		)
		return &model.BrandExtractionResult{
			UncertaintyNotes: []string{"extraction output was empty or malformed; no brands recorded for this trial"},
			SourceAnalysis:   analysis,
		}, nil
	}

	result := &model.BrandExtractionResult{
		MentionedBrands:  mentioned,
		SupportedBrands:  supported,
		AllBrands:        mergeBrands(mentioned, supported),
		UncertaintyNotes: notes,
		SourceAnalysis:   analysis,
	}
	return result, nil
}

// mergeBrands unifies mentioned and supported entries into per-brand
// rows keyed by normalized name, with aggregated counts and flags.
func mergeBrands(mentioned []model.MentionedBrand, supported []model.SupportedBrand) []model.ExtractedBrand {
	merged := make(map[string]*model.ExtractedBrand)

	get := func(name, domain string) *model.ExtractedBrand {
		key := model.NormalizeBrandName(name)
		b, ok := merged[key]
		if !ok {
			b = &model.ExtractedBrand{
				Name:           strings.TrimSpace(name),
				NormalizedName: key,
				Confidence:     model.ConfidenceLow,
			}
			merged[key] = b
		}
		if b.Domain == "" && domain != "" {
			b.Domain = domains.RegistrableDomain(domain)
		}
		return b
	}

	for _, mb := range mentioned {
		b := get(mb.Name, mb.CanonicalDomain)
		b.IsMentioned = true
		spans := len(mb.AnswerSpans)
		if spans == 0 {
			spans = 1
		}
		b.MentionCount += spans
		b.Confidence = maxConfidence(b.Confidence, mb.Confidence)
	}

	for _, sb := range supported {
		b := get(sb.Name, sb.CanonicalDomain)
		b.IsSupported = true
		sources := len(sb.SourceURLs)
		if sources == 0 {
			sources = 1
		}
		b.SourceCount += sources
		b.Confidence = maxConfidence(b.Confidence, sb.Confidence)
	}

	out := make([]model.ExtractedBrand, 0, len(merged))
	for _, b := range merged {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NormalizedName < out[j].NormalizedName
	})
	return out
}

var confidenceRank = map[model.Confidence]int{
	model.ConfidenceLow:    0,
	model.ConfidenceMedium: 1,
	model.ConfidenceHigh:   2,
}

func maxConfidence(a, b model.Confidence) model.Confidence {
	if confidenceRank[b] > confidenceRank[a] {
		return b
	}
	return a
}
