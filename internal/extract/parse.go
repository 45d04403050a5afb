package extract

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// extractionPayload mirrors the JSON schema the extraction prompt asks
// for. Parsing fails closed: anything that does not unmarshal into this
// shape yields an empty extraction, never an error and never a
// fabricated result.
type extractionPayload struct {
	MentionedBrands []struct {
		Name            string   `json:"name"`
		CanonicalDomain string   `json:"canonical_domain"`
		AnswerSpans     []string `json:"answer_spans"`
		CitationURLs    []string `json:"citation_urls"`
		Confidence      string   `json:"confidence"`
		MentionType     string   `json:"mention_type"`
	} `json:"mentioned_brands"`
	SupportedBrands []struct {
		Name            string   `json:"name"`
		CanonicalDomain string   `json:"canonical_domain"`
		SourceURLs      []string `json:"source_urls"`
		Confidence      string   `json:"confidence"`
	} `json:"supported_brands"`
	UncertaintyNotes []string `json:"uncertainty_notes"`
}

// parseExtraction validates the model output against the schema,
// dropping malformed entries field by field instead of throwing.
func parseExtraction(text string) (mentioned []model.MentionedBrand, supported []model.SupportedBrand, notes []string, ok bool) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, nil, nil, false
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		zap.L().Warn("extract: unparsable extraction output", zap.Error(err))
		return nil, nil, nil, false
	}

	for _, mb := range payload.MentionedBrands {
		name := strings.TrimSpace(mb.Name)
		if name == "" {
			continue
		}
		mentioned = append(mentioned, model.MentionedBrand{
			Name:            name,
			CanonicalDomain: strings.ToLower(strings.TrimSpace(mb.CanonicalDomain)),
			AnswerSpans:     dropEmpty(mb.AnswerSpans),
			CitationURLs:    dropEmpty(mb.CitationURLs),
			Confidence:      parseConfidence(mb.Confidence),
			MentionType:     parseMentionType(mb.MentionType),
		})
	}

	for _, sb := range payload.SupportedBrands {
		name := strings.TrimSpace(sb.Name)
		if name == "" {
			continue
		}
		supported = append(supported, model.SupportedBrand{
			Name:            name,
			CanonicalDomain: strings.ToLower(strings.TrimSpace(sb.CanonicalDomain)),
			SourceURLs:      dropEmpty(sb.SourceURLs),
			Confidence:      parseConfidence(sb.Confidence),
		})
	}

	return mentioned, supported, dropEmpty(payload.UncertaintyNotes), true
}

// parseConfidence maps free-form confidence strings onto the closed
// enum, defaulting unknown values to low rather than rejecting the row.
func parseConfidence(s string) model.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.ConfidenceHigh
	case "medium", "moderate":
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func parseMentionType(s string) model.MentionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "explicit":
		return model.MentionExplicit
	case "partial":
		return model.MentionPartial
	default:
		return model.MentionFuzzy
	}
}

func dropEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// cleanJSON strips markdown fences and leading/trailing prose around a
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
