package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// extractionSystemText instructs the model to act as a dedicated
// brand-recall pass. Extraction is deliberately separate from answer
// generation: a model explicitly asked to list every brand referenced
// in a text recalls more than post-hoc string matching, and returns
// machine-checkable evidence (spans, URLs) instead of a paraphrase.
const extractionSystemText = `You are a brand-mention auditor. Given an AI engine's answer and its cited sources, list every brand referenced. A brand is MENTIONED when its name appears in the answer text (explicitly, partially, or in a recognizable fuzzy form). A brand is SUPPORTED when a cited source belongs to it, whether or not the answer names it. Favor recall: include borderline cases with low confidence rather than omitting them. Respond with ONLY a JSON object matching the requested schema — no prose, no markdown fences.`

const extractionPromptFormat = `Audit the following answer from the "%s" engine for brand references.

Candidate brands to check (not exhaustive — also report brands absent from this list):
%s

Answer text:
"""
%s
"""

Cited sources:
%s

Return a JSON object with exactly this shape:
{
  "mentioned_brands": [
    {"name": "...", "canonical_domain": "...", "answer_spans": ["literal quote from the answer"], "citation_urls": ["..."], "confidence": "high|medium|low", "mention_type": "explicit|partial|fuzzy"}
  ],
  "supported_brands": [
    {"name": "...", "canonical_domain": "...", "source_urls": ["..."], "confidence": "high|medium|low"}
  ],
  "uncertainty_notes": ["..."]
}`

// maxAnswerChars caps the answer text injected into the prompt.
const maxAnswerChars = 12000

// buildExtractionPrompt assembles the user prompt for one trial.
func buildExtractionPrompt(engine model.Engine, answerText string, sources []model.SourceReference, candidates []Candidate) string {
	return fmt.Sprintf(extractionPromptFormat,
		engine,
		formatCandidates(candidates),
		sanitizeAnswer(answerText, maxAnswerChars),
		formatSources(sources),
	)
}

func formatCandidates(candidates []Candidate) string {
	if len(candidates) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range candidates {
		b.WriteString("- ")
		b.WriteString(c.Name)
		if c.Domain != "" {
			fmt.Fprintf(&b, " (%s)", c.Domain)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSources(sources []model.SourceReference) string {
	if len(sources) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s", i+1, s.URL)
		if s.Title != "" {
			fmt.Fprintf(&b, " — %s", s.Title)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// sanitizeAnswer strips control characters and caps the length so a
// runaway answer cannot blow the prompt budget.
func sanitizeAnswer(text string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}
