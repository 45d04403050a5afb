package extract

import (
	"fmt"
	"strings"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// CheckBrandVisibility resolves whether the target brand specifically
// is visible in one trial's extraction. A brand matches by normalized
// name (including aliases) or through the domain matcher against the
// extracted canonical domain and evidence URLs. Mentioned outranks
// supported when both hold.
func CheckBrandVisibility(extraction *model.BrandExtractionResult, target model.TargetBrand) model.BrandVisibility {
	if extraction == nil {
		return model.BrandVisibility{VisibilityType: model.VisibilityAbsent, Confidence: model.ConfidenceLow}
	}

	result := model.BrandVisibility{
		VisibilityType: model.VisibilityAbsent,
		Confidence:     model.ConfidenceLow,
	}

	for _, mb := range extraction.MentionedBrands {
		if !matchesTarget(mb.Name, mb.CanonicalDomain, mb.CitationURLs, target) {
			continue
		}
		result.Visible = true
		result.VisibilityType = model.VisibilityMentioned
		spans := len(mb.AnswerSpans)
		if spans == 0 {
			spans = 1
		}
		result.MentionCount += spans
		result.Confidence = maxConfidence(result.Confidence, mb.Confidence)
		for _, span := range mb.AnswerSpans {
			result.Evidence = append(result.Evidence, fmt.Sprintf("answer: %q", span))
		}
	}

	for _, sb := range extraction.SupportedBrands {
		if !matchesTarget(sb.Name, sb.CanonicalDomain, sb.SourceURLs, target) {
			continue
		}
		result.Visible = true
		if result.VisibilityType == model.VisibilityAbsent {
			result.VisibilityType = model.VisibilitySupported
		}
		sources := len(sb.SourceURLs)
		if sources == 0 {
			sources = 1
		}
		result.SourceCount += sources
		result.Confidence = maxConfidence(result.Confidence, sb.Confidence)
		for _, u := range sb.SourceURLs {
			result.Evidence = append(result.Evidence, "source: "+u)
		}
	}

	return result
}

// matchesTarget applies name matching first, then the domain matcher.
func matchesTarget(name, canonicalDomain string, evidenceURLs []string, target model.TargetBrand) bool {
	normalized := model.NormalizeBrandName(name)
	if normalized != "" {
		if normalized == target.NormalizedName() {
			return true
		}
		for _, alias := range target.Aliases {
			if normalized == model.NormalizeBrandName(alias) {
				return true
			}
		}
	}

	if target.Domain == "" {
		return false
	}
	if canonicalDomain != "" && domains.IsBrandDomainMatch(canonicalDomain, target.Domain, target.Aliases) {
		return true
	}
	for _, u := range evidenceURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if domains.IsBrandDomainMatch(u, target.Domain, target.Aliases) {
			return true
		}
	}
	return false
}
