package model

import "strings"

// TargetBrand identifies the brand whose visibility is being measured.
type TargetBrand struct {
	Name    string   `json:"name"`
	Domain  string   `json:"domain"`
	Aliases []string `json:"aliases,omitempty"`
}

// NormalizedName returns the lowercased, trimmed brand name used as the
// cross-trial aggregation key.
func (b TargetBrand) NormalizedName() string {
	return NormalizeBrandName(b.Name)
}

// NormalizeBrandName lowercases and trims a brand name so that spelling
// variants like "Acme " and "acme" aggregate under one key.
func NormalizeBrandName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Confidence is a coarse reliability grade attached to extractions and
// target-brand results.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MentionType describes how literally a brand appears in answer text.
type MentionType string

const (
	MentionExplicit MentionType = "explicit"
	MentionPartial  MentionType = "partial"
	MentionFuzzy    MentionType = "fuzzy"
)

// VisibilityType classifies how the target brand showed up in one trial.
type VisibilityType string

const (
	VisibilityMentioned VisibilityType = "mentioned"
	VisibilitySupported VisibilityType = "supported"
	VisibilityAbsent    VisibilityType = "absent"
)

// SourceReference is one cited source attached to a trial answer.
// Sources are deduplicated across the ensemble by canonical URL.
type SourceReference struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult is one entry from the engine's search context, when the
// engine exposes it separately from citations.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// MentionedBrand is one brand the extraction pass found referenced in the
// answer text, with literal evidence spans.
type MentionedBrand struct {
	Name            string      `json:"name"`
	CanonicalDomain string      `json:"canonical_domain,omitempty"`
	AnswerSpans     []string    `json:"answer_spans,omitempty"`
	CitationURLs    []string    `json:"citation_urls,omitempty"`
	Confidence      Confidence  `json:"confidence"`
	MentionType     MentionType `json:"mention_type"`
}

// SupportedBrand is one brand backed by cited sources, whether or not it
// is named in the answer text.
type SupportedBrand struct {
	Name            string     `json:"name"`
	CanonicalDomain string     `json:"canonical_domain,omitempty"`
	SourceURLs      []string   `json:"source_urls,omitempty"`
	Confidence      Confidence `json:"confidence"`
}

// ExtractedBrand is the merged per-trial view of one brand. Invariant:
// IsMentioned or IsSupported holds for every brand in a trial's result set.
type ExtractedBrand struct {
	Name           string     `json:"name"`
	NormalizedName string     `json:"normalized_name"`
	Domain         string     `json:"domain,omitempty"`
	IsMentioned    bool       `json:"is_mentioned"`
	IsSupported    bool       `json:"is_supported"`
	MentionCount   int        `json:"mention_count"`
	SourceCount    int        `json:"source_count"`
	Confidence     Confidence `json:"confidence"`
}

// SourceAnalysis summarizes what the extractor saw in a trial's sources.
type SourceAnalysis struct {
	TotalSources     int `json:"total_sources"`
	CandidateDomains int `json:"candidate_domains"`
	ExcludedDomains  int `json:"excluded_domains"`
}

// BrandExtractionResult is the Brand Extractor output for one trial.
type BrandExtractionResult struct {
	MentionedBrands  []MentionedBrand `json:"mentioned_brands"`
	SupportedBrands  []SupportedBrand `json:"supported_brands"`
	AllBrands        []ExtractedBrand `json:"all_brands"`
	UncertaintyNotes []string         `json:"uncertainty_notes,omitempty"`
	SourceAnalysis   SourceAnalysis   `json:"source_analysis"`
}

// BrandVisibility resolves whether the target brand specifically is
// visible in one trial's extraction.
type BrandVisibility struct {
	Visible        bool           `json:"visible"`
	VisibilityType VisibilityType `json:"visibility_type"`
	MentionCount   int            `json:"mention_count"`
	SourceCount    int            `json:"source_count"`
	Evidence       []string       `json:"evidence,omitempty"`
	Confidence     Confidence     `json:"confidence"`
}
