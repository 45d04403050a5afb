package model

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
)

// Engine identifies a generative answer engine.
type Engine string

const (
	EngineChatGPT    Engine = "chatgpt"
	EnginePerplexity Engine = "perplexity"
	EngineGemini     Engine = "gemini"
	EngineGrok       Engine = "grok"
)

// Engines lists every supported engine.
var Engines = []Engine{EngineChatGPT, EnginePerplexity, EngineGemini, EngineGrok}

// ParseEngine validates an engine identifier.
func ParseEngine(s string) (Engine, error) {
	for _, e := range Engines {
		if string(e) == s {
			return e, nil
		}
	}
	return "", eris.Errorf("model: unknown engine %q", s)
}

// PresenceLevel classifies how often a brand appears across trials.
type PresenceLevel string

const (
	PresenceDefinite     PresenceLevel = "definite_present"
	PresencePossible     PresenceLevel = "possible_present"
	PresenceInconclusive PresenceLevel = "inconclusive"
	PresenceLikelyAbsent PresenceLevel = "likely_absent"
)

// SimulationRequest is the caller contract for one ensemble run.
type SimulationRequest struct {
	Engine                Engine      `json:"engine"`
	Query                 string      `json:"query"`
	Language              string      `json:"language"`
	Region                string      `json:"region"`
	Target                TargetBrand `json:"target"`
	RunCount              int         `json:"run_count"`
	EnableVarianceMetrics bool        `json:"enable_variance_metrics,omitempty"`
}

// Validate checks the request against the bounded run-count range and
// the BCP-47 language grammar.
func (r SimulationRequest) Validate(minRuns, maxRuns int) error {
	if _, err := ParseEngine(string(r.Engine)); err != nil {
		return err
	}
	if r.Query == "" {
		return eris.New("model: query is required")
	}
	if r.RunCount < minRuns || r.RunCount > maxRuns {
		return eris.Errorf("model: run_count %d outside [%d, %d]", r.RunCount, minRuns, maxRuns)
	}
	if r.Language != "" {
		if _, err := language.Parse(r.Language); err != nil {
			return eris.Wrapf(err, "model: invalid language %q", r.Language)
		}
	}
	return nil
}

// TrialResult is the outcome of one trial. Exactly one of the success
// fields (AnswerText, Sources, Extraction) or Error is populated.
type TrialResult struct {
	Index      int                    `json:"index"`
	Success    bool                   `json:"success"`
	AnswerText string                 `json:"answer_text,omitempty"`
	Sources    []SourceReference      `json:"sources,omitempty"`
	Extraction *BrandExtractionResult `json:"extraction,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMS int64                  `json:"duration_ms,omitempty"`
}

// RunDetail records one trial's contribution to a cross-trial brand row.
type RunDetail struct {
	RunIndex     int  `json:"run_index"`
	IsMentioned  bool `json:"is_mentioned"`
	IsSupported  bool `json:"is_supported"`
	MentionCount int  `json:"mention_count"`
	SourceCount  int  `json:"source_count"`
}

// EnsembleBrandResult is the cross-trial aggregation for any one brand.
// Invariant: Frequency = AppearanceCount / TotalRuns.
type EnsembleBrandResult struct {
	Name             string        `json:"name"`
	NormalizedName   string        `json:"normalized_name"`
	Domain           string        `json:"domain,omitempty"`
	Frequency        float64       `json:"frequency"`
	AppearanceCount  int           `json:"appearance_count"`
	TotalRuns        int           `json:"total_runs"`
	PresenceLevel    PresenceLevel `json:"presence_level"`
	MentionFrequency float64       `json:"mention_frequency"`
	SourceFrequency  float64       `json:"source_frequency"`
	RunDetails       []RunDetail   `json:"run_details,omitempty"`
	Evidence         string        `json:"evidence,omitempty"`
}

// TargetRunResult is the per-trial visibility record for the target brand.
type TargetRunResult struct {
	RunIndex       int            `json:"run_index"`
	Visible        bool           `json:"visible"`
	VisibilityType VisibilityType `json:"visibility_type"`
	Evidence       []string       `json:"evidence,omitempty"`
}

// VarianceMetrics carries the optional statistical-significance outputs
// for the target brand's visibility frequency, computed from the
// N-trial Bernoulli sample.
type VarianceMetrics struct {
	ConfidenceLower float64 `json:"confidence_lower"`
	ConfidenceUpper float64 `json:"confidence_upper"`
	Significant     bool    `json:"significant"`
	PValue          float64 `json:"p_value"`
	StandardError   float64 `json:"standard_error"`
}

// TargetBrandResult is the cross-trial measurement of the target brand.
type TargetBrandResult struct {
	Name                string            `json:"name"`
	Domain              string            `json:"domain"`
	VisibilityFrequency float64           `json:"visibility_frequency"`
	PresenceLevel       PresenceLevel     `json:"presence_level"`
	Confidence          Confidence        `json:"confidence"`
	MentionedInRuns     int               `json:"mentioned_in_runs"`
	SupportedInRuns     int               `json:"supported_in_runs"`
	TotalRuns           int               `json:"total_runs"`
	RunResults          []TargetRunResult `json:"run_results"`
	Summary             string            `json:"summary"`
	VarianceMetrics     *VarianceMetrics  `json:"variance_metrics,omitempty"`
}

// EnsembleSimulationResult is the full measurement produced by one
// ensemble invocation. None of these objects is persisted inside the
// engine; the caller stores a serialized summary.
type EnsembleSimulationResult struct {
	Engine                 Engine                `json:"engine"`
	Keyword                string                `json:"keyword"`
	Region                 string                `json:"region"`
	TotalRuns              int                   `json:"total_runs"`
	SuccessfulRuns         int                   `json:"successful_runs"`
	TargetBrandResult      *TargetBrandResult    `json:"target_brand_result,omitempty"`
	AllBrands              []EnsembleBrandResult `json:"all_brands"`
	AllSources             []SourceReference     `json:"all_sources"`
	UniqueDomains          []string              `json:"unique_domains"`
	RepresentativeAnswer   string                `json:"representative_answer"`
	RepresentativeRunIndex int                   `json:"representative_run_index"`
	RunResults             []TrialResult         `json:"run_results"`
	Notes                  []string              `json:"notes,omitempty"`
}

// SimulationStatus tracks a stored simulation through its lifecycle.
type SimulationStatus string

const (
	SimulationQueued   SimulationStatus = "queued"
	SimulationRunning  SimulationStatus = "running"
	SimulationComplete SimulationStatus = "complete"
	SimulationFailed   SimulationStatus = "failed"
)

// Simulation is a stored ensemble run (the caller-side persistence of a
// serialized EnsembleSimulationResult).
type Simulation struct {
	ID        string                    `json:"id"`
	Request   SimulationRequest         `json:"request"`
	Status    SimulationStatus          `json:"status"`
	Result    *EnsembleSimulationResult `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}
