package extract

import (
	"sort"
	"strings"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// Candidate is one brand the extraction pass is explicitly asked to
// check for.
type Candidate struct {
	Name   string
	Domain string
}

// BuildCandidates derives the candidate brand list from every distinct
// source and search-result domain, minus the blocklist, and always
// injects the target brand (and its aliases) so the extraction pass
// checks for it even when no source cites it.
func BuildCandidates(sources []model.SourceReference, searchResults []model.SearchResult, target model.TargetBrand) ([]Candidate, model.SourceAnalysis) {
	analysis := model.SourceAnalysis{TotalSources: len(sources)}

	byDomain := make(map[string]Candidate)
	for _, s := range sources {
		addCandidateDomain(byDomain, s.URL, &analysis)
	}
	for _, r := range searchResults {
		addCandidateDomain(byDomain, r.URL, &analysis)
	}

	candidates := make([]Candidate, 0, len(byDomain)+1+len(target.Aliases))
	for _, c := range byDomain {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Domain < candidates[j].Domain
	})

	// Target injection: skip duplicates if a source already cited the
	// brand's own domain.
	targetRegistrable := domains.RegistrableDomain(target.Domain)
	if _, cited := byDomain[targetRegistrable]; !cited && target.Name != "" {
		candidates = append(candidates, Candidate{Name: target.Name, Domain: targetRegistrable})
	}
	for _, alias := range target.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" || strings.EqualFold(alias, target.Name) {
			continue
		}
		candidates = append(candidates, Candidate{Name: alias, Domain: targetRegistrable})
	}

	analysis.CandidateDomains = len(byDomain)
	return candidates, analysis
}

func addCandidateDomain(byDomain map[string]Candidate, sourceURL string, analysis *model.SourceAnalysis) {
	registrable := domains.RegistrableDomain(sourceURL)
	if registrable == "" {
		return
	}
	if isExcludedDomain(registrable) {
		analysis.ExcludedDomains++
		return
	}
	if _, ok := byDomain[registrable]; ok {
		return
	}
	byDomain[registrable] = Candidate{
		Name:   humanizeDomain(registrable),
		Domain: registrable,
	}
}

// humanizeDomain maps a registrable domain to a readable candidate name
// ("acme-corp.io" -> "Acme Corp").
func humanizeDomain(registrable string) string {
	core := domains.DomainCore(registrable)
	if core == "" {
		return registrable
	}
	words := strings.FieldsFunc(core, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, w := range words {
		if len(w) <= 3 {
			// Short tokens are usually initialisms ("ibm", "aws").
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
