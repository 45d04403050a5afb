package domains

import (
	"regexp"
	"strings"

	"github.com/ellipsesearch/visibility-cli/internal/model"
)

// domainMentionRE matches bare domains and URLs inside free text.
// Requires at least one dot and a plausible TLD; tolerates an optional
// scheme, www prefix and port.
var domainMentionRE = regexp.MustCompile(
	`(?i)\b((?:https?://)?(?:www\.)?(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,24}|xn--[a-z0-9-]{2,59})(?::\d{2,5})?)`,
)

// ExtractDomainMentions finds domains referenced in answer text that
// the engine did not link as citations. Returns unique normalized
// hosts in order of first appearance. Email-like matches (preceded by
// "@") are skipped.
func ExtractDomainMentions(text string, excludes []string) []string {
	if text == "" {
		return nil
	}

	var found []string
	seen := make(map[string]bool)

	for _, loc := range domainMentionRE.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		raw := strings.TrimRight(text[loc[0]:loc[1]], ").,;:!?'\"”’]}>")

		host := hostOf(raw)
		if host == "" || !strings.Contains(host, ".") {
			continue
		}
		if isExcluded(host, excludes) || seen[host] {
			continue
		}
		seen[host] = true
		found = append(found, host)
	}

	return found
}

// MergeSources merges additional sources into an existing list, deduped
// by canonical URL. Existing entries win on collision (they carry the
// richer titles). Dedup is URL-level only: engines frequently cite
// several pages from one domain and those stay distinct.
func MergeSources(existing []model.SourceReference, additions []model.SourceReference) []model.SourceReference {
	merged := make([]model.SourceReference, 0, len(existing)+len(additions))
	seen := make(map[string]bool, len(existing))

	for _, s := range existing {
		key := CanonicalizeURL(s.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, s)
	}
	for _, s := range additions {
		key := CanonicalizeURL(s.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, s)
	}

	return merged
}

// SourcesFromMentions turns bare domain mentions into probable-URL
// source entries so they can participate in candidate building.
func SourcesFromMentions(hosts []string) []model.SourceReference {
	var sources []model.SourceReference
	seen := make(map[string]bool)
	for _, h := range hosts {
		host := hostOf(h)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		sources = append(sources, model.SourceReference{
			URL:   "https://" + host,
			Title: host,
		})
	}
	return sources
}

func isExcluded(host string, excludes []string) bool {
	for _, ex := range excludes {
		exn := strings.ToLower(strings.TrimSpace(ex))
		if exn == "" {
			continue
		}
		if host == exn || strings.HasSuffix(host, "."+exn) {
			return true
		}
	}
	return false
}
