package extract

import (
	"strings"

	"github.com/ellipsesearch/visibility-cli/internal/domains"
)

// excludedDomains are marketplaces, review aggregators and generic
// content platforms. They are where brands get discussed, never the
// brand itself, so they are filtered out of candidate building.
var excludedDomains = map[string]bool{
	// Marketplaces
	"amazon.com":     true,
	"ebay.com":       true,
	"walmart.com":    true,
	"etsy.com":       true,
	"aliexpress.com": true,
	"alibaba.com":    true,
	"target.com":     true,
	"bestbuy.com":    true,

	// Review aggregators and directories
	"trustpilot.com":     true,
	"g2.com":             true,
	"capterra.com":       true,
	"getapp.com":         true,
	"softwareadvice.com": true,
	"yelp.com":           true,
	"tripadvisor.com":    true,
	"glassdoor.com":      true,
	"bbb.org":            true,
	"sitejabber.com":     true,
	"producthunt.com":    true,

	// Generic content and social platforms
	"wikipedia.org":        true,
	"wikihow.com":          true,
	"reddit.com":           true,
	"quora.com":            true,
	"medium.com":           true,
	"substack.com":         true,
	"youtube.com":          true,
	"tiktok.com":           true,
	"facebook.com":         true,
	"instagram.com":        true,
	"twitter.com":          true,
	"x.com":                true,
	"linkedin.com":         true,
	"pinterest.com":        true,
	"github.com":           true,
	"stackoverflow.com":    true,
	"news.ycombinator.com": true,

	// Publishers
	"forbes.com":          true,
	"nytimes.com":         true,
	"theguardian.com":     true,
	"businessinsider.com": true,
	"techcrunch.com":      true,
	"wired.com":           true,
	"cnet.com":            true,
	"pcmag.com":           true,
	"zdnet.com":           true,
	"theverge.com":        true,

	// Search engines
	"google.com":     true,
	"bing.com":       true,
	"yahoo.com":      true,
	"duckduckgo.com": true,
}

// isExcludedDomain reports whether a registrable domain (or any of its
// parents) is on the blocklist.
func isExcludedDomain(registrable string) bool {
	d := strings.ToLower(strings.TrimSpace(registrable))
	if d == "" {
		return true
	}
	if excludedDomains[d] {
		return true
	}
	// Cover hosts like "news.ycombinator.com" listed with subdomain.
	for blocked := range excludedDomains {
		if strings.HasSuffix(d, "."+blocked) {
			return true
		}
	}
	return false
}

// ExcludedDomainList returns the blocklist as a slice, for use as an
// exclusion filter when scanning answer text for domain mentions.
func ExcludedDomainList() []string {
	out := make([]string, 0, len(excludedDomains))
	for d := range excludedDomains {
		out = append(out, d)
	}
	return out
}

// isExcludedURL reports whether a source URL resolves to a blocked domain.
func isExcludedURL(sourceURL string) bool {
	return isExcludedDomain(domains.RegistrableDomain(sourceURL))
}
