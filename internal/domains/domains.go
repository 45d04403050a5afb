// Package domains canonicalizes URLs and matches source domains to
// brands. Engines cite the same brand under many domain variants
// (ccTLDs, subdomains, alias spellings), so matching falls back from
// exact registrable-domain equality to core-name and alias comparison.
package domains

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams are stripped during canonicalization; they vary per
// click and would defeat URL-level source deduplication.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"msclkid":      true,
	"mc_cid":       true,
	"mc_eid":       true,
	"ref":          true,
	"ref_src":      true,
	"igshid":       true,
}

// CanonicalizeURL normalizes a URL for deduplication: https scheme
// (unless localhost or a literal IP), lowercased host, tracking query
// parameters and fragment stripped, default ports and the trailing
// slash removed (except for the root path). Non-parseable input falls
// back to a lowercased, trimmed string; it never fails.
func CanonicalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	withScheme := trimmed
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}

	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(trimmed)
	}

	host := strings.ToLower(u.Hostname())

	scheme := "https"
	if host == "localhost" || net.ParseIP(host) != nil {
		scheme = u.Scheme
		if scheme == "" {
			scheme = "http"
		}
	}

	port := u.Port()
	if port == "80" && scheme == "http" || port == "443" && scheme == "https" {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}

	path := u.EscapedPath()
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	canonical := scheme + "://" + host + path
	if encoded := q.Encode(); encoded != "" {
		canonical += "?" + encoded
	}
	return canonical
}

// RegistrableDomain returns the eTLD+1 of a URL or bare host (e.g.
// "example.co.uk" for "https://www.blog.example.co.uk/page"), using
// public-suffix-list-aware parsing. A leading "www." is stripped. When
// the suffix list cannot resolve the host it falls back to naive
// string stripping.
func RegistrableDomain(urlOrHost string) string {
	host := hostOf(urlOrHost)
	if host == "" {
		return ""
	}

	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}

	// Fallback: keep the last two labels.
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return host
}

// DomainCore returns the registrable domain minus its public suffix
// ("example" for "example.co.uk").
func DomainCore(urlOrHost string) string {
	registrable := RegistrableDomain(urlOrHost)
	if registrable == "" {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(registrable)
	if suffix != "" && suffix != registrable {
		return strings.TrimSuffix(registrable, "."+suffix)
	}

	// Fallback: first label.
	if idx := strings.Index(registrable, "."); idx > 0 {
		return registrable[:idx]
	}
	return registrable
}

// minCoreLen guards core-name and alias comparison against generic one-
// and two-letter collisions ("go", "x").
const minCoreLen = 3

// IsBrandDomainMatch reports whether a cited source URL belongs to the
// brand. Three tiers, in order: registrable domains equal; core names
// equal with length >= 3; any alias of length >= 3 contained in, or
// containing, the source's registrable domain or core name.
func IsBrandDomainMatch(sourceURL, brandDomain string, aliases []string) bool {
	srcRegistrable := RegistrableDomain(sourceURL)
	brandRegistrable := RegistrableDomain(brandDomain)
	if srcRegistrable == "" || brandRegistrable == "" {
		return false
	}

	if srcRegistrable == brandRegistrable {
		return true
	}

	srcCore := DomainCore(sourceURL)
	brandCore := DomainCore(brandDomain)
	if srcCore != "" && srcCore == brandCore && len(srcCore) >= minCoreLen {
		return true
	}

	for _, alias := range aliases {
		a := strings.ToLower(strings.TrimSpace(alias))
		a = strings.ReplaceAll(a, " ", "")
		if len(a) < minCoreLen {
			continue
		}
		if strings.Contains(srcRegistrable, a) || strings.Contains(a, srcRegistrable) {
			return true
		}
		if srcCore != "" && (strings.Contains(srcCore, a) || strings.Contains(a, srcCore)) {
			return true
		}
	}

	return false
}

// hostOf extracts a lowercased hostname from a URL or bare host,
// dropping a leading "www.".
func hostOf(urlOrHost string) string {
	s := strings.TrimSpace(urlOrHost)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			s = u.Hostname()
		}
	} else if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	s = strings.ToLower(s)
	s = strings.TrimPrefix(s, "www.")
	if s == "" || strings.ContainsAny(s, " \t") {
		return ""
	}
	return s
}
