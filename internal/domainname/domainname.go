// Package domainname reduces URLs to a comparable registrable domain.
//
// The reduction is a label-count heuristic, not a public suffix list lookup:
// a host whose last two labels are both three characters or shorter (co.uk,
// com.au) keeps three labels, every other host keeps two. Hosts such as
// "sub.ab.io" are therefore over-kept and hosts under long multi-part
// suffixes are under-kept.
package domainname

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Host parses raw as a URL and returns its lowercased hostname. A missing
// scheme is treated as http. ok is false when no hostname can be extracted.
func Host(raw string) (host string, ok bool) {
	u, ok := Parse(raw)
	if !ok {
		return "", false
	}
	return u.Hostname(), true
}

// Parse parses raw the same way Host does and returns the URL with its
// hostname lowercased and converted to ASCII.
func Parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return nil, false
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	hostport := host
	if strings.Contains(host, ":") {
		hostport = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		hostport += ":" + port
	}
	u.Host = hostport
	return u, true
}

// Normalize returns the registrable domain of raw, or ok=false when raw does
// not parse into a hostname.
func Normalize(raw string) (domain string, ok bool) {
	host, ok := Host(raw)
	if !ok {
		return "", false
	}
	return Reduce(host), true
}

// Reduce applies the registrable-domain heuristic to an already parsed host.
func Reduce(host string) string {
	host = strings.ToLower(host)
	labels := strings.Split(host, ".")
	n := len(labels)
	if n < 2 {
		return host
	}
	if n >= 3 && len(labels[n-2]) <= 3 && len(labels[n-1]) <= 3 {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// Matches reports whether candidate equals rule or is a subdomain of it.
func Matches(candidate, rule string) bool {
	if candidate == "" || rule == "" {
		return false
	}
	return candidate == rule || strings.HasSuffix(candidate, "."+rule)
}

// MatchesAny reports whether candidate matches any of rules.
func MatchesAny(candidate string, rules []string) bool {
	for _, r := range rules {
		if Matches(candidate, strings.ToLower(strings.TrimSpace(r))) {
			return true
		}
	}
	return false
}
