// Package policy holds the system allow rules that run before any user
// policy is consulted. The rules are static, deterministic and never call
// the AI judge.
package policy

import (
	"net/url"
	"strings"

	"github.com/nikhilbhutani/pagegate/internal/domainname"
	"github.com/nikhilbhutani/pagegate/internal/models"
)

// Target is a page whose URL has already been parsed and normalized.
type Target struct {
	URL    *url.URL
	Host   string
	Domain string
	Page   models.PageDescriptor
}

// Match is the outcome of a system rule.
type Match struct {
	Decision models.Decision
	Reason   models.Reason
	// Title is the display title recorded in the audit log.
	Title string
}

// Check is a single system rule.
type Check interface {
	Name() string
	Evaluate(t Target) (Match, bool)
}

// Table evaluates its checks in order; the first match wins.
type Table struct {
	checks []Check
}

// NewTable returns the default system table: infrastructure, then search
// engines, then video-platform browsing.
func NewTable(infraDomains []string) *Table {
	return &Table{checks: []Check{
		NewInfraCheck(infraDomains),
		NewSearchCheck(),
		NewVideoBrowseCheck(),
	}}
}

// Evaluate runs the checks in order. Targets without a host never match.
func (t *Table) Evaluate(target Target) (Match, bool) {
	if target.Host == "" || target.URL == nil {
		return Match{}, false
	}
	for _, c := range t.checks {
		if m, ok := c.Evaluate(target); ok {
			return m, true
		}
	}
	return Match{}, false
}

// InfraCheck allows operator-owned domains. Its matches are never audited.
type InfraCheck struct {
	domains []string
}

func NewInfraCheck(domains []string) *InfraCheck {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &InfraCheck{domains: normalized}
}

func (c *InfraCheck) Name() string { return "infra" }

func (c *InfraCheck) Evaluate(t Target) (Match, bool) {
	if domainname.MatchesAny(t.Host, c.domains) || domainname.MatchesAny(t.Domain, c.domains) {
		return Match{Decision: models.DecisionAllow, Reason: models.ReasonInfra, Title: t.Page.Title}, true
	}
	return Match{}, false
}

type searchEngine struct {
	name string
	// host is matched against the hostname with any leading "www." removed.
	// A trailing dot means a registrable country or generic suffix, such as
	// google.de or google.co.uk.
	host string
}

var searchEngines = []searchEngine{
	{"Google", "google."},
	{"Bing", "bing.com"},
	{"DuckDuckGo", "duckduckgo.com"},
	{"Yahoo", "search.yahoo.com"},
	{"Brave", "search.brave.com"},
	{"Ecosia", "ecosia.org"},
}

var searchPaths = map[string]bool{
	"":        true,
	"/":       true,
	"/search": true,
	"/webhp":  true,
	"/html":   true,
	"/web":    true,
}

// SearchCheck allows search engine home and result pages.
type SearchCheck struct{}

func NewSearchCheck() *SearchCheck { return &SearchCheck{} }

func (c *SearchCheck) Name() string { return "search" }

func (c *SearchCheck) Evaluate(t Target) (Match, bool) {
	host := strings.TrimPrefix(t.Host, "www.")
	path := strings.TrimSuffix(strings.ToLower(t.URL.Path), "/")
	if path == "" {
		path = "/"
	}
	if !searchPaths[path] {
		return Match{}, false
	}

	for _, e := range searchEngines {
		if !matchesEngine(host, e.host) {
			continue
		}
		query := t.Page.SearchQuery
		if query == "" {
			q := t.URL.Query()
			query = q.Get("q")
			if query == "" {
				query = q.Get("p")
			}
		}
		title := e.name + " Home"
		if query = strings.TrimSpace(query); query != "" {
			title = e.name + ` Search: "` + query + `"`
		}
		return Match{Decision: models.DecisionAllow, Reason: models.ReasonSearch, Title: title}, true
	}
	return Match{}, false
}

func matchesEngine(host, marker string) bool {
	if strings.HasSuffix(marker, ".") {
		return strings.HasPrefix(host, marker) && domainname.Reduce(host) == host
	}
	return host == marker
}

const videoPlatformDomain = "youtube.com"

var playbackPrefixes = []string{"/watch", "/shorts", "/live", "/embed", "/clip"}

// VideoBrowseCheck allows the video platform's non-playback pages: home,
// search results, channels and subscriptions.
type VideoBrowseCheck struct{}

func NewVideoBrowseCheck() *VideoBrowseCheck { return &VideoBrowseCheck{} }

func (c *VideoBrowseCheck) Name() string { return "navigation" }

func (c *VideoBrowseCheck) Evaluate(t Target) (Match, bool) {
	if !domainname.Matches(t.Host, videoPlatformDomain) {
		return Match{}, false
	}
	path := strings.ToLower(t.URL.Path)
	for _, p := range playbackPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return Match{}, false
		}
	}

	title := t.Page.SearchQuery
	if title == "" {
		title = t.URL.Query().Get("search_query")
	}
	if title == "" {
		title = t.Page.Title
	}
	return Match{Decision: models.DecisionAllow, Reason: models.ReasonNavigation, Title: title}, true
}
