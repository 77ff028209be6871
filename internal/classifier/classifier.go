// Package classifier maps URLs to attributable domains and labels those
// domains as productive or not.
package classifier

import (
	"net"
	"net/url"
	"strings"

	"github.com/miekg/dns"
)

// DefaultProductiveSites is the built-in allow-list.
var DefaultProductiveSites = []string{
	"leetcode.com",
	"github.com",
	"stackoverflow.com",
	"w3schools.com",
	"chat.openai.com",
	"coursera.org",
	"udemy.com",
	"khanacademy.org",
	"medium.com",
	"geeksforgeeks.org",
	"educative.io",
	"hackerrank.com",
	"codecademy.com",
	"edx.org",
	"notion.so",
	"readthedocs.io",
	"codechef.com",
	"codeforces.com",
	"atcoder.jp",
	"vjudge.net",
	"brilliant.org",
	"projecteuler.net",
	"topcoder.com",
	"exercism.org",
	"interviewbit.com",
	"slack.com",
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"linkedin.com",
	"openai.com",
	"chatgpt.com",
}

// Classifier decides whether a domain counts as productive.
type Classifier struct {
	sites []string
}

// New creates a classifier from the default allow-list plus extra entries.
func New(extra ...string) *Classifier {
	sites := make([]string, 0, len(DefaultProductiveSites)+len(extra))
	seen := make(map[string]bool)
	for _, s := range append(append([]string{}, DefaultProductiveSites...), extra...) {
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		sites = append(sites, s)
	}
	return &Classifier{sites: sites}
}

// Sites returns the effective allow-list.
func (c *Classifier) Sites() []string {
	return append([]string(nil), c.sites...)
}

// IsProductive reports whether domain equals an allow-list entry or is a
// sub-domain of one. Matching is on label boundaries, so "notgithub.com"
// does not match "github.com".
func (c *Classifier) IsProductive(domain string) bool {
	domain = normalize(domain)
	if domain == "" {
		return false
	}
	for _, site := range c.sites {
		if dns.IsSubDomain(site, domain) {
			return true
		}
	}
	return false
}

// ExtractDomain returns the attributable domain of rawURL, or "" when the URL
// cannot be attributed (unparsable, internal browser pages, no host).
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	return normalize(u.Host)
}

// normalize lower-cases a host, drops any port and trailing dot, and strips a
// single leading "www." label.
func normalize(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	if _, ok := dns.IsDomainName(host); !ok {
		return ""
	}
	return host
}
