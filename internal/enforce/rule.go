// Package enforce maintains the single redirect rule that sends navigation to the assigned problem.
package enforce

import (
	"net/url"
	"slices"
	"strings"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// RuleID identifies the only dynamic rule this program installs.
const RuleID = 1

// ExcludedInitiatorDomains are never redirected.
var ExcludedInitiatorDomains = []string{
	"leetcode.com",
	"www.leetcode.com",
	"developer.chrome.com",
}

// Rule is a declarative redirect rule as applied by the browser.
type Rule struct {
	ID                       int      `json:"id"`
	Priority                 int      `json:"priority"`
	RedirectURL              string   `json:"redirectUrl"`
	URLFilter                string   `json:"urlFilter"`
	ExcludedInitiatorDomains []string `json:"excludedInitiatorDomains"`
	ResourceTypes            []string `json:"resourceTypes"`
}

// RedirectRule builds the rule that sends top-level navigation to target.
func RedirectRule(target string) Rule {
	return Rule{
		ID:                       RuleID,
		Priority:                 1,
		RedirectURL:              target,
		URLFilter:                "*://*/*",
		ExcludedInitiatorDomains: slices.Clone(ExcludedInitiatorDomains),
		ResourceTypes:            []string{model.ResourceMainDoc},
	}
}

// Matches reports whether the rule redirects a navigation to rawURL.
func (r Rule) Matches(rawURL, resourceType string) bool {
	if !slices.Contains(r.ResourceTypes, resourceType) {
		return false
	}
	if IsInternalPage(rawURL) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range r.ExcludedInitiatorDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return false
		}
	}
	return rawURL != r.RedirectURL
}

// IsPracticeSite reports whether rawURL belongs to the practice site.
func IsPracticeSite(rawURL string) bool {
	return strings.Contains(rawURL, model.PracticeSiteURL)
}

// IsInternalPage reports browser or extension pages that must stay reachable.
func IsInternalPage(rawURL string) bool {
	for _, prefix := range []string{"chrome-extension:", "moz-extension:", "chrome:", "about:"} {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}
