// Package filter implements the include/exclude policy chain (spec.md
// §4.5, component C5), applied after resolution and before checking.
package filter

import (
	"regexp"
	"strings"

	"github.com/tariktz/linkwarden/internal/uri"
)

// Policy holds the compiled filter configuration. Order of evaluation
// matches spec.md §4.5 exactly.
type Policy struct {
	Include           []*regexp.Regexp
	Exclude           []*regexp.Regexp
	Schemes           map[string]struct{} // empty means "all schemes accepted"
	IncludeMail       bool
	ExcludePrivate    bool
	ExcludeLinkLocal  bool
	ExcludeLoopback   bool
	ExcludeAllPrivate bool // compound: private + link-local + loopback
	ExcludePaths      []*regexp.Regexp
	Offline           bool
}

// Reason explains why a Request was excluded, for diagnostics.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonIncludeMiss   Reason = "did not match include pattern"
	ReasonExcludeMatch  Reason = "matched exclude pattern"
	ReasonScheme        Reason = "scheme not in allow-list"
	ReasonMail          Reason = "mail checking disabled"
	ReasonPrivateIP     Reason = "private IP range excluded"
	ReasonLinkLocalIP   Reason = "link-local IP range excluded"
	ReasonLoopbackIP    Reason = "loopback IP range excluded"
	ReasonPathExclude   Reason = "matched path exclude pattern"
	ReasonOffline       Reason = "offline"
)

// Allow runs u through the policy chain. It returns (true, ReasonNone)
// when the request should proceed to checking, or (false, reason)
// otherwise — the pipeline turns any false result into a single
// Status{Excluded} (spec.md §4.5, §9 open question (a)).
func (p Policy) Allow(u uri.URI) (bool, Reason) {
	if p.Offline {
		return false, ReasonOffline
	}
	if len(p.Include) > 0 && !matchesAny(p.Include, u.String()) {
		return false, ReasonIncludeMiss
	}
	if matchesAny(p.Exclude, u.String()) {
		return false, ReasonExcludeMatch
	}
	if len(p.Schemes) > 0 {
		if _, ok := p.Schemes[strings.ToLower(u.URL().Scheme)]; !ok {
			return false, ReasonScheme
		}
	}
	if u.Kind == uri.Mail && !p.IncludeMail {
		return false, ReasonMail
	}
	if u.Kind == uri.Website {
		if (p.ExcludeLoopback || p.ExcludeAllPrivate) && u.IsLoopback() {
			return false, ReasonLoopbackIP
		}
		if (p.ExcludeLinkLocal || p.ExcludeAllPrivate) && u.IsLinkLocal() {
			return false, ReasonLinkLocalIP
		}
		if (p.ExcludePrivate || p.ExcludeAllPrivate) && u.IsPrivate() {
			return false, ReasonPrivateIP
		}
	}
	if matchesAny(p.ExcludePaths, u.URL().Path) {
		return false, ReasonPathExclude
	}
	return true, ReasonNone
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
