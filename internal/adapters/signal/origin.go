package signal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originPolicy decides which browser origins may open a socket. Requests
// without an Origin header come from non-browser clients and pass; a page
// served by this host passes; anything else must be listed.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			log.Warn().Str("module", "signal").Str("origin", o).Msg("ignoring invalid allowed origin")
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

func (p originPolicy) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || p.allowAll {
		return true
	}
	u, err := url.Parse(header)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if n, ok := normalizeOrigin(header); ok {
		if _, ok := p.allowed[n]; ok {
			return true
		}
	}
	log.Warn().Str("module", "signal").Str("origin", header).Str("remote", r.RemoteAddr).Msg("blocked cross-origin socket")
	return false
}
