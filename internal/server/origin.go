package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// originPolicy decides which browser origins may open a websocket. Origins are
// compared as lower-cased scheme://host with default ports stripped.
type originPolicy struct {
	wildcard bool
	origins  map[string]struct{}
	log      *zap.Logger
}

func newOriginPolicy(configured []string, log *zap.Logger) originPolicy {
	origins, wildcard, invalid := normalizeOrigins(configured)
	for _, o := range invalid {
		log.Warn("ignoring invalid origin in configuration", zap.String("origin", o))
	}
	return originPolicy{
		wildcard: wildcard,
		origins:  lo.SliceToMap(origins, func(o string) (string, struct{}) { return o, struct{}{} }),
		log:      log,
	}
}

// normalizeOrigins splits configured entries into canonical origins, the
// "*" wildcard and entries that are not absolute URLs.
func normalizeOrigins(configured []string) (origins []string, wildcard bool, invalid []string) {
	for _, raw := range configured {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
		case entry == "*":
			wildcard = true
		default:
			if o, ok := canonicalOrigin(entry); ok {
				origins = append(origins, o)
			} else {
				invalid = append(invalid, raw)
			}
		}
	}
	return lo.Uniq(origins), wildcard, invalid
}

func canonicalOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, true
}

// allows reports whether r carries an acceptable Origin header. Requests
// without one are refused.
func (p originPolicy) allows(r *http.Request) bool {
	o, ok := canonicalOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	if p.wildcard {
		return true
	}
	_, ok = p.origins[o]
	return ok
}

// check is the upgrader's CheckOrigin hook.
func (p originPolicy) check(r *http.Request) bool {
	if p.allows(r) {
		return true
	}
	p.log.Warn("blocked websocket connection from disallowed origin",
		zap.String("origin", r.Header.Get("Origin")),
		zap.String("addr", r.RemoteAddr))
	return false
}
