package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy enforces the configured Origin allow-list on WebSocket
// upgrade requests. A single "*" entry allows everything.
type originPolicy struct {
	log      *zap.SugaredLogger
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, log *zap.SugaredLogger) *originPolicy {
	p := &originPolicy{
		log:     log,
		allowed: make(map[string]struct{}, len(origins)),
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warnw("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	return p
}

// normalizeOrigin reduces an origin to lowercase scheme://host so that
// header comparison is case-insensitive and ignores paths.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p *originPolicy) allow(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}

	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, exists := p.allowed[normalized]
	return exists
}

// checkOrigin is handed to the websocket upgrader.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	if p.allow(r) {
		return true
	}
	p.log.Warnw("blocked websocket connection from disallowed origin",
		"origin", r.Header.Get("Origin"))
	return false
}
