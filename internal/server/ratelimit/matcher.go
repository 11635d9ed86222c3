package ratelimit

import (
	"strings"
)

// unlimited is returned for paths that are never throttled.
var unlimited = EndpointConfig{}

// MatchEndpoint finds the endpoint configuration for a request.
// An exact path wins. Otherwise the longest configured prefix ending in "/" applies,
// so "/score/" covers "/score/face" and "/score/full-body" alike.
// Returns nil when nothing matches and the default limit should apply.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		cfg := unlimited
		return &cfg
	}

	var best *EndpointConfig
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method != method {
			continue
		}
		if cfg.Path == path {
			return cfg
		}
		if strings.HasSuffix(cfg.Path, "/") && strings.HasPrefix(path, cfg.Path) {
			if best == nil || len(cfg.Path) > len(best.Path) {
				best = cfg
			}
		}
	}
	return best
}
