package ratelimit

import "strings"

// unlimited marks routes that are never limited
var unlimited = &EndpointConfig{}

// MatchEndpoint finds the configuration for a request. Exact paths win over
// prefixes. It returns nil when the default limit applies.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && (path == "/health" || strings.HasPrefix(path, "/static/")) {
		return unlimited
	}

	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}
	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}
	return nil
}
