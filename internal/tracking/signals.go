package tracking

import (
	"net/http"
	"strings"
)

// Signals is the fixed set of request headers and connection details the
// pipeline looks at. Everything is copied out of the request so a Hit can
// outlive the handler that captured it.
type Signals struct {
	UserAgent      string   `json:"user_agent"`
	RemoteIP       string   `json:"remote_ip"`
	Purpose        string   `json:"purpose,omitempty"`
	SecFetchMode   string   `json:"sec_fetch_mode,omitempty"`
	Referer        string   `json:"referer,omitempty"`
	AcceptLanguage string   `json:"accept_language,omitempty"`
	PrefetchHints  []string `json:"prefetch_hints,omitempty"`
}

// Non-standard headers some clients and proxies attach to automated fetches.
var prefetchHintHeaders = []string{"X-Purpose", "X-Moz", "X-Preload", "X-Preview"}

// ExtractSignals pulls the tracking-relevant signals out of an inbound request.
func ExtractSignals(r *http.Request) Signals {
	sig := Signals{
		UserAgent:      r.UserAgent(),
		RemoteIP:       clientIP(r),
		Purpose:        strings.ToLower(r.Header.Get("Purpose")),
		SecFetchMode:   strings.ToLower(r.Header.Get("Sec-Fetch-Mode")),
		Referer:        r.Referer(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
	for _, h := range prefetchHintHeaders {
		if v := r.Header.Get(h); v != "" {
			sig.PrefetchHints = append(sig.PrefetchHints, h+": "+v)
		}
	}
	return sig
}

// clientIP resolves the originating address, preferring forwarding headers
// set by the load balancer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 && strings.Count(host, ":") == 1 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "[")
	if idx := strings.Index(host, "]"); idx > 0 {
		host = host[:idx]
	}
	return host
}
