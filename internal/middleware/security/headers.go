package security

import (
	"net/http"
	"strconv"
	"time"
)

// HeadersConfig lists the response headers set on every request. Empty
// values are skipped.
type HeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeOptions    string
	ReferrerPolicy        string
	PermissionsPolicy     string
	CrossOriginOpener     string
	CrossOriginResource   string
	// CacheControl applies unless the handler sets its own.
	CacheControl string

	// HSTS is sent over TLS only; zero disables it.
	HSTS                  time.Duration
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
}

// DefaultHeadersConfig suits a JSON API that serves no active content.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:     "same-origin",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",

		HSTS:                  365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
	}
}

type header struct{ name, value string }

// HeadersMiddleware applies a fixed header set computed once from the config.
type HeadersMiddleware struct {
	always []header
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	m := &HeadersMiddleware{}
	for _, h := range []header{
		{"Content-Security-Policy", config.ContentSecurityPolicy},
		{"X-Frame-Options", config.FrameOptions},
		{"X-Content-Type-Options", config.ContentTypeOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Permissions-Policy", config.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", config.CrossOriginOpener},
		{"Cross-Origin-Resource-Policy", config.CrossOriginResource},
		{"Cache-Control", config.CacheControl},
	} {
		if h.value != "" {
			m.always = append(m.always, h)
		}
	}

	if config.HSTS > 0 {
		m.hsts = "max-age=" + strconv.FormatInt(int64(config.HSTS/time.Second), 10)
		if config.HSTSIncludeSubdomains {
			m.hsts += "; includeSubDomains"
		}
		if config.HSTSPreload {
			m.hsts += "; preload"
		}
	}
	return m
}

func (m *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, hdr := range m.always {
			h.Set(hdr.name, hdr.value)
		}
		if m.hsts != "" && r.TLS != nil {
			h.Set("Strict-Transport-Security", m.hsts)
		}
		next.ServeHTTP(w, r)
	})
}
