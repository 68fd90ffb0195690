package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		xff    string
		want   bool
	}{
		{name: "normal API call", method: http.MethodGet, target: "/api/reports/summary?from=2025-01&to=2025-03", ua: "curl/8.4.0"},
		{name: "python client", method: http.MethodPost, target: "/api/imports?mode=check", ua: "python-requests/2.31"},
		{name: "path traversal", method: http.MethodGet, target: "/api/../etc/passwd", want: true},
		{name: "dotenv probe", method: http.MethodGet, target: "/.env", want: true},
		{name: "sql injection in query", method: http.MethodGet, target: "/api/transactions?period=1%27+union+select", want: true},
		{name: "scanner agent", method: http.MethodGet, target: "/api/categories", ua: "sqlmap/1.7", want: true},
		{name: "trace method", method: "TRACE", target: "/api/categories", want: true},
		{name: "long url", method: http.MethodGet, target: "/api/transactions?q=" + strings.Repeat("a", 2100), want: true},
		{name: "many proxy hops", method: http.MethodGet, target: "/healthz", xff: "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Fatalf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
			wantCount := int64(0)
			if tt.want {
				wantCount = 1
			}
			if got := d.GetMetrics().SuspiciousRequests; got != wantCount {
				t.Fatalf("SuspiciousRequests = %d, want %d", got, wantCount)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "direct connection", remoteAddr: "203.0.113.7:5555", want: "203.0.113.7"},
		{name: "untrusted peer ignores forwarding", remoteAddr: "203.0.113.7:5555", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "trusted proxy with XFF", remoteAddr: "10.0.0.2:80", xff: "198.51.100.1, 10.0.0.9", want: "198.51.100.1"},
		{name: "trusted proxy with X-Real-IP", remoteAddr: "127.0.0.1:80", xri: "198.51.100.2", want: "198.51.100.2"},
		{name: "trusted proxy with garbage XFF", remoteAddr: "192.168.1.1:80", xff: "not-an-ip", want: "192.168.1.1"},
		{name: "unparseable remote addr", remoteAddr: "weird", want: "weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := NewDetector().ExtractClientIP(req); got != tt.want {
				t.Fatalf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("bogus"); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(req); got != "198.51.100.1" {
		t.Fatalf("ExtractClientIP() = %q", got)
	}
}

func TestDetectorMiddlewareBlocks(t *testing.T) {
	d := NewDetector()
	called := false
	h := d.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected blocked request, got %d called=%v", rec.Code, called)
	}
	if got := d.GetMetrics().BlockedRequests; got != 1 {
		t.Fatalf("BlockedRequests = %d", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if !called {
		t.Fatal("clean request should reach the handler")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	want := map[string]string{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Cache-Control":           "no-store",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestInspectReasons(t *testing.T) {
	tests := map[string]*http.Request{
		reasonPattern: httptest.NewRequest(http.MethodGet, "/.git/config", nil),
		reasonMethod:  httptest.NewRequest("TRACE", "/api/categories", nil),
		"":            httptest.NewRequest(http.MethodGet, "/api/categories", nil),
	}
	for want, req := range tests {
		if got := Inspect(req); got != want {
			t.Errorf("Inspect(%s %s) = %q, want %q", req.Method, req.URL.Path, got, want)
		}
	}
}
