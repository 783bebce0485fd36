package security

import (
	"bytes"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tally/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "203.0.113.7:5000", "1.2.3.4", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:5000", "198.51.100.9, 10.0.0.1", "", "198.51.100.9"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.10", "198.51.100.10"},
		{"garbage forwarded header", "192.168.1.1:80", "nope", "", "192.168.1.1"},
		{"no port", "203.0.113.8", "", "", "203.0.113.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(nil)
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected an error")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(r); got != "198.51.100.1" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name       string
		method     string
		target     string
		agent      string
		suspicious bool
	}{
		{"ordinary api call", http.MethodGet, "/api/transactions?month=2026-05", "tally-client/1.0", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"sql in query", http.MethodGet, "/api/transactions?q=1%20union%20select", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			got := d.DetectSuspiciousRequest(r) != ""
			if got != tt.suspicious {
				t.Fatalf("suspicious = %v, want %v", got, tt.suspicious)
			}
		})
	}
}

func TestHeadersMiddleware(t *testing.T) {
	var buf bytes.Buffer
	d := NewDetector(log.New(log.Config{Level: slog.LevelInfo, Output: &buf}))
	h := NewHeadersMiddleware(DefaultHeadersConfig(), d).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/.env", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("suspicious requests are not blocked, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain http")
	}
	if d.GetMetrics().SuspiciousRequests != 1 || !strings.Contains(buf.String(), "Suspicious request") {
		t.Fatalf("expected the request to be logged, metrics=%+v log=%s", d.GetMetrics(), buf.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}
