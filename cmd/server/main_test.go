package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"symptom-checker/internal/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{Port: "9090", PredictorTimeout: time.Second, TypingDelay: time.Second}
	srv := newHTTPServer(cfg, http.NotFoundHandler())

	if srv.Addr != ":9090" {
		t.Errorf("Addr = %q", srv.Addr)
	}
	// queued sends may take several backend round trips
	if srv.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want none", srv.WriteTimeout)
	}
	if srv.ReadTimeout == 0 || srv.IdleTimeout == 0 {
		t.Errorf("read %v idle %v, want both set", srv.ReadTimeout, srv.IdleTimeout)
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		method  string
		want    string
		wantHit bool
	}{
		{name: "wildcard", allowed: "*", origin: "http://a.test", method: http.MethodGet, want: "*", wantHit: true},
		{name: "listed origin", allowed: "http://a.test, http://b.test", origin: "http://b.test", method: http.MethodGet, want: "http://b.test", wantHit: true},
		{name: "unlisted origin", allowed: "http://a.test", origin: "http://evil.test", method: http.MethodGet, want: "", wantHit: true},
		{name: "preflight", allowed: "*", origin: "http://a.test", method: http.MethodOptions, want: "*", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := false
			h := corsMiddleware(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hit = true
			}))
			req := httptest.NewRequest(tt.method, "/api/consultations", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("allow origin = %q, want %q", got, tt.want)
			}
			if hit != tt.wantHit {
				t.Errorf("next called = %v, want %v", hit, tt.wantHit)
			}
		})
	}
}
