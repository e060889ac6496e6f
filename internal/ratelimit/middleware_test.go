package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/addispay/wallet-server/internal/auth"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.GlobalEnabled {
		t.Error("expected global rate limiting to be enabled by default")
	}
	if cfg.GlobalLimit != 1000 {
		t.Errorf("expected global limit 1000, got %d", cfg.GlobalLimit)
	}
	if !cfg.PerUserEnabled {
		t.Error("expected per-user rate limiting to be enabled by default")
	}
	if cfg.PerUserLimit != 10 {
		t.Errorf("expected per-user limit 10 (spec.md gifts_send default), got %d", cfg.PerUserLimit)
	}
	if !cfg.PerIPEnabled {
		t.Error("expected per-IP rate limiting to be enabled by default")
	}
}

func TestGlobalLimiter_Disabled(t *testing.T) {
	cfg := Config{GlobalEnabled: false}
	handler := GlobalLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestGlobalLimiter_EnforcesLimit(t *testing.T) {
	cfg := Config{GlobalEnabled: true, GlobalLimit: 5, GlobalWindow: time.Second}
	handler := GlobalLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit exceeded, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
}

func withPrincipal(r *http.Request, userRef string) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{UserRef: userRef}))
}

func TestUserLimiter_Disabled(t *testing.T) {
	cfg := Config{PerUserEnabled: false}
	handler := UserLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		req := withPrincipal(httptest.NewRequest("POST", "/gifts/send", nil), "alice")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestUserLimiter_PerUserLimit(t *testing.T) {
	cfg := Config{PerUserEnabled: true, PerUserLimit: 3, PerUserWindow: time.Second, PerUserScope: "gifts_send"}
	handler := UserLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := withPrincipal(httptest.NewRequest("POST", "/gifts/send", nil), "alice")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("alice request %d: expected 200, got %d", i, w.Code)
		}
	}

	req := withPrincipal(httptest.NewRequest("POST", "/gifts/send", nil), "alice")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("alice: expected 429 after limit, got %d", w.Code)
	}

	// A different user has a separate bucket.
	req = withPrincipal(httptest.NewRequest("POST", "/gifts/send", nil), "bob")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("bob: expected 200, got %d", w.Code)
	}
}

func TestUserLimiter_FallsBackToIPWithoutPrincipal(t *testing.T) {
	cfg := Config{PerUserEnabled: true, PerUserLimit: 3, PerUserWindow: time.Second}
	handler := UserLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/gifts/send", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest("POST", "/gifts/send", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after IP fallback limit, got %d", w.Code)
	}
}

func TestIPLimiter_EnforcesLimit(t *testing.T) {
	cfg := Config{PerIPEnabled: true, PerIPLimit: 3, PerIPWindow: time.Second}
	handler := IPLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ip := "192.168.1.100:54321"
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = ip
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = ip
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after IP limit, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.101:54321"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("different IP: expected 200, got %d", w.Code)
	}
}
