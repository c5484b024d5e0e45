package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const siteOrigin = "https://vocalvent.com"

func corsRequest(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/session", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSSiteOriginSendsVisitorCookie(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	CORS([]string{siteOrigin})(handler).ServeHTTP(rec, corsRequest(http.MethodGet, siteOrigin))

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler to run, got called=%v status=%d", called, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != siteOrigin {
		t.Fatalf("expected site origin echoed, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials so the visitor cookie is sent")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expected request id to be exposed")
	}
}

func TestCORSForeignOriginGetsNoCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	CORS([]string{siteOrigin})(handler).ServeHTTP(rec, corsRequest(http.MethodGet, "https://unknown.example"))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("expected no credentials header, got %q", got)
	}
}

func TestCORSWildcardEchoesOriginNotStar(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	CORS([]string{" ", "*"})(handler).ServeHTTP(rec, corsRequest(http.MethodGet, "https://preview.vocalvent.dev"))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://preview.vocalvent.dev" {
		t.Fatalf("expected caller origin echoed, got %q", got)
	}
}

func TestCORSAdminPreflight(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := corsRequest(http.MethodOptions, siteOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	CORS([]string{siteOrigin})(handler).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected preflight to be answered by the middleware")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != corsAllowHeaders {
		t.Fatalf("expected the admin Authorization header to be allowed")
	}
}

func TestCORSForeignPreflightFallsThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	req := corsRequest(http.MethodOptions, "https://unknown.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	CORS([]string{siteOrigin})(handler).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected router to handle a foreign preflight, got called=%v status=%d", called, rec.Code)
	}
}
