package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	cases := []struct {
		name             string
		origin           string
		allowed          []string
		allowCredentials bool
		want             string
	}{
		{"wildcard", "https://a.example.com", []string{"*"}, false, "*"},
		{"wildcard with credentials echoes origin", "https://a.example.com", []string{"*"}, true, "https://a.example.com"},
		{"exact match", "https://a.example.com", []string{"https://a.example.com"}, false, "https://a.example.com"},
		{"case insensitive match", "https://A.Example.Com", []string{"https://a.example.com"}, false, "https://A.Example.Com"},
		{"no match", "https://evil.example.com", []string{"https://a.example.com"}, false, ""},
		{"empty origin without wildcard", "", []string{"https://a.example.com"}, false, ""},
		{"empty allowlist", "https://a.example.com", nil, false, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := resolveAllowedOrigin(c.origin, c.allowed, c.allowCredentials); got != c.want {
				t.Fatalf("want %q got %q", c.want, got)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, getRequestID(c))
	})

	// 未携带请求 ID 时生成
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	engine.ServeHTTP(w, req)
	generated := w.Header().Get("X-Request-ID")
	if generated == "" {
		t.Fatalf("request id should be generated")
	}
	if w.Body.String() != generated {
		t.Fatalf("context request id %q should match header %q", w.Body.String(), generated)
	}

	// 透传调用方携带的请求 ID
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	engine.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Fatalf("request id want req-abc-123 got %q", got)
	}
}
