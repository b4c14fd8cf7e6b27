package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newSecuredEcho(origins []string) *echo.Echo {
	cfg := NewSecurityConfig(origins)
	e := echo.New()
	e.Use(NewCORS(cfg), NewSecureHeaders(cfg))
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	return e
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()
	e := newSecuredEcho(nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(echo.HeaderXFrameOptions))
	assert.Equal(t, APIContentSecurityPolicy, rec.Header().Get(echo.HeaderContentSecurityPolicy))
}

func TestCORS_Credentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		origins     []string
		origin      string
		wantAllow   string
		wantCookies bool
	}{
		{"wildcard", nil, "https://portal.example", "*", false},
		{"listed origin", []string{"https://portal.example"}, "https://portal.example", "https://portal.example", true},
		{"unlisted origin", []string{"https://portal.example"}, "https://evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newSecuredEcho(tt.origins)

			req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantAllow, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
			assert.Equal(t, tt.wantCookies, rec.Header().Get(echo.HeaderAccessControlAllowCredentials) == "true")
		})
	}
}
