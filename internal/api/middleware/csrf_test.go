package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestDefaultCSRFSkipper(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		bearer bool
		want   bool
	}{
		{"login", http.MethodPost, "/api/auth/session", false, true},
		{"logout with cookie", http.MethodDelete, "/api/auth/session", false, false},
		{"logout with bearer", http.MethodDelete, "/api/auth/session", true, true},
		{"health", http.MethodGet, "/api/health", false, true},
		{"metrics", http.MethodGet, "/metrics", false, true},
		{"lock acquire with cookie", http.MethodPost, "/api/articles/a1/lock", false, false},
		{"lock acquire with bearer", http.MethodPost, "/api/articles/a1/lock", true, true},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.bearer {
				req.Header.Set(echo.HeaderAuthorization, "Bearer u1.secret")
			}
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, DefaultCSRFSkipper(c))
		})
	}
}
