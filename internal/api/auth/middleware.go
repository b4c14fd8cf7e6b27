// internal/api/auth/middleware.go
package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
	"github.com/tphakala/quotedesk/internal/observability/metrics"
)

// Context keys for authentication values stored in echo.Context.
// These keys are prefixed with "auth:" to prevent collisions with other packages.
const (
	// CtxKeyUser holds the resolved lock.User.
	CtxKeyUser = "auth:user"
	// CtxKeyAuthMethod indicates the authentication method used.
	CtxKeyAuthMethod = "auth:authMethod"
)

// UserFromContext returns the acting user stored by a previous resolution.
func UserFromContext(c echo.Context) (lock.User, bool) {
	user, ok := c.Get(CtxKeyUser).(lock.User)
	return user, ok
}

// RequireUser rejects requests without an acting user with 401. Resolution
// failures other than authentication are answered with 500.
func RequireUser(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := r.CurrentUser(c); err != nil {
				return RespondUnauthenticated(c, err)
			}
			return next(c)
		}
	}
}

// RespondUnauthenticated writes the response for a failed user resolution.
func RespondUnauthenticated(c echo.Context, err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		if errors.Is(err, ErrInvalidToken) {
			c.Response().Header().Set("WWW-Authenticate",
				`Bearer realm="api", error="invalid_token"`)
		}
		GetLogger().Debug("request not authenticated",
			logger.String("path", c.Request().URL.Path),
			logger.String("ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": ErrUnauthenticated.Error(),
		})
	}

	GetLogger().Error("failed to resolve acting user",
		logger.String("path", c.Request().URL.Path),
		logger.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "failed to resolve acting user",
	})
}

type loginRequest struct {
	Token string `json:"token"`
}

// HandleLogin exchanges an API token for a browser session cookie. The token
// may be sent as a bearer header or as {"token": "..."}.
func (s *Service) HandleLogin(c echo.Context) error {
	var (
		user lock.User
		err  error
	)
	if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
		user, err = s.authenticateHeader(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	} else {
		var req loginRequest
		if bindErr := c.Bind(&req); bindErr != nil || req.Token == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "token is required"})
		}
		user, err = s.AuthenticateToken(c.Request().Context(), req.Token)
	}
	if err != nil {
		s.recorder.RecordAuthOperation(AuthMethodToken.String(), metrics.StatusError)
		return RespondUnauthenticated(c, err)
	}

	if err := s.EstablishSession(c, user); err != nil {
		GetLogger().Error("failed to establish session", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to establish session"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    map[string]string{"id": user.ID, "name": user.Name},
	})
}

// HandleLogout ends the browser session. Logout hooks, such as releasing the
// user's locks, run first.
func (s *Service) HandleLogout(c echo.Context) error {
	if err := s.Logout(c); err != nil {
		GetLogger().Error("failed to end session", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to end session"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
