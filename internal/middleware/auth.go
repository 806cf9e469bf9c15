package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avdeyev/identity-service/internal/service"
	"github.com/avdeyev/identity-service/internal/tokens"
)

type SessionAuth struct {
	Tokens *tokens.Service
}

func NewSessionAuth(ts *tokens.Service) *SessionAuth {
	return &SessionAuth{Tokens: ts}
}

// RequireAuth validates the bearer session token and stores the caller's
// identity in the echo context.
func (m *SessionAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
		}

		claims, err := m.Tokens.VerifySession(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		return next(c)
	}
}

// IdentityFrom recovers what RequireAuth stored. The zero Identity means the
// request never passed the middleware.
func IdentityFrom(c echo.Context) service.Identity {
	id := service.Identity{}
	if v, ok := c.Get("user_id").(uint64); ok {
		id.UserID = v
	}
	if v, ok := c.Get("role").(string); ok {
		id.Role = v
	}
	return id
}
