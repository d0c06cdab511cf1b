package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trendyx/identity-service/internal/tokenverify"
	res "github.com/trendyx/identity-service/pkg/http"
)

type AuthMiddleware struct {
	parser tokenverify.Parser
}

func NewAuthMiddleware(parser tokenverify.Parser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

func (m *AuthMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "missing token", res.RequestID(c), nil)
		}
		result, err := tokenverify.Verify(m.parser, parts[1], time.Now)
		if err != nil {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "invalid token", res.RequestID(c), nil)
		}
		c.Set("user_id", result.UserID)
		c.Set("email", result.Email)
		c.Set("role", result.Role)
		return next(c)
	}
}

// RequireRole gates a route behind role membership. Admins always pass.
func (m *AuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "admin" {
				return next(c)
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return res.ErrorJSON(c, http.StatusForbidden, "forbidden", "insufficient role", res.RequestID(c), nil)
		}
	}
}
