package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	res "github.com/trendyx/identity-service/pkg/http"
)

// APIKeyHeader authenticates server-to-server integration calls.
const APIKeyHeader = "X-API-Key"

type APIKeyMiddleware struct {
	key string
}

func NewAPIKeyMiddleware(key string) *APIKeyMiddleware {
	return &APIKeyMiddleware{key: key}
}

func (m *APIKeyMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// An unset key disables the whole surface rather than opening it.
		provided := c.Request().Header.Get(APIKeyHeader)
		if m.key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(m.key)) != 1 {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "invalid api key", res.RequestID(c), nil)
		}
		return next(c)
	}
}
