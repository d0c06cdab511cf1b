package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/trendyx/identity-service/internal/adapters/http/api/v1/handlers"
	"github.com/trendyx/identity-service/internal/adapters/http/middleware"
)

type Router struct {
	auth        *handlers.AuthHandler
	integration *handlers.IntegrationHandler
	authMW      *middleware.AuthMiddleware
	apiKeyMW    *middleware.APIKeyMiddleware
}

func NewRouter(
	auth *handlers.AuthHandler,
	integration *handlers.IntegrationHandler,
	authMW *middleware.AuthMiddleware,
	apiKeyMW *middleware.APIKeyMiddleware,
) *Router {
	return &Router{auth: auth, integration: integration, authMW: authMW, apiKeyMW: apiKeyMW}
}

func (r *Router) Register(g *echo.Group) {
	auth := g.Group("/auth")
	auth.POST("/register", r.auth.Register)
	auth.POST("/login", r.auth.Login)
	auth.POST("/refresh", r.auth.Refresh)
	auth.POST("/logout", r.auth.Logout)
	auth.POST("/verify", r.auth.VerifyToken)

	protected := auth.Group("", r.authMW.Handler)
	protected.GET("/profile", r.auth.GetProfile)
	protected.PUT("/profile", r.auth.UpdateProfile)
	protected.POST("/password/change", r.auth.ChangePassword)

	integration := g.Group("/integration")
	// Redemption and webhook endpoints authenticate with the token or the
	// body signature themselves; initiation and stats need the API key.
	integration.POST("/signup/redeem", r.integration.RedeemSignup)
	integration.POST("/login/redeem", r.integration.RedeemLogin)
	integration.POST("/webhook", r.integration.Webhook)

	keyed := integration.Group("", r.apiKeyMW.Handler)
	keyed.POST("/signup/initiate", r.integration.InitiateSignup)
	keyed.POST("/login/initiate", r.integration.InitiateLogin)
	keyed.GET("/stats", r.integration.Stats)

	// Same counters for dashboard operators, authenticated with a bearer
	// token instead of the server-to-server API key.
	admin := g.Group("/admin", r.authMW.Handler, r.authMW.RequireRole("admin"))
	admin.GET("/integration/stats", r.integration.Stats)
}
