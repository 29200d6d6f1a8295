package api

import (
	"time"

	"github.com/Haabeel/lark-sync/internal/auth"
	"github.com/Haabeel/lark-sync/internal/gateway"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
)

// Dependencies holds all handler instances and middleware for route wiring.
type Dependencies struct {
	Channels *ChannelHandler
	Messages *MessageHandler
	Gateway  *gateway.Manager

	TokenService *auth.TokenService
	Redis        *goredis.Client
}

// SetupRouter registers all API routes on the Echo instance.
func SetupRouter(e *echo.Echo, deps *Dependencies) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// WebSocket gateway
	e.GET("/gateway", deps.Gateway.HandleWebSocket)

	v1 := e.Group("/api/v1")

	// Protected routes require JWT auth plus a general rate limit.
	authMw := deps.TokenService.Middleware()
	protected := v1.Group("", authMw,
		RateLimitMiddleware(deps.Redis, 50, time.Minute),
	)

	// Channels
	protected.POST("/projects/:id/channels", deps.Channels.CreateChannel)
	protected.GET("/channels/:id", deps.Channels.GetChannel)
	protected.POST("/channels/direct", deps.Channels.OpenDirect)
	protected.PUT("/channels/:id/members/:member_id", deps.Channels.AddMember)
	protected.DELETE("/channels/:id/members/:member_id", deps.Channels.RemoveMember)

	// Messages
	protected.POST("/channels/:id/messages", deps.Messages.SendMessage)
	protected.GET("/channels/:id/messages", deps.Messages.GetMessages)
	protected.PATCH("/channels/:id/messages/:message_id", deps.Messages.EditMessage)
	protected.DELETE("/channels/:id/messages/:message_id", deps.Messages.DeleteMessage)
}
