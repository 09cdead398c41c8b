package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/service/groups"
	"github.com/pulsechat/pulsechat-server/internal/service/messages"
	"github.com/pulsechat/pulsechat-server/internal/service/statuses"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Hub      *core.Hub
	Store    store.Store
	Auth     *auth.Service
	Messages *messages.Service
	Groups   *groups.Service
	Statuses *statuses.Service
}

// NewServer builds the HTTP server: REST API under /api, the WebSocket
// endpoint at /ws, and a health probe.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	engine.POST("/api/register", apiHandlers.Register)
	engine.POST("/api/login", apiHandlers.Login)
	engine.POST("/api/guest", apiHandlers.GuestLogin)

	api := engine.Group("/api", AuthMiddleware(deps.Auth, logger))

	userHandlers := NewUserHandlers(deps.Store, deps.Hub, logger)
	api.GET("/users", userHandlers.ListUsers)
	api.GET("/users/search", userHandlers.SearchUsers)
	api.GET("/presence", userHandlers.Presence)

	groupHandlers := NewGroupHandlers(deps.Groups, logger)
	api.POST("/groups", groupHandlers.CreateGroup)
	api.GET("/groups", groupHandlers.ListGroups)
	api.DELETE("/groups/:id", groupHandlers.DeleteGroup)
	api.GET("/groups/:id/members", groupHandlers.ListMembers)
	api.POST("/groups/:id/members", groupHandlers.AddMember)
	api.DELETE("/groups/:id/members/:user_id", groupHandlers.RemoveMember)
	api.POST("/groups/:id/exit", groupHandlers.ExitGroup)

	messageHandlers := NewMessageHandlers(deps.Messages, logger)
	sendLimiter := newUserLimiter(cfg.MessageRate, cfg.MessageBurst)
	api.POST("/messages", rateLimitMiddleware(sendLimiter), messageHandlers.SendMessage)
	api.DELETE("/messages/:id", messageHandlers.DeleteMessage)
	api.GET("/messages", messageHandlers.History)

	statusHandlers := NewStatusHandlers(deps.Statuses, logger)
	api.POST("/status", statusHandlers.CreateStatus)
	api.GET("/status", statusHandlers.ListStatuses)

	engine.GET("/ws", gin.WrapH(NewWSHandler(deps, cfg, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
