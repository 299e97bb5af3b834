package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chatrelay/telegram-support/internal/common"
	"github.com/chatrelay/telegram-support/internal/config"
	"github.com/chatrelay/telegram-support/internal/httpapi/handlers"
	"github.com/chatrelay/telegram-support/internal/httpapi/middleware"
	"github.com/chatrelay/telegram-support/internal/relay"
)

func NewRouter(cfg config.Config, svc *relay.Service, nonces handlers.NonceStore) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		// the widget is embedded on arbitrary pages
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := handlers.NewHandler(cfg, svc, nonces)

	r.GET("/ping", h.Ping)

	api := r.Group("/api/chat")
	api.Use(middleware.OptionalIdentity(cfg.JWTSecret))
	api.POST("/session", h.OpenSession)
	api.POST("/send", h.SendMessage)
	api.POST("/poll", h.PollMessages)
	api.GET("/history", h.History)

	r.POST("/telegram/webhook", h.TelegramWebhook)

	return r
}
