package http

import (
	"context"
	"net/http"

	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app/orch"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctrl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(metric.Middleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PeerCallSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metric.Handler())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.Use(OriginFilter(cfg.AllowedOrigins))

	api.GET("/participants", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Directory.Snapshot())
	})
	api.GET("/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Presence.Online())
	})
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": cfg.WebRTC().ICEServers})
	})

	api.GET("/ws/signal", IdentityMiddleware(cfg.JWTSecret), func(c *gin.Context) {
		user := userOf(c)
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(ctxClientToken)).
			Str("user", string(user)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, user)
	})

	return r
}
