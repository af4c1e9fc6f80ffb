package http

import (
	"context"
	"strings"

	"github.com/dkeye/clanchat/internal/adapters/signal"
	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/config"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionTokenKey = "token"

type Deps struct {
	Orch      *orch.Orchestrator
	Verifier  core.IdentityVerifier
	Directory Directory
}

// BearerTokenMiddleware finds the credential in the Authorization header, the
// token query parameter (browsers cannot set headers on a WebSocket upgrade) or
// the cookie session, and remembers an explicit one in the session.
func BearerTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token != "" {
			if sess.Get(sessionTokenKey) != token {
				sess.Set(sessionTokenKey, token)
				if err := sess.Save(); err != nil {
					log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
				}
			}
		} else if v, ok := sess.Get(sessionTokenKey).(string); ok {
			token = v
		}
		c.Set(signal.TokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ClanChatSessions", store))
	r.Use(BearerTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"sessions": deps.Orch.SessionCount(),
			"online":   deps.Orch.Presence.Count(),
		})
	})

	ctrl := signal.NewSignalWSController(deps.Orch, deps.Verifier, signal.Config{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	h := &handlers{orch: deps.Orch, dir: deps.Directory}
	authed := api.Group("", RequireUser(deps.Verifier))
	authed.GET("/rooms", h.listRooms)
	authed.GET("/servers/:name/members", h.listMembers)
	authed.GET("/servers/:name/channels/:channel/messages", h.history)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
