// Package api exposes the engine's HTTP control surface (§6.1): bot
// listing, lookup, lifecycle and deletion, risk status/resume/reset, and
// a Prometheus scrape endpoint. Handlers follow the reference API's response shape
// (gin.H{"error": ...} / gin.H{"message": ...}) and auth convention
// (a user/role id resolved by middleware into the gin context).
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xfactor-labs/tradeforge/internal/api/auth"
	"github.com/xfactor-labs/tradeforge/internal/risk"
	"github.com/xfactor-labs/tradeforge/internal/supervisor"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

type Server struct {
	Supervisor *supervisor.Supervisor
	Risk       *risk.Manager
	Sink       *telemetry.Sink
	Tokens     *auth.TokenIssuer

	router *gin.Engine
}

func NewServer(sup *supervisor.Supervisor, riskMgr *risk.Manager, sink *telemetry.Sink, tokens *auth.TokenIssuer) *Server {
	s := &Server{Supervisor: sup, Risk: riskMgr, Sink: sink, Tokens: tokens}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(accessLog())
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Run(addr string) error { return s.router.Run(addr) }

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/v1", s.authMiddleware())
	{
		v1.GET("/bots", s.handleListBots)
		v1.GET("/bots/:id", s.handleGetBot)
		v1.POST("/bots/:id/start", s.handleStartBot)
		v1.POST("/bots/:id/stop", s.handleStopBot)
		v1.POST("/bots/:id/pause", s.handlePauseBot)
		v1.POST("/bots/:id/resume", s.handleResumeBot)
		v1.DELETE("/bots/:id", s.handleDeleteBot)

		v1.POST("/risk/resume", s.handleResumeTrading)
		v1.POST("/risk/reset", s.handleResetRisk)
		v1.GET("/risk/status", s.handleRiskStatus)
	}
}

// authMiddleware verifies a bearer JWT and stores the user id in the gin
// context, matching the reference handlers' c.GetString("user_id")
// convention.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || s.Tokens == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		claims, err := s.Tokens.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		accessLogger.WithFields(accessFields(c, time.Since(start))).Info("request")
	}
}

func (s *Server) handleListBots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bots": s.Supervisor.GetAllStatus()})
}

func (s *Server) handleGetBot(c *gin.Context) {
	b, err := s.Supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	c.JSON(http.StatusOK, b.GetStatus())
}

func (s *Server) handleStartBot(c *gin.Context) {
	b, err := s.Supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	if err := b.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bot started"})
}

func (s *Server) handleStopBot(c *gin.Context) {
	b, err := s.Supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	b.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Bot stopped"})
}

func (s *Server) handlePauseBot(c *gin.Context) {
	b, err := s.Supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	b.Pause()
	c.JSON(http.StatusOK, gin.H{"message": "Bot paused"})
}

func (s *Server) handleResumeBot(c *gin.Context) {
	b, err := s.Supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	b.Resume()
	c.JSON(http.StatusOK, gin.H{"message": "Bot resumed"})
}

func (s *Server) handleDeleteBot(c *gin.Context) {
	if err := s.Supervisor.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bot deleted"})
}

func (s *Server) handleResumeTrading(c *gin.Context) {
	if ok := s.Risk.ResumeTrading(); !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Kill switch is active; use /risk/reset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trading resumed"})
}

func (s *Server) handleResetRisk(c *gin.Context) {
	s.Risk.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Risk manager reset"})
}

func (s *Server) handleRiskStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"killed": s.Risk.Killed(), "paused": s.Risk.Paused()})
}
