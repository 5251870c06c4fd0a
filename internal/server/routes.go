package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/dicerace/internal/auth"
	"github.com/danmuck/dicerace/internal/coordinator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func (s *Service) registerRoutes() {
	s.router.GET("/ws", s.handleWebsocket)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.coord.Running()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":       ready,
			"uptime":      time.Since(s.started).String(),
			"service":     s.cfg.Name,
			"connections": s.hub.Count(),
			"version":     version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := s.router.Group("/sessions")
	if s.cfg.AdminToken != "" {
		sessions.Use(auth.Require(auth.StaticToken{Token: s.cfg.AdminToken}))
	}

	sessions.GET("", func(c *gin.Context) {
		list, err := s.coord.Snapshot(c.Request.Context())
		if err != nil {
			respondCoordinatorError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sessions": list,
		})
	})

	sessions.GET("/:code", func(c *gin.Context) {
		view, ok, err := s.coord.Lookup(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondCoordinatorError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, view)
	})
}

func (s *Service) handleWebsocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Str("remote", c.ClientIP()).Msg("websocket upgrade refused")
		return
	}
	if err := s.hub.Accept(c.Request.Context(), ws, s.coord); err != nil {
		log.Debug().Err(err).Msg("websocket not accepted")
	}
}

func respondCoordinatorError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, coordinator.ErrStopped) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
