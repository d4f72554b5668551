package server

import (
	"net/http"
	"time"

	"github.com/danmuck/hassctl/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (m *Monitor) registerRoutes() {
	m.router.GET("/healthz", func(c *gin.Context) {
		st := m.opts.Status()
		code := http.StatusOK
		status := "ok"
		if !st.Connected {
			code = http.StatusServiceUnavailable
			status = "disconnected"
		}
		c.JSON(code, gin.H{
			"status":  status,
			"uptime":  time.Since(m.appeared).Round(time.Second).String(),
			"service": m.opts.Name,
			"version": m.opts.Version,
			"session": st,
		})
	})

	metrics := m.router.Group("/metrics")
	if m.opts.Guard != nil {
		metrics.Use(requireBearer(m.opts.Guard))
	}
	metrics.GET("", gin.WrapH(promhttp.Handler()))
}

func requireBearer(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
