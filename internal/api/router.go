package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the dashboard routes. push serves the websocket event
// stream at /ws.
func NewRouter(h *Handler, push http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if push != nil {
		r.GET("/ws", gin.WrapH(push))
	}

	v := r.Group("/api")
	{
		v.GET("/state", h.State)
		v.POST("/symbol", h.SwitchSymbol)
		v.GET("/portfolio", h.Portfolio)
		v.POST("/portfolio", h.InitPortfolio)
		v.DELETE("/portfolio", h.ResetPortfolio)
		v.POST("/portfolio/buy", h.Buy)
		v.POST("/portfolio/sell", h.Sell)
		v.GET("/analysis", h.Analysis)
		v.GET("/sentiment", h.Sentiment)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/metrics" || c.FullPath() == "/health" {
			return
		}
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
