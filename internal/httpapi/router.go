package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/emblem-match/internal/logger"
)

// NewRouter wires the health check and the score endpoint.
func NewRouter(score *ScoreHandler, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.OrNop(log)))
	r.MaxMultipartMemory = score.MaxUploadBytes

	r.GET("/healthz", Health)
	r.HEAD("/healthz", Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/emblem/score", score.Score)
	}
	return r
}

// requestLogger logs one line per request through log.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("httpapi", "request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
	}
}
