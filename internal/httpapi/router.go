package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/session"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// Pipeline is the session surface the HTTP layer drives.
type Pipeline interface {
	Ingest(rec capture.Record) capture.Entry
	TriggerManual(ctx context.Context) (state.Nudge, error)
	Nudges() []state.Nudge
	Batches() []batch.Batch
	Snapshot() session.Snapshot
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(p Pipeline, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	SetupRoutes(r, NewHandler(p, logger))
	return r
}

// SetupRoutes registers the handler's routes on router.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/captures", h.Ingest)
		v1.POST("/nudges/manual", h.Manual)
		v1.GET("/nudges", h.ListNudges)
		v1.GET("/batches", h.ListBatches)
		v1.GET("/state", h.State)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
