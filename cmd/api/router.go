package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/joshu-sajeev/claimqueue/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the queue store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func newRouter(handler *job.JobHandler, db Pinger, log *zap.Logger, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.TimeoutMiddleware(requestTimeout),
		middleware.ErrorHandler(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.Register(r)
	return r
}
