package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matchwatch/vlr-results-notifier-go/internal/middleware"
)

// NewRouter assembles the HTTP surface: health probes and metrics are open,
// admin endpoints sit behind API key auth.
func NewRouter(health *HealthHandler, admin *AdminHandler, auth *middleware.APIKeyAuth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// keep-alive root for uptime pingers
	r.GET("/", health.LivenessProbe)
	r.GET("/health/live", health.LivenessProbe)
	r.GET("/health/ready", health.ReadinessProbe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1", auth.Handler())
	{
		api.POST("/cycles", admin.TriggerCycle)
		api.GET("/matches/pending", admin.ListPending)
		api.POST("/matches/reset", admin.ResetNotified)
	}

	return r
}
