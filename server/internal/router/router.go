package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/flowradar/server/internal/handler"
	"github.com/navid-fn/flowradar/server/internal/stream"
)

type Config struct {
	FlowHandler *handler.FlowHandler

	// HistoryHandler and Hub are optional.
	HistoryHandler *handler.HistoryHandler
	Hub            *stream.Hub

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", cfg.FlowHandler.GetHealth)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/v1/")
	registerFlowRoutes(api, cfg)

	return router
}
