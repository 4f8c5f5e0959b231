package router

import (
	"github.com/gin-gonic/gin"
)

func registerFlowRoutes(router *gin.RouterGroup, cfg *Config) {
	flows := router.Group("/flows")
	{
		flows.GET("", cfg.FlowHandler.GetFlows)
		flows.GET("/summary", cfg.FlowHandler.GetSummary)
		flows.GET("/metrics/:stablecoin", cfg.FlowHandler.GetMetrics)
		flows.GET("/analytics", cfg.FlowHandler.GetAnalytics)

		if cfg.HistoryHandler != nil {
			flows.GET("/history", cfg.HistoryHandler.GetHistory)
			flows.GET("/history/breakdown", cfg.HistoryHandler.GetBreakdown)
		}
		if cfg.Hub != nil {
			flows.GET("/stream", cfg.Hub.Handle)
		}
	}
}
