package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/flowradar/internal/models"
)

// FlowService is implemented by *flow.Service.
type FlowService interface {
	RecentFlows(ctx context.Context, filters models.CapitalFlowFilters) []models.CapitalFlowEvent
	Summary(ctx context.Context) models.CapitalFlowSummary
	Metrics(ctx context.Context, stablecoin string) models.CapitalFlowMetrics
	Analytics(ctx context.Context, timeRange models.TimeRange) models.AnalyticsReport
	Mode() string
}

// StablecoinLookup reports whether a symbol is tracked.
type StablecoinLookup interface {
	Stablecoin(symbol string) (models.Stablecoin, bool)
}

type FlowHandler struct {
	flows       FlowService
	stablecoins StablecoinLookup
}

func NewFlowHandler(flows FlowService, stablecoins StablecoinLookup) *FlowHandler {
	return &FlowHandler{flows: flows, stablecoins: stablecoins}
}

func (h *FlowHandler) GetFlows(c *gin.Context) {
	filters := models.ParseFilters(c.Request.URL.Query())
	c.JSON(http.StatusOK, h.flows.RecentFlows(c.Request.Context(), filters))
}

func (h *FlowHandler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.flows.Summary(c.Request.Context()))
}

func (h *FlowHandler) GetMetrics(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("stablecoin"))
	if _, ok := h.stablecoins.Stablecoin(symbol); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown stablecoin " + symbol})
		return
	}
	c.JSON(http.StatusOK, h.flows.Metrics(c.Request.Context(), symbol))
}

func (h *FlowHandler) GetAnalytics(c *gin.Context) {
	timeRange := models.TimeRange(strings.ToLower(c.DefaultQuery("timeRange", string(models.Range24h))))
	c.JSON(http.StatusOK, h.flows.Analytics(c.Request.Context(), timeRange))
}

func (h *FlowHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": h.flows.Mode()})
}
