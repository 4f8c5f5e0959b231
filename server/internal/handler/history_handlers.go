package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/server/internal/service"
)

type HistoryHandler struct {
	history *service.HistoryService
}

func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	flows, err := h.history.Latest(
		c.Request.Context(),
		c.Query("stablecoin"),
		c.Query("type"),
		models.TimeRange(c.Query("timeRange")),
		limit,
	)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "flow history unavailable"})
		return
	}
	c.JSON(http.StatusOK, flows)
}

func (h *HistoryHandler) GetBreakdown(c *gin.Context) {
	counts, err := h.history.Breakdown(c.Request.Context(), models.TimeRange(c.Query("timeRange")))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "flow history unavailable"})
		return
	}
	c.JSON(http.StatusOK, counts)
}
