package service

import (
	"context"
	"strings"
	"time"

	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/server/internal/model"
	"github.com/navid-fn/flowradar/server/internal/repository"
)

const DefaultHistoryLimit = 50

type HistoryService struct {
	repo     repository.FlowRepository
	maxLimit int
	now      func() time.Time
}

func NewHistoryService(repo repository.FlowRepository, maxLimit int) *HistoryService {
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &HistoryService{repo: repo, maxLimit: maxLimit, now: time.Now}
}

// Latest returns archived flows newest first. An unknown type or time range
// is ignored, and the limit is clamped to [1, maxLimit].
func (hs *HistoryService) Latest(ctx context.Context, stablecoin, flowType string, timeRange models.TimeRange, limit int) ([]model.FlowRecord, error) {
	q := repository.HistoryQuery{
		Stablecoin: strings.ToUpper(stablecoin),
		Limit:      hs.clamp(limit),
	}
	if t := models.FlowType(strings.ToLower(flowType)); t.Valid() {
		q.Type = string(t)
	}
	if timeRange.Valid() {
		q.Since = hs.now().Add(-timeRange.Duration())
	}

	flows, err := hs.repo.LatestFlows(ctx, q)
	if err != nil {
		return nil, err
	}
	if flows == nil {
		flows = []model.FlowRecord{}
	}
	return flows, nil
}

// Breakdown counts archived flows per type over timeRange, defaulting to 24h.
func (hs *HistoryService) Breakdown(ctx context.Context, timeRange models.TimeRange) ([]model.TypeCount, error) {
	if !timeRange.Valid() {
		timeRange = models.Range24h
	}
	return hs.repo.CountByType(ctx, hs.now().Add(-timeRange.Duration()))
}

func (hs *HistoryService) clamp(limit int) int {
	switch {
	case limit <= 0:
		return min(DefaultHistoryLimit, hs.maxLimit)
	case limit > hs.maxLimit:
		return hs.maxLimit
	default:
		return limit
	}
}
