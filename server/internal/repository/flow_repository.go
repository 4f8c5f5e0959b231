package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/navid-fn/flowradar/server/internal/model"
)

// HistoryQuery selects archived flows. Zero values impose no constraint.
type HistoryQuery struct {
	Stablecoin string
	Type       string
	Since      time.Time
	Until      time.Time
	Limit      int
}

type FlowRepository interface {
	LatestFlows(ctx context.Context, q HistoryQuery) ([]model.FlowRecord, error)
	CountByType(ctx context.Context, since time.Time) ([]model.TypeCount, error)
}

type gormFlowRepository struct {
	db *gorm.DB
}

func NewGormFlowRepository(db *gorm.DB) FlowRepository {
	return &gormFlowRepository{db: db}
}

func (r *gormFlowRepository) LatestFlows(ctx context.Context, q HistoryQuery) ([]model.FlowRecord, error) {
	// FINAL collapses ReplacingMergeTree duplicates of redelivered flows.
	query := r.db.WithContext(ctx).Table("capital_flow FINAL")
	if q.Stablecoin != "" {
		query = query.Where("stablecoin = ?", q.Stablecoin)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if !q.Since.IsZero() {
		query = query.Where("event_time >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		query = query.Where("event_time < ?", q.Until)
	}

	var flows []model.FlowRecord
	err := query.
		Order("event_time desc").
		Limit(q.Limit).
		Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *gormFlowRepository) CountByType(ctx context.Context, since time.Time) ([]model.TypeCount, error) {
	var counts []model.TypeCount
	err := r.db.WithContext(ctx).
		Table("capital_flow FINAL").
		Select("type, count(*) as count, sum(amount) as volume").
		Where("event_time >= ?", since).
		Group("type").
		Order("type").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
