// Package aggregator derives summaries, per-stablecoin metrics and analytics
// from an already filtered set of flow events. Nothing here keeps state;
// every call recomputes from its input.
package aggregator

import (
	"strings"
	"time"

	"github.com/navid-fn/flowradar/internal/models"
)

// Summarize rolls events up across all stablecoins.
//
// The largest transaction uses a strict comparison so the first of equal
// amounts wins, and topStablecoinByVolume keeps the first symbol seen when
// volumes tie.
func Summarize(events []models.CapitalFlowEvent, now time.Time) models.CapitalFlowSummary {
	s := models.CapitalFlowSummary{
		LargestTransaction24h: models.EmptyEvent(now),
		LastUpdated:           now,
	}

	var (
		inflow, outflow float64
		largestSet      bool
		order           []string
		volume          = make(map[string]float64)
	)
	for _, ev := range events {
		switch ev.Type {
		case models.FlowMint:
			s.TotalMints24h += ev.Amount
		case models.FlowBurn:
			s.TotalBurns24h += ev.Amount
		case models.FlowExchangeInflow:
			inflow += ev.Amount
		case models.FlowExchangeOutflow:
			outflow += ev.Amount
		}
		if ev.Impact == models.ImpactHigh {
			s.MarketImpactEvents++
		}
		if !largestSet || ev.Amount > s.LargestTransaction24h.Amount {
			s.LargestTransaction24h = ev
			largestSet = true
		}
		if _, seen := volume[ev.Stablecoin]; !seen {
			order = append(order, ev.Stablecoin)
		}
		volume[ev.Stablecoin] += ev.Amount
	}
	s.NetExchangeInflow24h = inflow - outflow

	var top float64
	for i, coin := range order {
		if i == 0 || volume[coin] > top {
			s.TopStablecoinByVolume, top = coin, volume[coin]
		}
	}
	return s
}

// MetricsFor rolls up the events of a single stablecoin. Events of other
// symbols are ignored.
func MetricsFor(events []models.CapitalFlowEvent, stablecoin string, now time.Time) models.CapitalFlowMetrics {
	m := models.CapitalFlowMetrics{
		Stablecoin: strings.ToUpper(stablecoin),
		Timestamp:  now,
	}

	var total float64
	var count int
	for _, ev := range events {
		if !strings.EqualFold(ev.Stablecoin, stablecoin) {
			continue
		}
		switch ev.Type {
		case models.FlowMint:
			m.Minted24h += ev.Amount
		case models.FlowBurn:
			m.Burned24h += ev.Amount
		case models.FlowExchangeInflow:
			m.ExchangeInflow24h += ev.Amount
		case models.FlowExchangeOutflow:
			m.ExchangeOutflow24h += ev.Amount
		case models.FlowWhaleTransfer:
			m.WhaleActivity24h += ev.Amount
		}
		total += ev.Amount
		count++
	}
	m.NetFlow24h = m.Minted24h - m.Burned24h
	if count > 0 {
		m.AvgTransactionSize = total / float64(count)
	}
	return m
}

// Analytics groups events by type, impact and stablecoin. The type and impact
// maps always carry every enum value.
func Analytics(events []models.CapitalFlowEvent) models.AnalyticsReport {
	r := models.AnalyticsReport{
		EventsByType:       make(map[models.FlowType]int, len(models.FlowTypes)),
		EventsByImpact:     make(map[models.Impact]int, len(models.Impacts)),
		EventsByStablecoin: make(map[string]int),
		VolumeByStablecoin: make(map[string]float64),
	}
	for _, t := range models.FlowTypes {
		r.EventsByType[t] = 0
	}
	for _, i := range models.Impacts {
		r.EventsByImpact[i] = 0
	}

	for _, ev := range events {
		r.TotalEvents++
		r.TotalVolume += ev.Amount
		r.EventsByType[ev.Type]++
		r.EventsByImpact[ev.Impact]++
		r.EventsByStablecoin[ev.Stablecoin]++
		r.VolumeByStablecoin[ev.Stablecoin] += ev.Amount
	}
	if r.TotalEvents > 0 {
		r.AverageTransactionSize = r.TotalVolume / float64(r.TotalEvents)
	}
	return r
}
