// Package filter evaluates CapitalFlowFilters against a flow stream.
package filter

import (
	"strings"
	"time"

	"github.com/navid-fn/flowradar/internal/models"
)

// MaxResults caps the number of events returned by Apply.
const MaxResults = 50

// Apply keeps events matching every present filter field, preserving input
// order, and truncates to the first MaxResults. Callers pass events sorted
// newest-first. now anchors the timeRange window.
func Apply(events []models.CapitalFlowEvent, f models.CapitalFlowFilters, now time.Time) []models.CapitalFlowEvent {
	f = f.Sanitize()

	var since time.Time
	if f.TimeRange != nil {
		since = now.Add(-f.TimeRange.Duration())
	}

	out := make([]models.CapitalFlowEvent, 0, min(len(events), MaxResults))
	for _, ev := range events {
		if len(out) == MaxResults {
			break
		}
		if !f.IncludesStablecoin(ev.Stablecoin) {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, ev.Type) {
			continue
		}
		if f.MinAmount != nil && ev.Amount < *f.MinAmount {
			continue
		}
		if len(f.Impact) > 0 && !containsImpact(f.Impact, ev.Impact) {
			continue
		}
		if f.TimeRange != nil && ev.Timestamp.Before(since) {
			continue
		}
		if len(f.Exchanges) > 0 && !matchesExchange(f.Exchanges, ev.ExchangeName) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func containsType(types []models.FlowType, t models.FlowType) bool {
	for _, ft := range types {
		if ft == t {
			return true
		}
	}
	return false
}

func containsImpact(impacts []models.Impact, i models.Impact) bool {
	for _, im := range impacts {
		if im == i {
			return true
		}
	}
	return false
}

// matchesExchange never matches events without an exchange name.
func matchesExchange(exchanges []string, name *string) bool {
	if name == nil {
		return false
	}
	for _, ex := range exchanges {
		if strings.EqualFold(ex, *name) {
			return true
		}
	}
	return false
}
