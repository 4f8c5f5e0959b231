package models

import (
	"net/url"
	"strconv"
	"strings"
)

// ParseFilters builds a filter from query parameters. List parameters accept
// both repeated keys and comma separated values:
//
//	?stablecoin=USDT,USDC&types=mint&types=burn&minAmount=1e6&timeRange=24h
//
// Unknown enum values and an unparsable minAmount are dropped.
func ParseFilters(q url.Values) CapitalFlowFilters {
	var f CapitalFlowFilters

	f.Stablecoin = splitList(q["stablecoin"])
	f.Exchanges = splitList(q["exchanges"])

	for _, v := range splitList(q["types"]) {
		f.Types = append(f.Types, FlowType(strings.ToLower(v)))
	}
	for _, v := range splitList(q["impact"]) {
		f.Impact = append(f.Impact, Impact(strings.ToLower(v)))
	}

	if v := q.Get("minAmount"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			f.MinAmount = &n
		}
	}
	if v := q.Get("timeRange"); v != "" {
		tr := TimeRange(strings.ToLower(v))
		f.TimeRange = &tr
	}

	return f.Sanitize()
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
