package model

import (
	"sort"
	"strings"

	prommodel "github.com/prometheus/common/model"
)

// ThresholdResult is the desired alarm configuration for one monitored time
// series, produced by the external threshold-computation task. Immutable per
// synchronization run.
type ThresholdResult struct {
	UniqueKey  string             `json:"unique_key"`
	Labels     prommodel.LabelSet `json:"labels"`
	Thresholds []PeriodThreshold  `json:"thresholds"`
}

// PeriodThreshold is an upper/lower bound pair valid for a half-open
// hour-of-day window [StartHour, EndHour). At least one bound must be set to
// be meaningful. WindowSize is the number of consecutive breaches required
// before the rule fires.
type PeriodThreshold struct {
	StartHour  int      `json:"start_hour"`
	EndHour    int      `json:"end_hour"`
	Upper      *float64 `json:"upper_bound,omitempty"`
	Lower      *float64 `json:"lower_bound,omitempty"`
	WindowSize int      `json:"window_size"`
}

// BuildUniqueKey composes the stable identity of a time series from its
// metric name and sorted label pairs, e.g. "cpu|host=h1|zone=a".
func BuildUniqueKey(metric string, labels prommodel.LabelSet) string {
	if len(labels) == 0 {
		return metric
	}
	names := make([]string, 0, len(labels))
	for n := range labels {
		names = append(names, string(n))
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(metric)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(string(labels[prommodel.LabelName(n)]))
	}
	return b.String()
}

// SortedThresholds returns the period thresholds ordered ascending by start
// hour without mutating the input.
func SortedThresholds(in []PeriodThreshold) []PeriodThreshold {
	out := make([]PeriodThreshold, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartHour < out[j].StartHour })
	return out
}
