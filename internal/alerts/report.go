package alerts

import (
	"fmt"
	"sort"
	"strings"
)

// topTypes caps the event and disaster type breakdowns in the report.
const topTypes = 10

// Report accumulates counters for one enrichment run.
type Report struct {
	Total          int
	WithAlerts     int
	WithFEMA       int
	WithActiveFEMA int

	// EventCounts tallies alert event types across organizations; an
	// organization contributes each of its distinct events once.
	EventCounts map[string]int

	// DisasterTypeCounts tallies FEMA incident types the same way.
	DisasterTypeCounts map[string]int

	// RiskCounts is the combined risk level histogram over all rows.
	RiskCounts map[string]int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		EventCounts:        make(map[string]int),
		DisasterTypeCounts: make(map[string]int),
		RiskCounts:         make(map[string]int),
	}
}

func (r *Report) countEvents(cell string) {
	for _, e := range splitCell(cell) {
		r.EventCounts[e]++
	}
}

func (r *Report) countDisasterTypes(cell string) {
	for _, t := range splitCell(cell) {
		r.DisasterTypeCounts[t]++
	}
}

func splitCell(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Summary renders the end-of-run report.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== COMPREHENSIVE ALERTS & DISASTERS SUMMARY ===\n")
	fmt.Fprintf(&b, "Total organizations processed: %d\n", r.Total)
	fmt.Fprintf(&b, "Organizations with weather alerts: %d\n", r.WithAlerts)
	fmt.Fprintf(&b, "Organizations in states with FEMA disasters: %d\n", r.WithFEMA)
	fmt.Fprintf(&b, "Organizations with truly active FEMA disasters: %d\n", r.WithActiveFEMA)

	if len(r.EventCounts) > 0 {
		fmt.Fprintf(&b, "\n=== TOP WEATHER ALERT TYPES ===\n")
		for _, event := range topCounts(r.EventCounts, topTypes) {
			fmt.Fprintf(&b, "  %s: %d\n", event, r.EventCounts[event])
		}
	}

	if len(r.DisasterTypeCounts) > 0 {
		fmt.Fprintf(&b, "\n=== TOP FEMA DISASTER TYPES ===\n")
		for _, t := range topCounts(r.DisasterTypeCounts, topTypes) {
			fmt.Fprintf(&b, "  %s: %d\n", t, r.DisasterTypeCounts[t])
		}
	}

	if len(r.RiskCounts) > 0 {
		fmt.Fprintf(&b, "\n=== COMBINED RISK LEVEL BREAKDOWN ===\n")
		for _, level := range topCounts(r.RiskCounts, len(r.RiskCounts)) {
			fmt.Fprintf(&b, "  %s: %d\n", level, r.RiskCounts[level])
		}
	}

	return b.String()
}

// topCounts returns up to n keys ordered by count, ties broken
// alphabetically.
func topCounts(m map[string]int, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
