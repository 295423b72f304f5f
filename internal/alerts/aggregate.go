package alerts

import (
	"strings"
	"time"

	"github.com/brightline-research/orggeo/pkg/nws"
)

// NWS vocab ranked for max-of aggregation. Values outside the maps rank
// lowest.
var (
	severityRank  = map[string]int{"Unknown": 0, "Minor": 1, "Moderate": 2, "Severe": 3, "Extreme": 4}
	urgencyRank   = map[string]int{"Unknown": 0, "Future": 1, "Expected": 2, "Immediate": 3}
	certaintyRank = map[string]int{"Unknown": 0, "Unlikely": 1, "Possible": 2, "Likely": 3, "Observed": 4}
)

const (
	maxHeadlines    = 3
	maxDescriptions = 2
	maxInstructions = 2
	maxWebURLs      = 3
	maxAlertIDs     = 5
	snippetLen      = 200
)

// alertSummary is one organization's aggregated view of its matched
// alerts, with every multi-value field already joined for a CSV cell.
type alertSummary struct {
	count             int
	maxSeverity       string
	maxUrgency        string
	maxCertainty      string
	events            string
	headlines         string
	descriptions      string
	instructions      string
	earliestEffective string
	latestExpires     string
	webURLs           string
	ids               string
}

func summarizeAlerts(matched []nws.Alert) alertSummary {
	var events, headlines, descriptions, instructions, webURLs, ids []string
	var earliest, latest time.Time

	for _, a := range matched {
		if a.Event != "" {
			events = append(events, a.Event)
		}
		if a.Headline != "" {
			headlines = append(headlines, a.Headline)
		}
		if a.Description != "" {
			descriptions = append(descriptions, snippet(a.Description))
		}
		if a.Instruction != "" {
			instructions = append(instructions, snippet(a.Instruction))
		}
		if a.Web != "" {
			webURLs = append(webURLs, a.Web)
		}
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
		if !a.Effective.IsZero() && (earliest.IsZero() || a.Effective.Before(earliest)) {
			earliest = a.Effective
		}
		if !a.Expires.IsZero() && a.Expires.After(latest) {
			latest = a.Expires
		}
	}

	s := alertSummary{
		count:        len(matched),
		maxSeverity:  maxByRank(matched, severityRank, func(a nws.Alert) string { return a.Severity }),
		maxUrgency:   maxByRank(matched, urgencyRank, func(a nws.Alert) string { return a.Urgency }),
		maxCertainty: maxByRank(matched, certaintyRank, func(a nws.Alert) string { return a.Certainty }),
		events:       joinCell(uniqueInOrder(events)),
		headlines:    joinCell(capped(headlines, maxHeadlines)),
		descriptions: joinCell(capped(descriptions, maxDescriptions)),
		instructions: joinCell(capped(instructions, maxInstructions)),
		webURLs:      joinCell(capped(webURLs, maxWebURLs)),
		ids:          joinCell(capped(ids, maxAlertIDs)),
	}
	if !earliest.IsZero() {
		s.earliestEffective = earliest.Format(time.RFC3339)
	}
	if !latest.IsZero() {
		s.latestExpires = latest.Format(time.RFC3339)
	}
	return s
}

// maxByRank returns the highest-ranked value of field across the alerts,
// or "Unknown" when nothing outranks it.
func maxByRank(matched []nws.Alert, rank map[string]int, field func(nws.Alert) string) string {
	best, bestRank := "Unknown", 0
	for _, a := range matched {
		v := field(a)
		if r := rank[v]; r > bestRank {
			best, bestRank = v, r
		}
	}
	return best
}

// snippet shortens long alert prose to a fixed-length preview.
func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}

// joinCell renders a list into one CSV cell.
func joinCell(values []string) string {
	return strings.Join(values, " | ")
}

// uniqueInOrder drops duplicates, keeping first occurrences in place.
func uniqueInOrder(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func capped(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
