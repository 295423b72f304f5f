package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brightline-research/orggeo/pkg/fema"
)

// Declaration types that justify keeping an open declaration beyond the
// 30-day window: major disaster, emergency, fire management.
var emergencyDeclTypes = map[string]bool{"DR": true, "EM": true, "FM": true}

// Incident types too administrative or stale to treat as ongoing risk.
var excludedIncidentTypes = map[string]bool{
	"TERRORIST":        true,
	"OTHER":            true,
	"TOXIC SUBSTANCES": true,
	"DAM/LEVEE BREAK":  true,
}

// disaster is a declaration that passed the relevance filter, with its
// derived status.
type disaster struct {
	decl        fema.Declaration
	daysSince   int
	status      string
	trulyActive bool
}

// relevantDisasters keeps declarations that still matter for current risk:
// anything declared within 30 days, or an open DR/EM/FM declaration within
// 90 days whose incident type is not excluded.
func relevantDisasters(decls []fema.Declaration, now time.Time) []disaster {
	var out []disaster
	for _, d := range decls {
		if d.DeclarationDate.IsZero() {
			continue
		}
		daysSince := int(now.Sub(d.DeclarationDate).Hours() / 24)
		open := d.DisasterCloseoutDate == nil

		veryRecent := daysSince <= 30
		recentAndOpen := daysSince <= 90 && open
		emergencyType := emergencyDeclTypes[strings.ToUpper(d.DeclarationType)]
		relevantIncident := !excludedIncidentTypes[strings.ToUpper(d.IncidentType)]

		if !veryRecent && !(recentAndOpen && emergencyType && relevantIncident) {
			continue
		}

		out = append(out, disaster{
			decl:        d,
			daysSince:   daysSince,
			status:      declarationStatus(open, daysSince),
			trulyActive: open && daysSince <= 90,
		})
	}
	return out
}

func declarationStatus(open bool, daysSince int) string {
	switch {
	case open && daysSince <= 30:
		return "Active - Recent"
	case open && daysSince <= 90:
		return "Active - Ongoing"
	case open:
		return "Active - Administrative"
	default:
		return fmt.Sprintf("Closed (%d days ago)", daysSince)
	}
}

// disasterSummary is one organization's aggregated view of its state's
// relevant declarations, joined for CSV cells.
type disasterSummary struct {
	count             int
	active            int
	recent            int
	types             string
	titles            string
	counties          string
	urls              string
	numbers           string
	statuses          string
	latestDeclaration string
}

// summarizeDisasters aggregates a state's declarations for one row.
// Detail fields describe the truly active declarations when any exist,
// otherwise the whole relevant set.
func summarizeDisasters(ds []disaster) disasterSummary {
	var active, closed []disaster
	for _, d := range ds {
		if d.trulyActive {
			active = append(active, d)
		} else {
			closed = append(closed, d)
		}
	}

	priority := ds
	if len(active) > 0 {
		priority = active
	}

	var types, titles, counties, urls, numbers, statuses []string
	var latest time.Time
	for _, d := range priority {
		if d.decl.IncidentType != "" {
			types = append(types, d.decl.IncidentType)
		}
		if d.decl.DeclarationTitle != "" {
			titles = append(titles, d.decl.DeclarationTitle)
		}
		if d.decl.DesignatedArea != "" {
			counties = append(counties, d.decl.DesignatedArea)
		}
		urls = append(urls, d.decl.WebURL())
		if d.decl.DisasterNumber != 0 {
			numbers = append(numbers, strconv.Itoa(d.decl.DisasterNumber))
		}
		statuses = append(statuses, d.status)
		if d.decl.DeclarationDate.After(latest) {
			latest = d.decl.DeclarationDate
		}
	}

	s := disasterSummary{
		count:    len(ds),
		active:   len(active),
		recent:   len(closed),
		types:    joinCell(uniqueInOrder(types)),
		titles:   joinCell(capped(titles, 3)),
		counties: joinCell(capped(uniqueInOrder(counties), 3)),
		urls:     joinCell(capped(urls, 3)),
		numbers:  joinCell(capped(numbers, 5)),
		statuses: joinCell(uniqueInOrder(statuses)),
	}
	if !latest.IsZero() {
		s.latestDeclaration = latest.Format(time.RFC3339)
	}
	return s
}
