package alerts

import (
	"strings"

	"github.com/brightline-research/orggeo/pkg/nws"
)

// matchAlertsToZones groups active alerts under each target zone they
// cover. An alert's own UGC codes are checked first; only when none of
// them is a target does the match fall back to the issuing office name
// (for 3-letter CWA codes) or the area description.
func matchAlertsToZones(activeAlerts []nws.Alert, zones []string) map[string][]nws.Alert {
	byZone := make(map[string][]nws.Alert)

	for _, alert := range activeAlerts {
		hits := make(map[string]bool)

		for _, ugc := range alert.Geocode.UGC {
			for _, zone := range zones {
				if ugc == zone {
					hits[zone] = true
				}
			}
		}

		if len(hits) == 0 {
			sender := strings.ToUpper(alert.SenderName)
			area := strings.ToUpper(alert.AreaDesc)
			for _, zone := range zones {
				up := strings.ToUpper(zone)
				if len(zone) == 3 {
					if strings.Contains(sender, up) {
						hits[zone] = true
					}
				} else if strings.Contains(area, up) {
					hits[zone] = true
				}
			}
		}

		for zone := range hits {
			byZone[zone] = append(byZone[zone], alert)
		}
	}

	return byZone
}
