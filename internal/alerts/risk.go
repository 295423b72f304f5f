package alerts

import (
	"fmt"
	"strings"
)

// Combined risk levels, lowest to highest.
const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// assessRisk folds an organization's alert severity and FEMA counts into a
// single level plus the factors behind it. Recent closed declarations only
// register when nothing is truly active.
func assessRisk(hasAlerts bool, maxSeverity string, activeFEMA, recentFEMA int) (level, factors string) {
	level = RiskLow
	var reasons []string

	if hasAlerts {
		switch maxSeverity {
		case "Extreme":
			reasons = append(reasons, "Extreme Weather Alert")
			level = RiskCritical
		case "Severe":
			reasons = append(reasons, "Severe Weather Alert")
			level = RiskHigh
		case "Moderate", "Minor":
			reasons = append(reasons, "Weather Advisory")
			level = RiskModerate
		}
	}

	if activeFEMA > 0 {
		reasons = append(reasons, fmt.Sprintf("Active FEMA Disaster (%d)", activeFEMA))
		if level != RiskCritical {
			level = RiskHigh
		}
	}
	if recentFEMA > 0 && activeFEMA == 0 {
		reasons = append(reasons, fmt.Sprintf("Recent FEMA Disaster (%d)", recentFEMA))
		if level == RiskLow {
			level = RiskModerate
		}
	}

	if len(reasons) == 0 {
		return level, "None"
	}
	return level, strings.Join(reasons, " | ")
}
