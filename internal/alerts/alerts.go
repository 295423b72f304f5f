// Package alerts enriches a geocoded organization table with active
// weather alerts from weather.gov and FEMA disaster declarations, then
// rolls both into a combined risk level per organization.
package alerts

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/pkg/fema"
	"github.com/brightline-research/orggeo/pkg/nws"
)

// Weather alert columns.
const (
	ColHasActiveAlerts   = "has_active_alerts"
	ColAlertCount        = "alert_count"
	ColMaxSeverity       = "max_severity"
	ColAlertEvents       = "alert_events"
	ColAlertHeadlines    = "alert_headlines"
	ColAlertDescriptions = "alert_descriptions"
	ColAlertInstructions = "alert_instructions"
	ColEarliestEffective = "earliest_effective"
	ColLatestExpires     = "latest_expires"
	ColAlertUrgencyMax   = "alert_urgency_max"
	ColAlertCertaintyMax = "alert_certainty_max"
	ColAlertWebURLs      = "alert_web_urls"
	ColAlertIDs          = "alert_ids"
)

// FEMA disaster columns.
const (
	ColFEMACount          = "fema_disaster_count"
	ColFEMAActive         = "fema_active_disasters"
	ColFEMARecent         = "fema_recent_disasters"
	ColFEMATypes          = "fema_disaster_types"
	ColFEMATitles         = "fema_disaster_titles"
	ColFEMACounties       = "fema_disaster_counties"
	ColFEMAURLs           = "fema_disaster_urls"
	ColFEMALatestDate     = "fema_latest_declaration_date"
	ColFEMANumbers        = "fema_disaster_numbers"
	ColFEMAStatus         = "fema_disaster_status"
)

// Combined risk assessment columns.
const (
	ColRiskLevel      = "combined_risk_level"
	ColRiskFactors    = "risk_factors"
	ColLastAlertCheck = "last_alert_check"
)

// Columns lists every column the stage appends, in output order.
var Columns = []string{
	ColHasActiveAlerts, ColAlertCount, ColMaxSeverity, ColAlertEvents,
	ColAlertHeadlines, ColAlertDescriptions, ColAlertInstructions,
	ColEarliestEffective, ColLatestExpires, ColAlertUrgencyMax,
	ColAlertCertaintyMax, ColAlertWebURLs, ColAlertIDs,

	ColFEMACount, ColFEMAActive, ColFEMARecent,
	ColFEMATypes, ColFEMATitles, ColFEMACounties,
	ColFEMAURLs, ColFEMALatestDate, ColFEMANumbers,
	ColFEMAStatus,

	ColRiskLevel, ColRiskFactors, ColLastAlertCheck,
}

// femaFetchWorkers bounds concurrent per-state FEMA requests. The client's
// own pacing keeps the request rate polite regardless.
const femaFetchWorkers = 4

// The markers earlier tooling wrote into the region column; both mean the
// organization has no usable CWA region.
func missingRegion(v string) bool {
	return v == "" || v == "N/A" || v == "Not Found"
}

func missingState(v string) bool {
	return v == "" || v == "N/A"
}

// Enricher joins active weather alerts and FEMA disaster declarations onto
// organization rows by CWA region and state.
type Enricher struct {
	weather   nws.Client
	disasters fema.Client
}

// New creates an Enricher over the given API clients.
func New(weather nws.Client, disasters fema.Client) *Enricher {
	return &Enricher{weather: weather, disasters: disasters}
}

// Run enriches every row of the table in place and returns the run report.
// The table must carry the CWA region and state columns. Alerts are fetched
// once for the whole country; FEMA declarations once per distinct state.
func (e *Enricher) Run(ctx context.Context, t *csvio.Table) (*Report, error) {
	log := zap.L().With(zap.String("run_id", uuid.NewString()))

	if err := t.RequireColumns(csvio.ColRegion, csvio.ColState); err != nil {
		return nil, err
	}

	zones := collectZones(t)
	states := collectStates(t)
	log.Info("alerts: scanning table",
		zap.Int("rows", t.Len()),
		zap.Int("zones", len(zones)),
		zap.Int("states", len(states)),
	)

	activeAlerts, err := e.weather.ActiveAlerts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "alerts: fetch active alerts")
	}
	log.Info("alerts: fetched active alerts", zap.Int("count", len(activeAlerts)))

	now := time.Now()
	byState := e.fetchDisasters(ctx, log, states, now)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "alerts: interrupted")
	}

	byZone := matchAlertsToZones(activeAlerts, zones)
	matched := 0
	for _, list := range byZone {
		matched += len(list)
	}
	log.Info("alerts: matched alerts to zones",
		zap.Int("alerts", matched),
		zap.Int("zones_hit", len(byZone)),
	)

	t.EnsureColumns(Columns...)

	report := NewReport()
	report.Total = t.Len()
	checkedAt := now.Format(time.RFC3339)

	for row := 0; row < t.Len(); row++ {
		e.enrichRow(t, row, byZone, byState, checkedAt, report)
	}

	log.Info("alerts: run complete",
		zap.Int("with_alerts", report.WithAlerts),
		zap.Int("with_fema", report.WithFEMA),
		zap.Int("with_active_fema", report.WithActiveFEMA),
	)
	return report, nil
}

// fetchDisasters pulls declarations for each state concurrently. A failed
// state is logged and treated as having no declarations; the stage keeps
// going.
func (e *Enricher) fetchDisasters(ctx context.Context, log *zap.Logger, states []string, now time.Time) map[string][]disaster {
	byState := make(map[string][]disaster, len(states))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(femaFetchWorkers)
	for _, state := range states {
		g.Go(func() error {
			decls, err := e.disasters.DeclarationsByState(gctx, state)
			if err != nil {
				log.Warn("alerts: fema fetch failed",
					zap.String("state", state),
					zap.Error(err),
				)
			}
			relevant := relevantDisasters(decls, now)
			active := 0
			for _, d := range relevant {
				if d.trulyActive {
					active++
				}
			}
			log.Debug("alerts: fema declarations",
				zap.String("state", state),
				zap.Int("relevant", len(relevant)),
				zap.Int("truly_active", active),
			)
			mu.Lock()
			byState[state] = relevant
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return byState
}

func (e *Enricher) enrichRow(t *csvio.Table, row int, byZone map[string][]nws.Alert, byState map[string][]disaster, checkedAt string, report *Report) {
	t.Set(row, ColLastAlertCheck, checkedAt)

	region := strings.TrimSpace(t.Get(row, csvio.ColRegion))
	hasAlerts := false
	maxSeverity := "None"
	if !missingRegion(region) {
		if matched := byZone[region]; len(matched) > 0 {
			hasAlerts = true
			s := summarizeAlerts(matched)
			maxSeverity = s.maxSeverity

			t.Set(row, ColAlertCount, strconv.Itoa(s.count))
			t.Set(row, ColAlertEvents, s.events)
			t.Set(row, ColAlertHeadlines, s.headlines)
			t.Set(row, ColAlertDescriptions, s.descriptions)
			t.Set(row, ColAlertInstructions, s.instructions)
			t.Set(row, ColEarliestEffective, s.earliestEffective)
			t.Set(row, ColLatestExpires, s.latestExpires)
			t.Set(row, ColAlertUrgencyMax, s.maxUrgency)
			t.Set(row, ColAlertCertaintyMax, s.maxCertainty)
			t.Set(row, ColAlertWebURLs, s.webURLs)
			t.Set(row, ColAlertIDs, s.ids)

			report.WithAlerts++
			report.countEvents(s.events)
		}
	}
	t.Set(row, ColHasActiveAlerts, formatBool(hasAlerts))
	t.Set(row, ColMaxSeverity, maxSeverity)
	if !hasAlerts {
		t.Set(row, ColAlertCount, "0")
	}

	state := strings.TrimSpace(t.Get(row, csvio.ColState))
	activeFEMA, recentFEMA := 0, 0
	if missingState(state) {
		t.Set(row, ColFEMACount, "0")
		t.Set(row, ColFEMAActive, "0")
		t.Set(row, ColFEMARecent, "0")
		t.Set(row, ColFEMAStatus, "No State Info")
	} else if ds := byState[state]; len(ds) > 0 {
		s := summarizeDisasters(ds)
		activeFEMA, recentFEMA = s.active, s.recent

		t.Set(row, ColFEMACount, strconv.Itoa(s.count))
		t.Set(row, ColFEMAActive, strconv.Itoa(s.active))
		t.Set(row, ColFEMARecent, strconv.Itoa(s.recent))
		t.Set(row, ColFEMATypes, s.types)
		t.Set(row, ColFEMATitles, s.titles)
		t.Set(row, ColFEMACounties, s.counties)
		t.Set(row, ColFEMAURLs, s.urls)
		t.Set(row, ColFEMALatestDate, s.latestDeclaration)
		t.Set(row, ColFEMANumbers, s.numbers)
		t.Set(row, ColFEMAStatus, s.statuses)

		report.WithFEMA++
		if s.active > 0 {
			report.WithActiveFEMA++
		}
		report.countDisasterTypes(s.types)
	} else {
		t.Set(row, ColFEMACount, "0")
		t.Set(row, ColFEMAActive, "0")
		t.Set(row, ColFEMARecent, "0")
		t.Set(row, ColFEMAStatus, "None")
	}

	level, factors := assessRisk(hasAlerts, maxSeverity, activeFEMA, recentFEMA)
	t.Set(row, ColRiskLevel, level)
	t.Set(row, ColRiskFactors, factors)
	report.RiskCounts[level]++
}

// collectZones returns the distinct usable CWA regions in the table.
func collectZones(t *csvio.Table) []string {
	seen := make(map[string]bool)
	var zones []string
	for row := 0; row < t.Len(); row++ {
		v := strings.TrimSpace(t.Get(row, csvio.ColRegion))
		if missingRegion(v) || seen[v] {
			continue
		}
		seen[v] = true
		zones = append(zones, v)
	}
	return zones
}

// collectStates returns the distinct usable state values in the table.
func collectStates(t *csvio.Table) []string {
	seen := make(map[string]bool)
	var states []string
	for row := 0; row < t.Len(); row++ {
		v := strings.TrimSpace(t.Get(row, csvio.ColState))
		if missingState(v) || seen[v] {
			continue
		}
		seen[v] = true
		states = append(states, v)
	}
	return states
}

// formatBool writes True/False, matching files produced by earlier runs.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
