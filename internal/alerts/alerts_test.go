package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/pkg/fema"
	"github.com/brightline-research/orggeo/pkg/nws"
)

func enrichmentInput() *csvio.Table {
	t := csvio.NewTable([]string{csvio.ColOrgName, csvio.ColState, csvio.ColRegion})
	t.Rows = append(t.Rows,
		[]string{"Capital Relief", "DC", "LWX"},
		[]string{"Lone Star Aid", "TX", ""},
		[]string{"Unknown Org", "N/A", "Not Found"},
	)
	return t
}

func TestEnricherRun(t *testing.T) {
	effective := time.Date(2026, 8, 22, 18, 0, 0, 0, time.UTC)
	expires := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)

	weather := new(mockWeather)
	weather.On("ActiveAlerts", mock.Anything).Return([]nws.Alert{
		{
			ID:          "urn:oid:2.49.0.1.840.0.lwx.1",
			Event:       "Severe Thunderstorm Warning",
			Severity:    "Severe",
			Urgency:     "Immediate",
			Certainty:   "Observed",
			Headline:    "Severe Thunderstorm Warning until 2 AM",
			Description: "Damaging winds expected.",
			Instruction: "Move indoors.",
			SenderName:  "NWS LWX Sterling",
			AreaDesc:    "District of Columbia",
			Web:         "https://alerts.weather.gov/lwx/1",
			Effective:   effective,
			Expires:     expires,
			Geocode:     nws.Geocode{UGC: []string{"DCZ001"}},
		},
		{
			ID:         "urn:oid:2.49.0.1.840.0.pqr.1",
			Event:      "Dense Fog Advisory",
			SenderName: "NWS Portland",
			AreaDesc:   "Multnomah County",
			Geocode:    nws.Geocode{UGC: []string{"ORZ006"}},
		},
	}, nil).Once()

	disasters := new(mockFEMA)
	disasters.On("DeclarationsByState", mock.Anything, "DC").
		Return([]fema.Declaration{}, nil).Once()
	disasters.On("DeclarationsByState", mock.Anything, "TX").
		Return([]fema.Declaration{{
			DisasterNumber:   4781,
			DeclarationType:  "DR",
			DeclarationTitle: "Texas Severe Storms and Flooding",
			IncidentType:     "Flood",
			DeclarationDate:  time.Now().AddDate(0, 0, -10),
			State:            "TX",
			DesignatedArea:   "Travis (County)",
		}}, nil).Once()

	tbl := enrichmentInput()
	report, err := New(weather, disasters).Run(context.Background(), tbl)
	require.NoError(t, err)

	// Organization in LWX with a matched alert and no declared disasters.
	assert.Equal(t, "True", tbl.Get(0, ColHasActiveAlerts))
	assert.Equal(t, "1", tbl.Get(0, ColAlertCount))
	assert.Equal(t, "Severe", tbl.Get(0, ColMaxSeverity))
	assert.Equal(t, "Severe Thunderstorm Warning", tbl.Get(0, ColAlertEvents))
	assert.Equal(t, "Severe Thunderstorm Warning until 2 AM", tbl.Get(0, ColAlertHeadlines))
	assert.Equal(t, "Immediate", tbl.Get(0, ColAlertUrgencyMax))
	assert.Equal(t, "Observed", tbl.Get(0, ColAlertCertaintyMax))
	assert.Equal(t, "2026-08-22T18:00:00Z", tbl.Get(0, ColEarliestEffective))
	assert.Equal(t, "2026-08-23T02:00:00Z", tbl.Get(0, ColLatestExpires))
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.lwx.1", tbl.Get(0, ColAlertIDs))
	assert.Equal(t, "0", tbl.Get(0, ColFEMACount))
	assert.Equal(t, "None", tbl.Get(0, ColFEMAStatus))
	assert.Equal(t, RiskHigh, tbl.Get(0, ColRiskLevel))
	assert.Equal(t, "Severe Weather Alert", tbl.Get(0, ColRiskFactors))
	assert.NotEmpty(t, tbl.Get(0, ColLastAlertCheck))

	// Organization without a region but in a state with an open disaster.
	assert.Equal(t, "False", tbl.Get(1, ColHasActiveAlerts))
	assert.Equal(t, "0", tbl.Get(1, ColAlertCount))
	assert.Equal(t, "None", tbl.Get(1, ColMaxSeverity))
	assert.Equal(t, "1", tbl.Get(1, ColFEMACount))
	assert.Equal(t, "1", tbl.Get(1, ColFEMAActive))
	assert.Equal(t, "0", tbl.Get(1, ColFEMARecent))
	assert.Equal(t, "Flood", tbl.Get(1, ColFEMATypes))
	assert.Equal(t, "4781", tbl.Get(1, ColFEMANumbers))
	assert.Equal(t, "https://www.fema.gov/disaster/4781", tbl.Get(1, ColFEMAURLs))
	assert.Equal(t, "Active - Recent", tbl.Get(1, ColFEMAStatus))
	assert.Equal(t, RiskHigh, tbl.Get(1, ColRiskLevel))
	assert.Equal(t, "Active FEMA Disaster (1)", tbl.Get(1, ColRiskFactors))

	// Organization with legacy markers in both columns.
	assert.Equal(t, "False", tbl.Get(2, ColHasActiveAlerts))
	assert.Equal(t, "None", tbl.Get(2, ColMaxSeverity))
	assert.Equal(t, "0", tbl.Get(2, ColFEMACount))
	assert.Equal(t, "No State Info", tbl.Get(2, ColFEMAStatus))
	assert.Equal(t, RiskLow, tbl.Get(2, ColRiskLevel))
	assert.Equal(t, "None", tbl.Get(2, ColRiskFactors))

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.WithAlerts)
	assert.Equal(t, 1, report.WithFEMA)
	assert.Equal(t, 1, report.WithActiveFEMA)
	assert.Equal(t, map[string]int{"Severe Thunderstorm Warning": 1}, report.EventCounts)
	assert.Equal(t, map[string]int{"Flood": 1}, report.DisasterTypeCounts)
	assert.Equal(t, map[string]int{RiskHigh: 2, RiskLow: 1}, report.RiskCounts)

	weather.AssertExpectations(t)
	disasters.AssertExpectations(t)
}

func TestEnricherRun_MissingColumns(t *testing.T) {
	weather := new(mockWeather)
	disasters := new(mockFEMA)

	tbl := csvio.NewTable([]string{csvio.ColOrgName, csvio.ColState})
	_, err := New(weather, disasters).Run(context.Background(), tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	weather.AssertNumberOfCalls(t, "ActiveAlerts", 0)
}

func TestEnricherRun_AlertsFetchFails(t *testing.T) {
	weather := new(mockWeather)
	weather.On("ActiveAlerts", mock.Anything).
		Return(nil, eris.New("nws: request failed")).Once()
	disasters := new(mockFEMA)

	_, err := New(weather, disasters).Run(context.Background(), enrichmentInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch active alerts")
	disasters.AssertNumberOfCalls(t, "DeclarationsByState", 0)
}

func TestEnricherRun_FEMAFetchFailureIsPerState(t *testing.T) {
	weather := new(mockWeather)
	weather.On("ActiveAlerts", mock.Anything).Return([]nws.Alert{}, nil).Once()

	disasters := new(mockFEMA)
	disasters.On("DeclarationsByState", mock.Anything, "DC").
		Return(nil, eris.New("fema: request failed")).Once()
	disasters.On("DeclarationsByState", mock.Anything, "TX").
		Return([]fema.Declaration{{
			DisasterNumber:  4790,
			DeclarationType: "EM",
			IncidentType:    "Hurricane",
			DeclarationDate: time.Now().AddDate(0, 0, -5),
			State:           "TX",
		}}, nil).Once()

	tbl := enrichmentInput()
	report, err := New(weather, disasters).Run(context.Background(), tbl)
	require.NoError(t, err)

	// The failed state reads as disaster-free; the healthy one still lands.
	assert.Equal(t, "0", tbl.Get(0, ColFEMACount))
	assert.Equal(t, "None", tbl.Get(0, ColFEMAStatus))
	assert.Equal(t, "1", tbl.Get(1, ColFEMACount))
	assert.Equal(t, 1, report.WithFEMA)
}
