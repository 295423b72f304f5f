package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/pkg/geocode"
)

func newOrgTable(rows ...[]string) *csvio.Table {
	t := csvio.NewTable([]string{
		csvio.ColOrgName,
		csvio.ColStreet,
		csvio.ColCity,
		csvio.ColState,
		csvio.ColZip,
	})
	t.Rows = append(t.Rows, rows...)
	return t
}

func dcRow() []string {
	return []string{"Acme Relief", "1100 4th St SW", "Washington", "DC", "20024"}
}

func dcAddress() geocode.AddressInput {
	return geocode.AddressInput{
		Street:  "1100 4th St SW",
		City:    "Washington",
		State:   "DC",
		ZipCode: "20024",
	}
}

// geocodedTable builds a one-row table that already carries a full
// geocoding outcome from an earlier run.
func geocodedTable(lat, lon, status, method, region string) *csvio.Table {
	tbl := newOrgTable(dcRow())
	tbl.EnsureColumns(csvio.EnrichmentColumns...)
	tbl.Set(0, csvio.ColLatitude, lat)
	tbl.Set(0, csvio.ColLongitude, lon)
	tbl.Set(0, csvio.ColStatus, status)
	tbl.Set(0, csvio.ColMethod, method)
	tbl.Set(0, csvio.ColRegion, region)
	return tbl
}

func TestRun_GeocodesNewRow(t *testing.T) {
	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, dcAddress()).
		Return(&geocode.Result{Latitude: 38.899, Longitude: -77.044, Method: "Free Service (Full)", Matched: true}, nil).
		Once()
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 38.899, -77.044).
		Return("LWX", RegionFound).
		Once()

	tbl := newOrgTable(dcRow())
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "38.899000", tbl.Get(0, csvio.ColLatitude))
	assert.Equal(t, "-77.044000", tbl.Get(0, csvio.ColLongitude))
	assert.Equal(t, StatusSuccess, tbl.Get(0, csvio.ColStatus))
	assert.Equal(t, "Free Service (Full)", tbl.Get(0, csvio.ColMethod))
	assert.Equal(t, "LWX", tbl.Get(0, csvio.ColRegion))

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.NewlyGeocoded)
	assert.Equal(t, 1, stats.ByMethod["Free Service (Full)"])
	assert.Equal(t, 1, stats.RegionFound)
	assert.Equal(t, 1, stats.ByRegion["LWX"])

	geocoder.AssertExpectations(t)
	regions.AssertExpectations(t)
}

func TestRun_FailedRowSkipsRegionLookup(t *testing.T) {
	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, mock.Anything).
		Return(&geocode.Result{Matched: false}, nil).
		Once()
	regions := new(mockRegions)

	tbl := newOrgTable(dcRow())
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "", tbl.Get(0, csvio.ColLatitude))
	assert.Equal(t, "", tbl.Get(0, csvio.ColLongitude))
	assert.Equal(t, StatusFailed, tbl.Get(0, csvio.ColStatus))
	assert.Equal(t, MethodFailed, tbl.Get(0, csvio.ColMethod))
	assert.Equal(t, "", tbl.Get(0, csvio.ColRegion))
	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, stats.ByMethod)
	regions.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_EmptyAddress(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := newOrgTable([]string{"Ghost Org", "", "  ", "", ""})
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, StatusEmptyAddress, tbl.Get(0, csvio.ColStatus))
	assert.Equal(t, "", tbl.Get(0, csvio.ColMethod))
	assert.Equal(t, 1, stats.EmptyAddress)
	assert.Equal(t, 0, stats.NewlyGeocoded)
	geocoder.AssertNumberOfCalls(t, "Geocode", 0)
	regions.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_SkipsCompleteRows(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := geocodedTable("38.899000", "-77.044000", StatusSuccess, "Google Maps (Full)", "LWX")
	snapshot := append([]string(nil), tbl.Rows[0]...)

	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, snapshot, tbl.Rows[0])
	assert.Equal(t, 1, stats.AlreadyHad)
	assert.Equal(t, 0, stats.NewlyGeocoded)
	assert.Equal(t, 1, stats.ByMethod["Google Maps (Full)"])
	assert.Equal(t, 1, stats.ByRegion["LWX"])
	assert.Equal(t, 0, stats.RegionFound)
	geocoder.AssertNumberOfCalls(t, "Geocode", 0)
	regions.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_PartialMarkersReprocessed(t *testing.T) {
	// Latitude, longitude and status present but no method: the row is
	// geocoded again, not skipped.
	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, dcAddress()).
		Return(&geocode.Result{Latitude: 38.899, Longitude: -77.044, Method: "Free Service (Full)", Matched: true}, nil).
		Once()
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 38.899, -77.044).
		Return("LWX", RegionFound).
		Once()

	tbl := geocodedTable("1.000000", "2.000000", StatusSuccess, "", "")
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "38.899000", tbl.Get(0, csvio.ColLatitude))
	assert.Equal(t, 1, stats.NewlyGeocoded)
	assert.Equal(t, 0, stats.AlreadyHad)
	geocoder.AssertExpectations(t)
}

func TestRun_RegionOnlyPath(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 38.899, -77.044).
		Return("LWX", RegionFound).
		Once()

	tbl := geocodedTable("38.899000", "-77.044000", StatusSuccess, "Census Bureau", "")
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "LWX", tbl.Get(0, csvio.ColRegion))
	assert.Equal(t, 1, stats.AlreadyHad)
	assert.Equal(t, 1, stats.RegionFound)
	assert.Equal(t, 1, stats.ByRegion["LWX"])
	geocoder.AssertNumberOfCalls(t, "Geocode", 0)
	regions.AssertExpectations(t)
}

func TestRun_RegionOnlyPathLegacyMarker(t *testing.T) {
	// "Not Found" came from earlier tooling and counts as no region.
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 38.899, -77.044).
		Return("LWX", RegionFound).
		Once()

	tbl := geocodedTable("38.899000", "-77.044000", StatusSuccess, "Census Bureau", "Not Found")
	_, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "LWX", tbl.Get(0, csvio.ColRegion))
	regions.AssertExpectations(t)
}

func TestRun_RegionOnlyPathOutsideCoverage(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 21.31, -157.86).
		Return("", RegionOutside).
		Once()

	tbl := geocodedTable("21.310000", "-157.860000", StatusSuccess, "Census Bureau", "")
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "", tbl.Get(0, csvio.ColRegion))
	assert.Equal(t, 1, stats.RegionOutside)
	assert.Equal(t, 0, stats.WithRegion())
}

func TestRun_RegionOnlySkipsFailedStatus(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := geocodedTable("38.899000", "-77.044000", StatusFailed, MethodFailed, "")
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.AlreadyHad)
	regions.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_UnparseableStoredCoordinates(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := geocodedTable("not-a-number", "-77.044000", StatusSuccess, "Census Bureau", "")
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.AlreadyHad)
	assert.Equal(t, "", tbl.Get(0, csvio.ColRegion))
	regions.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_GeocoderErrorLeavesRowUntouched(t *testing.T) {
	secondAddr := geocode.AddressInput{Street: "700 SW Broadway", City: "Portland", State: "OR", ZipCode: "97205"}

	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, dcAddress()).
		Return(nil, eris.New("geocode: interrupted")).
		Once()
	geocoder.On("Geocode", mock.Anything, secondAddr).
		Return(&geocode.Result{Latitude: 45.519, Longitude: -122.679, Method: "Free Service (Full)", Matched: true}, nil).
		Once()
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, 45.519, -122.679).
		Return("PQR", RegionFound).
		Once()

	tbl := newOrgTable(
		dcRow(),
		[]string{"Rose City Aid", "700 SW Broadway", "Portland", "OR", "97205"},
	)
	stats, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	// Errored row stays blank so a rerun retries it; the run continues.
	assert.Equal(t, "", tbl.Get(0, csvio.ColStatus))
	assert.Equal(t, "", tbl.Get(0, csvio.ColLatitude))
	assert.Equal(t, StatusSuccess, tbl.Get(1, csvio.ColStatus))
	assert.Equal(t, "PQR", tbl.Get(1, csvio.ColRegion))
	assert.Equal(t, 1, stats.NewlyGeocoded)
	assert.Equal(t, 0, stats.Failed)
	geocoder.AssertExpectations(t)
}

func TestRun_SecondRunMakesNoCalls(t *testing.T) {
	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, mock.Anything).
		Return(&geocode.Result{Latitude: 38.899, Longitude: -77.044, Method: "Free Service (Full)", Matched: true}, nil).
		Once()
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, mock.Anything, mock.Anything).
		Return("LWX", RegionFound).
		Once()

	tbl := newOrgTable(dcRow())
	_, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	snapshot := append([]string(nil), tbl.Rows[0]...)

	// Rerunning over the enriched table goes entirely through the gate.
	geocoder2 := new(mockGeocoder)
	regions2 := new(mockRegions)
	stats, err := New(geocoder2, regions2).Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, snapshot, tbl.Rows[0])
	assert.Equal(t, 1, stats.AlreadyHad)
	assert.Equal(t, 0, stats.NewlyGeocoded)
	geocoder2.AssertNumberOfCalls(t, "Geocode", 0)
	regions2.AssertNumberOfCalls(t, "Lookup", 0)
}

func TestRun_InterruptStopsAtRecordBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geocoder := new(mockGeocoder)
	geocoder.On("Geocode", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&geocode.Result{Latitude: 38.899, Longitude: -77.044, Method: "Free Service (Full)", Matched: true}, nil).
		Once()
	regions := new(mockRegions)
	regions.On("Lookup", mock.Anything, mock.Anything, mock.Anything).
		Return("LWX", RegionFound).
		Once()

	tbl := newOrgTable(
		dcRow(),
		[]string{"Rose City Aid", "700 SW Broadway", "Portland", "OR", "97205"},
	)
	stats, err := New(geocoder, regions).Run(ctx, tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The in-flight row finished; the next one was never started.
	require.NotNil(t, stats)
	assert.Equal(t, StatusSuccess, tbl.Get(0, csvio.ColStatus))
	assert.Equal(t, "", tbl.Get(1, csvio.ColStatus))
	assert.Equal(t, 1, stats.NewlyGeocoded)
	geocoder.AssertNumberOfCalls(t, "Geocode", 1)
}

func TestRun_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := newOrgTable(dcRow())
	stats, err := New(geocoder, regions).Run(ctx, tbl)
	require.Error(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "", tbl.Get(0, csvio.ColStatus))
	geocoder.AssertNumberOfCalls(t, "Geocode", 0)
}

func TestRun_AddsEnrichmentColumns(t *testing.T) {
	geocoder := new(mockGeocoder)
	regions := new(mockRegions)

	tbl := newOrgTable()
	_, err := New(geocoder, regions).Run(context.Background(), tbl)
	require.NoError(t, err)

	for _, col := range csvio.EnrichmentColumns {
		assert.True(t, tbl.HasColumn(col), col)
	}
}

func TestFormatCoordinate(t *testing.T) {
	assert.Equal(t, "38.899000", formatCoordinate(38.899))
	assert.Equal(t, "-77.044123", formatCoordinate(-77.0441234))
	assert.Equal(t, "0.000000", formatCoordinate(0))
}
