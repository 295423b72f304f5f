package pipeline

import (
	"strconv"
	"strings"

	"github.com/brightline-research/orggeo/internal/csvio"
)

// legacyRegionMarkers are placeholder values earlier tooling wrote instead
// of leaving the region cell empty. They count as "no region".
var legacyRegionMarkers = map[string]bool{
	"N/A":       true,
	"Not Found": true,
}

// hasGeocodeData reports whether the row already carries a complete
// geocoding outcome. All four marker columns must be non-empty; three of
// four is not enough to skip the row.
func hasGeocodeData(t *csvio.Table, row int) bool {
	return t.Get(row, csvio.ColLatitude) != "" &&
		t.Get(row, csvio.ColLongitude) != "" &&
		t.Get(row, csvio.ColStatus) != "" &&
		t.Get(row, csvio.ColMethod) != ""
}

// existingCoordinates parses the coordinates already stored on a row.
func existingCoordinates(t *csvio.Table, row int) (lat, lon float64, ok bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(t.Get(row, csvio.ColLatitude)), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(t.Get(row, csvio.ColLongitude)), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// regionValue returns the row's region code, treating legacy placeholder
// markers as empty.
func regionValue(t *csvio.Table, row int) string {
	v := strings.TrimSpace(t.Get(row, csvio.ColRegion))
	if legacyRegionMarkers[v] {
		return ""
	}
	return v
}
