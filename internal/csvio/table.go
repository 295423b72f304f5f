// Package csvio loads and writes the organization report tables the
// pipeline enriches. Input is CSV or XLSX (Salesforce report exports come
// as either); output is always UTF-8 CSV.
package csvio

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Columns of the Salesforce organization report.
const (
	ColOrgName = "Organization Name"
	ColStreet  = "Primary Address Street"
	ColCity    = "Primary Address City"
	ColState   = "Primary Address State/Province"
	ColZip     = "Primary Address Zip/Postal Code"
)

// Columns written by the geocoding pipeline.
const (
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
	ColStatus    = "Geocoding_Status"
	ColMethod    = "Geocoding_Method"
	ColRegion    = "CWA_Region"
)

// RequiredColumns must all be present in a geocoding input file.
var RequiredColumns = []string{ColOrgName, ColStreet, ColCity, ColState, ColZip}

// EnrichmentColumns are appended to the table when absent.
var EnrichmentColumns = []string{ColLatitude, ColLongitude, ColStatus, ColMethod, ColRegion}

// Table is an in-memory tabular dataset with ordered, named columns. Cell
// values are carried as strings exactly as read; untouched cells round-trip
// verbatim.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable creates an empty table with the given header.
func NewTable(header []string) *Table {
	t := &Table{Header: header}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.index[name] = i
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the cell value, or "" when the column is absent or the row
// is shorter than the header.
func (t *Table) Get(row int, col string) string {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes the cell value, padding the row with empty cells if needed.
// Unknown columns are ignored.
func (t *Table) Set(row int, col, val string) {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) {
		return
	}
	for len(t.Rows[row]) <= i {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][i] = val
}

// EnsureColumns appends any missing columns to the header and pads every
// row to the new width. Existing columns keep position and contents.
func (t *Table) EnsureColumns(cols ...string) {
	for _, col := range cols {
		if t.HasColumn(col) {
			continue
		}
		t.Header = append(t.Header, col)
		t.index[col] = len(t.Header) - 1
	}
	for i := range t.Rows {
		for len(t.Rows[i]) < len(t.Header) {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
}

// RequireColumns fails when any of the named columns is missing.
func (t *Table) RequireColumns(cols ...string) error {
	var missing []string
	for _, col := range cols {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("csvio: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
