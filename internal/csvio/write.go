package csvio

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// WriteCSV writes the table to path as UTF-8 CSV.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csvio: create output file")
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "csvio: write header")
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			f.Close() //nolint:errcheck,gosec
			return eris.Wrap(err, "csvio: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "csvio: flush output")
	}

	if err := f.Close(); err != nil {
		return eris.Wrap(err, "csvio: close output file")
	}
	return nil
}

// DefaultOutputPath derives an output file name from the input path by
// appending suffix to the base name. The output is always .csv, whatever
// the input extension: report.xlsx + "_geocoded" -> report_geocoded.csv.
func DefaultOutputPath(inputPath, suffix string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + suffix + ".csv"
}
