package csvio

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable loads a CSV or XLSX file, chosen by extension. For CSV the
// encoding argument forces a named character encoding; when empty, the
// bytes are tried as utf-8, then cp1252, then iso-8859-1 (Salesforce
// inconsistently encodes report exports).
func ReadTable(path, encoding string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	return readCSV(path, encoding)
}

func readCSV(path, encoding string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: read file")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if encoding != "" {
		data, err = decodeNamed(data, encoding)
		if err != nil {
			return nil, err
		}
	} else {
		var detected string
		data, detected = decodeFallback(data)
		zap.L().Debug("decoded input file", zap.String("encoding", detected))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csvio: file has no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csvio: read header")
	}

	t := NewTable(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csvio: read row")
		}
		for len(record) < len(t.Header) {
			record = append(record, "")
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// decodeNamed converts data from the named encoding to UTF-8.
func decodeNamed(data []byte, name string) ([]byte, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: unsupported encoding %q", name)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: decode as %s", name)
	}
	return decoded, nil
}

// cp1252Undefined holds the five bytes cp1252 leaves unassigned. Files
// containing them are routed to latin1, where every byte is defined.
var cp1252Undefined = []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

// decodeFallback returns data as UTF-8, reporting which encoding in the
// fallback chain produced a clean decode.
func decodeFallback(data []byte) ([]byte, string) {
	if utf8.Valid(data) {
		return data, "utf-8"
	}

	if !containsAnyByte(data, cp1252Undefined) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err == nil {
			return decoded, "cp1252"
		}
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err == nil {
		return decoded, "iso-8859-1"
	}
	return data, "utf-8"
}

func containsAnyByte(data, set []byte) bool {
	for _, b := range set {
		if bytes.IndexByte(data, b) >= 0 {
			return true
		}
	}
	return false
}

func readXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("csvio: xlsx file has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("csvio: file has no header row")
	}

	t := NewTable(rowToStrings(sheet.Rows[0]))
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		for len(cells) < len(t.Header) {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
