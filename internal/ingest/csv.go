package ingest

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/gocarina/gocsv"

	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

// ReadCSV imports trades from a CSV file with a header row. Columns are
// matched by name (see RawTrade); unknown columns are ignored. Rows that
// fail validation are returned as RowErrors and the rest are imported.
func ReadCSV(r io.Reader) ([]models.TradeRecord, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read csv")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	data = normalizeHeader(data)
	var rows []RawTrade
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, nil, errors.NewValidationError("csv", "", err.Error())
	}
	lines := recordLines(data)

	trades := make([]models.TradeRecord, 0, len(rows))
	var rejected []RowError
	for i, raw := range rows {
		t, err := ParseTrade(raw)
		if err != nil {
			rejected = append(rejected, RowError{Line: rowLine(lines, i), Err: err})
			continue
		}
		trades = append(trades, t)
	}
	return trades, rejected, nil
}

// recordLines returns the file line each data record starts on. Quoted
// fields may span lines, so this differs from the record index.
func recordLines(data []byte) []int {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var lines []int
	for header := true; ; header = false {
		if _, err := r.Read(); err != nil {
			return lines
		}
		if header {
			continue
		}
		line, _ := r.FieldPos(0)
		lines = append(lines, line)
	}
}

func rowLine(lines []int, i int) int {
	if i < len(lines) {
		return lines[i]
	}
	// line 1 is the header
	return i + 2
}

// normalizeHeader lower-cases the header row and turns spaces into
// underscores, so "R Multiple" matches r_multiple.
func normalizeHeader(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		end = len(data)
	}
	header := bytes.ToLower(data[:end])
	header = bytes.ReplaceAll(header, []byte(" "), []byte("_"))
	header = bytes.ReplaceAll(header, []byte(",_"), []byte(","))
	out := make([]byte, 0, len(data))
	out = append(out, header...)
	return append(out, data[end:]...)
}

// WriteCSV exports trades with the same columns ReadCSV accepts.
func WriteCSV(w io.Writer, trades []models.TradeRecord) error {
	rows := make([]RawTrade, len(trades))
	for i, t := range trades {
		rows[i] = ToRaw(t)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "failed to write csv")
	}
	return nil
}
