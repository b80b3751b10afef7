package core

// input.go reads an uploaded file into CSV records.
//
// Files are bounded by the importer's size limit, so the whole body is read
// into memory: at most limit+1 bytes are consumed to detect oversize files
// without reading an unbounded stream.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	errFileTooLarge = errors.New("file too large")
	errBinaryFile   = errors.New("invalid csv: file contains binary data")
)

// readBounded reads r completely, failing with errFileTooLarge once more
// than limit bytes are available.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}

// parseCSV decodes CSV records from sanitized input, dropping a leading BOM.
// Blank lines are skipped by encoding/csv; ragged rows are allowed and
// normalized against the header by rowData.
func parseCSV(data []byte) ([][]string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errBinaryFile
	}
	data = bytes.TrimPrefix(sanitizeUTF8(data), []byte(utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// rowData maps header columns to the raw cells of a record. Missing
// trailing cells become empty strings; cells beyond the header are ignored.
func rowData(columns, record []string) map[string]string {
	data := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(record) {
			data[col] = record[i]
		} else {
			data[col] = ""
		}
	}
	return data
}
