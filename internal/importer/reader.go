package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/retailops/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// parseProgressBatch is how many rows are emitted between parsed-row counter
// updates, so progress is visible mid-parse for large files.
const parseProgressBatch = 1000

// rowFunc receives one raw row with its 1-based data row number.
type rowFunc func(rowNum int, row domain.RawRow) error

// readRows turns a raw byte payload plus filename into a single-pass sequence
// of raw rows, dispatching on the file extension. onHeaders, when non-nil, is
// invoked once with the sanitized header row in column order before any data
// row. onParsed, when non-nil, is invoked with the cumulative row count every
// parseProgressBatch rows and once at the end. The returned total is the
// number of data rows emitted.
func readRows(fileName string, payload []byte, schema TargetSchema, onHeaders func(headers []string), onParsed func(count int), emit rowFunc) (int, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		return readCSV(payload, schema, onHeaders, onParsed, emit)
	case ".xlsx", ".xls":
		return readWorkbook(payload, schema, onHeaders, onParsed, emit)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func readCSV(payload []byte, schema TargetSchema, onHeaders func([]string), onParsed func(int), emit rowFunc) (int, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.Comma = sniffDelimiter(payload)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headerRecord, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("file contains no rows")
		}
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := sanitizeHeaders(headerRecord)
	if onHeaders != nil {
		onHeaders(headers)
	}

	total := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Best effort: a malformed record never aborts the whole parse.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return total, fmt.Errorf("read csv row: %w", err)
		}
		if rowIsEmpty(record) || isCaptionRow(record, schema) {
			continue
		}

		total++
		if err := emit(total, rowFromRecord(headers, record)); err != nil {
			return total, err
		}
		if onParsed != nil && total%parseProgressBatch == 0 {
			onParsed(total)
		}
	}

	if onParsed != nil {
		onParsed(total)
	}
	return total, nil
}

func readWorkbook(payload []byte, schema TargetSchema, onHeaders func([]string), onParsed func(int), emit rowFunc) (int, error) {
	book, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	rows, err := selectSheet(book)
	if err != nil {
		return 0, err
	}

	headerIdx := findMarkerRow(rows, schema)
	headers := sanitizeHeaders(rows[headerIdx])
	if onHeaders != nil {
		onHeaders(headers)
	}

	total := 0
	for _, record := range rows[headerIdx+1:] {
		if rowIsEmpty(record) || isCaptionRow(record, schema) {
			continue
		}
		total++
		if err := emit(total, rowFromRecord(headers, record)); err != nil {
			return total, err
		}
		if onParsed != nil && total%parseProgressBatch == 0 {
			onParsed(total)
		}
	}

	if onParsed != nil {
		onParsed(total)
	}
	return total, nil
}

// selectSheet picks the first sheet whose used range spans more than one row,
// skipping header-only sheets.
func selectSheet(book *excelize.File) ([][]string, error) {
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	for _, name := range sheets {
		rows, err := book.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if len(rows) > 1 {
			return rows, nil
		}
	}
	return nil, errors.New("workbook has no sheet with data rows")
}

// findMarkerRow scans the leading rows for a structural marker row containing
// known header vocabulary; rows after it are treated as data. Falls back to
// the first row when no marker is found.
func findMarkerRow(rows [][]string, schema TargetSchema) int {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for idx := 0; idx < limit; idx++ {
		matches := 0
		for _, cell := range rows[idx] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if matchesVocabulary(cell, schema) {
				matches++
			}
		}
		if matches >= 2 {
			return idx
		}
	}
	return 0
}

// isCaptionRow recognizes a data row that merely repeats the schema's column
// captions, a common artifact of concatenated exports.
func isCaptionRow(record []string, schema TargetSchema) bool {
	nonEmpty := 0
	for _, cell := range record {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		nonEmpty++
		if !matchesVocabulary(cell, schema) {
			return false
		}
	}
	return nonEmpty > 0
}

func matchesVocabulary(cell string, schema TargetSchema) bool {
	normalized := normalizeHeader(cell)
	for _, field := range schema.Fields {
		if _, ok := matchAlias(field, normalized); ok {
			return true
		}
	}
	return false
}

// sniffDelimiter checks whether the first line holds a semicolon but no
// comma, which marks a semicolon-delimited export; otherwise comma.
func sniffDelimiter(payload []byte) rune {
	firstLine := payload
	if idx := bytes.IndexByte(payload, '\n'); idx >= 0 {
		firstLine = payload[:idx]
	}
	if bytes.ContainsRune(firstLine, ';') && !bytes.ContainsRune(firstLine, ',') {
		return ';'
	}
	return ','
}

// sanitizeHeaders trims header cells and assigns column_N placeholders to
// blank ones so every column stays addressable.
func sanitizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for idx, cell := range record {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = anonymousHeader(idx)
		}
		if count := seen[name]; count > 0 {
			seen[name] = count + 1
			name = fmt.Sprintf("%s_%d", name, count+1)
		} else {
			seen[name] = 1
		}
		headers[idx] = name
	}
	return headers
}

// rowFromRecord builds a raw row, padding short records with empty fields.
func rowFromRecord(headers []string, record []string) domain.RawRow {
	row := make(domain.RawRow, len(headers))
	for idx, header := range headers {
		if idx < len(record) {
			row[header] = record[idx]
		} else {
			row[header] = ""
		}
	}
	return row
}

func rowIsEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
