package importer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rpattn/retailops/internal/domain"
)

var headerSeparators = regexp.MustCompile(`[\s_\-]+`)

// normalizeHeader lowercases a header and collapses runs of whitespace,
// underscores and hyphens into single spaces so "Item_Code" and "item code"
// compare equal.
func normalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return headerSeparators.ReplaceAllString(header, " ")
}

// columnMapper rewrites arbitrary source headers to canonical field names
// using a schema's alias table. Built once per job from the header row.
type columnMapper struct {
	schema TargetSchema
	// byHeader maps the original header string to its canonical field.
	byHeader map[string]string
	matched  int
}

func newColumnMapper(schema TargetSchema, headers []string) *columnMapper {
	m := &columnMapper{
		schema:   schema,
		byHeader: make(map[string]string, len(headers)),
	}

	for _, header := range headers {
		normalized := normalizeHeader(header)
		if normalized == "" {
			continue
		}
		for _, field := range schema.Fields {
			if canonical, ok := matchAlias(field, normalized); ok {
				// First alias that matches wins; later headers cannot steal
				// a field already claimed.
				if !m.fieldClaimed(canonical) {
					m.byHeader[header] = canonical
					m.matched++
				}
				break
			}
		}
	}

	return m
}

func matchAlias(field FieldSpec, normalized string) (string, bool) {
	if normalizeHeader(field.Name) == normalized {
		return field.Name, true
	}
	for _, alias := range field.Aliases {
		if normalizeHeader(alias) == normalized {
			return field.Name, true
		}
	}
	return "", false
}

func (m *columnMapper) fieldClaimed(canonical string) bool {
	for _, mapped := range m.byHeader {
		if mapped == canonical {
			return true
		}
	}
	return false
}

// Map rewrites one raw row with canonical keys. Headers matching no alias are
// dropped; fields not present in the source are simply absent from the output.
//
// Recovery heuristic: when no header matched any alias (typical of a
// misdetected header row that left only column_N placeholders) and the first
// column's value parses as an integer, a positional mapping is applied
// instead using the schema's PositionalFields.
func (m *columnMapper) Map(row domain.RawRow) domain.RawRow {
	if m.matched == 0 && m.positionalApplies(row) {
		return m.mapPositional(row)
	}

	out := make(domain.RawRow, len(m.byHeader))
	for header, value := range row {
		canonical, ok := m.byHeader[header]
		if !ok {
			continue
		}
		out[canonical] = value
	}
	return out
}

func (m *columnMapper) positionalApplies(row domain.RawRow) bool {
	if len(m.schema.PositionalFields) == 0 {
		return false
	}
	first, ok := row[anonymousHeader(0)]
	if !ok {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(first))
	return err == nil
}

func (m *columnMapper) mapPositional(row domain.RawRow) domain.RawRow {
	out := make(domain.RawRow, len(m.schema.PositionalFields))
	for idx, field := range m.schema.PositionalFields {
		value, ok := row[anonymousHeader(idx)]
		if !ok {
			continue
		}
		out[field] = value
	}
	return out
}

// anonymousHeader names the placeholder assigned to a blank or missing
// header cell at the given zero-based column index.
func anonymousHeader(idx int) string {
	return "column_" + strconv.Itoa(idx+1)
}
