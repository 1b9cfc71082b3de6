package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/retailops/internal/domain"
)

// Validation error messages surfaced in the ledger. Kept stable because the
// error report artifact is consumed downstream.
const (
	msgMissingRequired = "missing required field"
	msgInvalidDate     = "InvalidDate"
	msgInvalidNumber   = "InvalidNumber"
)

// dateLayouts are tried in order. Two-digit years pivot at 50.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
}

// validateRow coerces and validates one canonically-keyed row. Valid rows
// become canonical records; rejected rows yield ledger entries. Row failures
// are never fatal to the job.
func validateRow(schema TargetSchema, rowNum int, row domain.RawRow) (domain.CanonicalRecord, []domain.RowError) {
	var rowErrors []domain.RowError
	record := make(domain.CanonicalRecord, len(schema.Fields))

	for _, field := range schema.Fields {
		raw, present := row[field.Name]
		raw = strings.TrimSpace(raw)

		if !present || raw == "" {
			if field.Required {
				rowErrors = append(rowErrors, domain.RowError{
					Row:      rowNum,
					Field:    field.Name,
					RawValue: raw,
					Message:  msgMissingRequired,
				})
			}
			continue
		}

		coerced, err := coerceField(field, raw)
		if err != nil {
			if field.Kind == KindEmail && !field.Required {
				// Bad optional emails are dropped, not fatal to the row.
				continue
			}
			rowErrors = append(rowErrors, domain.RowError{
				Row:      rowNum,
				Field:    field.Name,
				RawValue: raw,
				Message:  err.Error(),
			})
			continue
		}

		if field.Required && isNumericZero(field.Kind, coerced) {
			rowErrors = append(rowErrors, domain.RowError{
				Row:      rowNum,
				Field:    field.Name,
				RawValue: raw,
				Message:  msgMissingRequired,
			})
			continue
		}

		record[field.Name] = coerced
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors
	}
	return record, nil
}

func coerceField(field FieldSpec, raw string) (string, error) {
	switch field.Kind {
	case KindText:
		return raw, nil
	case KindInteger:
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%s: %q is not an integer", msgInvalidNumber, raw)
		}
		return strconv.FormatInt(value, 10), nil
	case KindDecimal:
		return parseDecimal(raw)
	case KindDate:
		return parseDate(raw)
	case KindEmail:
		return parseEmail(raw)
	default:
		return raw, nil
	}
}

func isNumericZero(kind FieldKind, canonical string) bool {
	switch kind {
	case KindInteger, KindDecimal:
		value, err := strconv.ParseFloat(canonical, 64)
		return err == nil && value == 0
	default:
		return false
	}
}

// parseDate tries the supported layouts in order and validates that the
// constructed calendar date round-trips, rejecting dates like 31/02/2023
// that the time package would otherwise normalize. Output is ISO YYYY-MM-DD.
func parseDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		if parsed.Format(layout) != trimmed {
			continue
		}
		if layout == "02/01/06" {
			parsed = pivotTwoDigitYear(parsed)
		}
		return parsed.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("%s: %q", msgInvalidDate, raw)
}

// pivotTwoDigitYear pivots two-digit years at 50: values up to and including
// 50 land in the 2000s, the rest in the 1900s.
func pivotTwoDigitYear(parsed time.Time) time.Time {
	year := parsed.Year()
	// time.Parse resolves "06" years into 1969-2068; re-pivot at 50.
	twoDigit := year % 100
	var full int
	if twoDigit <= 50 {
		full = 2000 + twoDigit
	} else {
		full = 1900 + twoDigit
	}
	if full == year {
		return parsed
	}
	return time.Date(full, parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDecimal strips currency symbols and whitespace, then disambiguates
// locale separators: when both comma and period appear, the one appearing
// later is the decimal separator; a lone comma is decimal only when exactly
// three characters from the end. Output is a fixed two-decimal string.
func parseDecimal(raw string) (string, error) {
	cleaned := stripCurrency(raw)
	if cleaned == "" {
		return "", fmt.Errorf("%s: %q", msgInvalidNumber, raw)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// Comma is decimal, period is thousands.
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if lastComma == len(cleaned)-3 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		// Dot-only values like "Rp 50.000" use the dot as a thousands
		// separator; a dot followed by one or two digits stays decimal.
		if strings.Count(cleaned, ".") > 1 || lastDot == len(cleaned)-4 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", fmt.Errorf("%s: %q", msgInvalidNumber, raw)
	}
	return strconv.FormatFloat(value, 'f', 2, 64), nil
}

func stripCurrency(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "@") || !strings.Contains(trimmed, ".") {
		return "", fmt.Errorf("invalid email %q", raw)
	}
	return strings.ToLower(trimmed), nil
}
