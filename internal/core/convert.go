package core

// convert.go provides the cell conversions applied to CSV columns.
//
// These functions handle the messy reality of user-provided CSV data:
//   - Several date layouts (ISO, US, EU, with or without a time part)
//   - Currency symbols and thousand separators in amounts
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Conversions return an error describing the problem; callers attach the
// column name when turning it into a row error.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal precision accepted for amounts and balances (NUMERIC(15,2)).
const (
	MaxDecimalPlaces = 2
	MaxIntegerDigits = 13
)

// dateLayouts are tried in order; the first successful parse wins.
// Month-first is attempted before day-first, so 02/03/2024 is February 3.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"1/2/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
}

var (
	errInvalidDecimal  = errors.New("invalid number format")
	errInvalidDate     = errors.New("invalid date format (use YYYY-MM-DD, MM/DD/YYYY or DD/MM/YYYY)")
	errInvalidBool     = errors.New("must be true/false, yes/no or 1/0")
	errInvalidCurrency = errors.New("must be a 3-letter currency code")
)

// ParseDecimal converts an amount to a decimal.
// Dollar signs and thousands separators are removed and accounting
// format "(12.50)" is read as negative. Values with more than two
// significant fractional digits or more than thirteen integer digits are rejected.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errInvalidDecimal
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errInvalidDecimal
	}
	if negative {
		d = d.Neg()
	}

	if !d.Equal(d.Truncate(MaxDecimalPlaces)) {
		return decimal.Zero, fmt.Errorf("must have at most %d decimal places", MaxDecimalPlaces)
	}
	if len(d.Abs().Truncate(0).String()) > MaxIntegerDigits {
		return decimal.Zero, fmt.Errorf("must have at most %d digits before the decimal point", MaxIntegerDigits)
	}

	return d.Truncate(MaxDecimalPlaces), nil
}

// ParseDate converts a date in one of the accepted layouts.
// The time part of datetime values is discarded.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errInvalidDate
}

// ParseBool accepts true/false, yes/no and 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, errInvalidBool
	}
}

// ParseCurrency upper-cases a currency code and checks it is three ASCII letters.
func ParseCurrency(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", errInvalidCurrency
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errInvalidCurrency
		}
	}
	return s, nil
}

// ParseChoice lower-cases s and matches it against the allowed values.
func ParseChoice(s string, choices []string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range choices {
		if s == c {
			return s, true
		}
	}
	return "", false
}

// SplitTags splits a tag list on commas or semicolons, trimming each tag
// and dropping empties.
func SplitTags(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// CleanCell trims whitespace and unwraps the Excel formula form ="value".
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
