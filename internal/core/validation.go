package core

// validation.go checks files and rows against a kind's field specifications.
//
// Validation happens at two levels:
//  1. Header validation: required columns present, no unknown or duplicate
//     columns. A bad header rejects the whole file.
//  2. Row validation: required cells non-empty, then each cell converted in
//     column order. The first failure becomes the row's error.

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const utf8BOM = "\ufeff"

// ValidateHeader normalizes a header row and checks it against def.
// Names are compared case-sensitively after trimming whitespace and a BOM.
func ValidateHeader(header []string, def KindDefinition) ([]string, *WholesaleError) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}

	if len(cols) == 0 || (len(cols) == 1 && cols[0] == "") {
		return nil, &WholesaleError{Reason: ReasonHeaderMismatch, Message: "CSV file has no header row"}
	}

	seen := make(map[string]bool, len(cols))
	var unknown, duplicate []string
	for _, c := range cols {
		if seen[c] {
			duplicate = append(duplicate, c)
			continue
		}
		seen[c] = true
		if _, ok := def.Spec(c); !ok {
			unknown = append(unknown, c)
		}
	}

	var missing []string
	for _, name := range def.RequiredColumns() {
		if !seen[name] {
			missing = append(missing, name)
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required columns: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		problems = append(problems, "unknown columns: "+strings.Join(quoteAll(unknown), ", "))
	}
	if len(duplicate) > 0 {
		problems = append(problems, "duplicate columns: "+strings.Join(quoteAll(duplicate), ", "))
	}
	if len(problems) > 0 {
		return nil, &WholesaleError{
			Reason:  ReasonHeaderMismatch,
			Message: "Invalid CSV header: " + strings.Join(problems, "; "),
		}
	}

	return cols, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// Value is one converted cell. Only the field matching the column's
// FieldType is populated.
type Value struct {
	Text    string
	Decimal decimal.Decimal
	Date    time.Time
	Bool    bool
	Tags    []string
}

// Values holds the converted cells of a row, keyed by column name.
// Columns whose cell was empty and carried no default are absent.
type Values map[string]Value

// Has reports whether the column produced a value.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

func (v Values) Text(name string) string             { return v[name].Text }
func (v Values) Decimal(name string) decimal.Decimal { return v[name].Decimal }
func (v Values) Date(name string) time.Time          { return v[name].Date }
func (v Values) Bool(name string) bool               { return v[name].Bool }
func (v Values) Tags(name string) []string           { return v[name].Tags }

// CheckRequired returns a missing_field error naming the first empty required
// field and listing every one of them, or nil.
func CheckRequired(def KindDefinition, data map[string]string) *FieldError {
	var missing []string
	for _, spec := range def.FieldSpecs {
		if spec.Required && CleanCell(data[spec.Name]) == "" {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &FieldError{
		Type:    ErrorTypeMissingField,
		Field:   missing[0],
		Message: "Missing required fields: " + strings.Join(missing, ", "),
	}
}

// ConvertRow converts the cells of a row in column order and applies defaults
// for optional columns that are empty or absent. The first failure is returned.
func ConvertRow(def KindDefinition, columns []string, data map[string]string) (Values, *FieldError) {
	values := make(Values, len(def.FieldSpecs))
	done := make(map[string]bool, len(columns))

	for _, col := range columns {
		spec, ok := def.Spec(col)
		if !ok || done[col] {
			continue
		}
		done[col] = true
		if ferr := convertInto(values, spec, CleanCell(data[col])); ferr != nil {
			return nil, ferr
		}
	}

	for _, spec := range def.FieldSpecs {
		if done[spec.Name] || spec.Default == "" {
			continue
		}
		if ferr := convertInto(values, spec, ""); ferr != nil {
			return nil, ferr
		}
	}

	return values, nil
}

func convertInto(values Values, spec FieldSpec, raw string) *FieldError {
	if raw == "" {
		raw = spec.Default
	}
	if raw == "" {
		return nil
	}

	formatErr := func(err error) *FieldError {
		return &FieldError{
			Type:    ErrorTypeFieldFormat,
			Field:   spec.Name,
			Message: fmt.Sprintf("Invalid %s %q: %v", spec.Name, raw, err),
		}
	}

	var v Value
	switch spec.Type {
	case FieldText:
		v.Text = raw
	case FieldChoice:
		choice, ok := ParseChoice(raw, spec.Choices)
		if !ok {
			return &FieldError{
				Type:    ErrorTypeInvalidChoice,
				Field:   spec.Name,
				Message: fmt.Sprintf("Invalid %s %q: must be one of %s", spec.Name, raw, strings.Join(spec.Choices, ", ")),
			}
		}
		v.Text = choice
	case FieldDecimal:
		d, err := ParseDecimal(raw)
		if err != nil {
			return formatErr(err)
		}
		v.Decimal = d
	case FieldDate:
		t, err := ParseDate(raw)
		if err != nil {
			return formatErr(err)
		}
		v.Date = t
	case FieldBool:
		b, err := ParseBool(raw)
		if err != nil {
			return formatErr(err)
		}
		v.Bool = b
	case FieldCurrency:
		c, err := ParseCurrency(raw)
		if err != nil {
			return formatErr(err)
		}
		v.Text = c
	case FieldTags:
		v.Tags = SplitTags(raw)
	}

	values[spec.Name] = v
	return nil
}
