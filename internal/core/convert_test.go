package core

import (
	"reflect"
	"testing"
	"time"
)

// =============================================================================
// ParseDecimal
// =============================================================================

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1500.00", "1500", false},
		{"1500.5", "1500.5", false},
		{"-250.00", "-250", false},
		{"$1,234.56", "1234.56", false},
		{"  42 ", "42", false},
		{"(12.50)", "-12.5", false},
		{"1.230", "1.23", false},
		{"0", "0", false},
		{"9999999999999.99", "9999999999999.99", false},

		{"", "", true},
		{"abc", "", true},
		{"12.345", "", true},
		{"1.2.3", "", true},
		{"10000000000000", "", true},
		{"$", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDecimal(%q) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimal(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// =============================================================================
// ParseDate
// =============================================================================

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2023-12-01", "2023-12-01", false},
		{"12/01/2023", "2023-12-01", false},
		{"01/12/2023", "2023-01-12", false},
		{"25/12/2023", "2023-12-25", false},
		{"1/5/2024", "2024-01-05", false},
		{"13/1/2024", "2024-01-13", false},
		{"2024-01-15 10:30:00", "2024-01-15", false},
		{"01/15/2024 23:59:59", "2024-01-15", false},
		{" 2024-02-29 ", "2024-02-29", false},

		{"2023-13-40", "", true},
		{"2023-02-30", "", true},
		{"yesterday", "", true},
		{"", "", true},
		{"15.01.2024", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if s := got.Format("2006-01-02"); s != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, s, tt.want)
			}
			if got.Hour() != 0 || got.Location() != time.UTC {
				t.Errorf("ParseDate(%q) = %v, want midnight UTC", tt.input, got)
			}
		})
	}
}

// =============================================================================
// ParseBool, ParseCurrency, ParseChoice
// =============================================================================

func TestParseBool(t *testing.T) {
	valid := map[string]bool{
		"true": true, "TRUE": true, "yes": true, "Yes": true, "1": true,
		"false": false, "False": false, "no": false, "NO": false, "0": false,
	}
	for in, want := range valid {
		got, err := ParseBool(in)
		if err != nil || got != want {
			t.Errorf("ParseBool(%q) = %v, %v; want %v, nil", in, got, err, want)
		}
	}

	for _, in := range []string{"", "maybe", "y", "t", "2"} {
		if _, err := ParseBool(in); err == nil {
			t.Errorf("ParseBool(%q) expected error", in)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"USD", "USD", false},
		{"eur", "EUR", false},
		{" gbp ", "GBP", false},
		{"US", "", true},
		{"EURO", "", true},
		{"U5D", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCurrency(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCurrency(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseChoice(t *testing.T) {
	choices := []string{"checking", "savings"}

	if got, ok := ParseChoice(" Checking ", choices); !ok || got != "checking" {
		t.Errorf("ParseChoice(Checking) = %q, %v", got, ok)
	}
	if _, ok := ParseChoice("checkings", choices); ok {
		t.Error("ParseChoice(checkings) should not match")
	}
}

// =============================================================================
// SplitTags, CleanCell
// =============================================================================

func TestSplitTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"client,payment", []string{"client", "payment"}},
		{"a; b ,c", []string{"a", "b", "c"}},
		{" , ;;x", []string{"x"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		if got := SplitTags(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitTags(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{`=" padded "`, "padded"},
		{`"quoted"`, `"quoted"`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
