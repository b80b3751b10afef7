package core

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestReadBounded(t *testing.T) {
	data, err := readBounded(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("readBounded at limit = %q, %v", data, err)
	}

	if _, err := readBounded(strings.NewReader("123456"), 5); !errors.Is(err, errFileTooLarge) {
		t.Errorf("readBounded over limit error = %v, want errFileTooLarge", err)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	valid := []byte("héllo")
	if got := sanitizeUTF8(valid); !bytes.Equal(got, valid) {
		t.Errorf("valid input changed: %q", got)
	}

	got := sanitizeUTF8([]byte{'a', 0xff, 'b'})
	if !utf8.Valid(got) {
		t.Errorf("output is not valid UTF-8: %q", got)
	}
	if string(got) != "a\uFFFDb" {
		t.Errorf("sanitizeUTF8 = %q, want %q", got, "a\uFFFDb")
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [][]string
		wantErr bool
	}{
		{
			name:  "simple",
			input: "a,b\n1,2\n",
			want:  [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:  "BOM stripped",
			input: "\ufeffa,b\n1,2\n",
			want:  [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:  "blank lines skipped and ragged rows kept",
			input: "a,b\n\n1\n1,2,3\n",
			want:  [][]string{{"a", "b"}, {"1"}, {"1", "2", "3"}},
		},
		{
			name:  "quoted fields with commas",
			input: "a,b\n\"x, y\",2\n",
			want:  [][]string{{"a", "b"}, {"x, y", "2"}},
		},
		{
			name:  "CRLF line endings",
			input: "a,b\r\n1,2\r\n",
			want:  [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:    "binary data",
			input:   "a,b\n\x00\x01\x02",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCSV([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCSV() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCSV() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCSV() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRowData(t *testing.T) {
	columns := []string{"a", "b", "c"}

	got := rowData(columns, []string{"1", "2"})
	want := map[string]string{"a": "1", "b": "2", "c": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("short row = %v, want %v", got, want)
	}

	got = rowData(columns, []string{"1", "2", "3", "4"})
	want = map[string]string{"a": "1", "b": "2", "c": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("long row = %v, want %v", got, want)
	}
}
