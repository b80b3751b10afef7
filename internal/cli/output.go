package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
)

// render writes v in format, calling text for the human-readable form.
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch strings.ToLower(format) {
	case formatText, "":
		text(w)
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printJob(w io.Writer, job core.UploadJob) {
	fmt.Fprintf(w, "Upload %s [%s] %s\n", job.ID, job.Kind, job.Status)
	fmt.Fprintf(w, "  File:    %s (%d bytes)\n", job.FileName, job.FileSize)
	fmt.Fprintf(w, "  Company: %s\n", job.CompanyID)
	fmt.Fprintf(w, "  Rows:    %d total, %d successful, %d failed (%.2f%%)\n",
		job.TotalRows, job.SuccessfulRows, job.FailedRows, job.SuccessRate())
	if job.ErrorSummary != "" {
		fmt.Fprintf(w, "  Error:   %s\n", job.ErrorSummary)
	}
}

func printRowErrors(w io.Writer, errs []core.RowError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "\nRow errors (%d):\n\n", len(errs))
	for _, re := range errs {
		field := re.FieldName
		if field == "" {
			field = "-"
		}
		fmt.Fprintf(w, "- row %d %s [%s]: %s\n", re.RowNumber, field, re.ErrorType, re.Message)
	}
}
