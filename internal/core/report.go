package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ErrorReport lists the Row Errors of one job in row order.
type ErrorReport struct {
	UploadID string     `json:"bulk_upload_id" yaml:"bulk_upload_id"`
	Kind     Kind       `json:"upload_type" yaml:"upload_type"`
	Status   Status     `json:"status" yaml:"status"`
	Columns  []string   `json:"-" yaml:"-"`
	Errors   []RowError `json:"errors" yaml:"errors"`
}

// Errors returns the error report for a job.
func (imp *Importer) Errors(ctx context.Context, uploadID string) (*ErrorReport, error) {
	job, err := imp.jobs.GetJob(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	rowErrs, err := imp.jobs.ListRowErrors(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	if rowErrs == nil {
		rowErrs = []RowError{}
	}

	report := &ErrorReport{UploadID: job.ID, Kind: job.Kind, Status: job.Status, Errors: rowErrs}
	if def, ok := Lookup(job.Kind); ok {
		report.Columns = def.Columns()
	}
	return report, nil
}

// WriteCSV writes the report as CSV: four error columns followed by the
// row's original cells, so the file can be corrected and uploaded again.
func (r *ErrorReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{"row_number", "field_name", "error_type", "error_message"}, r.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, re := range r.Errors {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(re.RowNumber), re.FieldName, string(re.ErrorType), re.Message)
		for _, col := range r.Columns {
			record = append(record, re.RowData[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Get returns one Upload Job.
func (imp *Importer) Get(ctx context.Context, uploadID string) (*UploadJob, error) {
	return imp.jobs.GetJob(ctx, uploadID)
}

// List returns one page of upload history, newest first.
func (imp *Importer) List(ctx context.Context, filter ListFilter) (*JobPage, error) {
	filter = filter.Normalize()

	jobs, total, err := imp.jobs.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list upload jobs: %w", err)
	}
	if jobs == nil {
		jobs = []UploadJob{}
	}

	return &JobPage{
		Results:     jobs,
		TotalCount:  total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
		HasNext:     filter.Offset()+len(jobs) < total,
		HasPrevious: filter.Page > 1,
	}, nil
}

// WriteTemplate writes a CSV template for kind: the header row followed by sample rows.
func WriteTemplate(w io.Writer, kind Kind) error {
	def, ok := Lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(def.Columns()); err != nil {
		return err
	}
	if err := cw.WriteAll(def.SampleRows); err != nil {
		return err
	}
	return cw.Error()
}
