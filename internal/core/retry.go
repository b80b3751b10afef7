package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// RetryOutcome reports what a retry changed.
type RetryOutcome struct {
	Job          UploadJob `json:"job" yaml:"job"`
	Retried      int       `json:"retried" yaml:"retried"`
	Resolved     int       `json:"resolved" yaml:"resolved"`
	StillFailing int       `json:"still_failing" yaml:"still_failing"`
}

// Retry re-runs the stored Row Errors of a job using the row data captured
// at import time. Rows that now succeed are removed from the error list and
// counted as successful; rows that fail again have their error replaced.
//
// A job left pending by an import that never finished (the process stopped
// mid-file) is recovered: its failed rows are re-run and it is closed out
// with the status its processed rows imply.
//
// Returns ErrUploadNotFound for an unknown job and ErrUploadInProgress while
// this process is still importing or retrying the job.
func (imp *Importer) Retry(ctx context.Context, uploadID string) (*RetryOutcome, error) {
	if !imp.claim(uploadID) {
		return nil, ErrUploadInProgress
	}
	defer imp.release(uploadID)

	job, err := imp.jobs.GetJob(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	abandoned := !job.Status.Terminal()

	rowErrs, err := imp.jobs.ListRowErrors(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	if len(rowErrs) == 0 && !abandoned {
		return &RetryOutcome{Job: *job}, nil
	}

	def, ok := Lookup(job.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}

	log := logging.WithFields(ctx, "upload_id", job.ID, "kind", job.Kind, "company_id", job.CompanyID)
	log.Info("retry started", "rows", len(rowErrs))

	out := &RetryOutcome{}
	var runErr error

	for _, prev := range rowErrs {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		columns := retryColumns(def, job.Columns, prev.RowData)
		_, rowErr := imp.processRow(ctx, log, def, job.CompanyID, job.ID, prev.RowNumber, columns, prev.RowData)
		if interrupted(ctx, rowErr) {
			runErr = ctx.Err()
			break
		}
		out.Retried++

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		err := imp.settleRow(rctx, job.ID, prev.RowNumber, rowErr)
		cancel()
		if err != nil {
			runErr = err
			break
		}
		if rowErr == nil {
			out.Resolved++
		} else {
			out.StillFailing++
		}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	job, err = imp.jobs.GetJob(fctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("reload upload job: %w", err)
	}
	switch {
	case !abandoned:
		job.Status = computeStatus(job.SuccessfulRows, job.FailedRows)
	case runErr == nil:
		imp.closeAbandoned(job)
		log.Info("recovered abandoned upload", "processed", job.TotalRows)
	}
	if err := imp.jobs.FinishJob(fctx, job); err != nil {
		return nil, fmt.Errorf("finish upload job: %w", err)
	}
	if job.Status.Terminal() {
		if err := imp.events.PublishUploadFinished(fctx, *job); err != nil {
			log.Warn("failed to publish upload finished event", "error", err)
		}
	}

	out.Job = *job
	log.Info("retry finished",
		"status", job.Status,
		"retried", out.Retried,
		"resolved", out.Resolved,
		"still_failing", out.StillFailing,
	)

	if runErr != nil {
		return out, fmt.Errorf("retry interrupted: %w", runErr)
	}
	return out, nil
}

// closeAbandoned finalizes a job whose import stopped part way. Rows that
// were never processed are dropped from the total.
func (imp *Importer) closeAbandoned(job *UploadJob) {
	processed := job.SuccessfulRows + job.FailedRows
	job.Status = computeStatus(job.SuccessfulRows, job.FailedRows)
	switch {
	case processed == 0:
		job.Status = StatusFailed
		job.ErrorSummary = "Import interrupted before any row was processed"
	case processed < job.TotalRows:
		job.ErrorSummary = stoppedSummary(processed, job.TotalRows)
	}
	job.TotalRows = processed
	completed := imp.now().UTC()
	job.CompletedAt = &completed
}

// settleRow resolves a row that now succeeds or replaces the error of one
// that still fails.
func (imp *Importer) settleRow(ctx context.Context, jobID string, rowNumber int, rowErr *RowError) error {
	if rowErr == nil {
		if err := imp.jobs.ResolveRowError(ctx, jobID, rowNumber); err != nil && !errors.Is(err, ErrRowErrorNotFound) {
			return fmt.Errorf("resolve row %d: %w", rowNumber, err)
		}
		return nil
	}
	if err := imp.jobs.ReplaceRowError(ctx, *rowErr); err != nil {
		return fmt.Errorf("replace row %d error: %w", rowNumber, err)
	}
	return nil
}

// retryColumns returns the columns of data in the order of the uploaded
// header, so fields are checked in the same order as the original import.
// Jobs without a stored header fall back to template order.
func retryColumns(def KindDefinition, header []string, data map[string]string) []string {
	if len(header) == 0 {
		header = def.Columns()
	}
	cols := make([]string, 0, len(data))
	for _, name := range header {
		if _, ok := data[name]; ok {
			cols = append(cols, name)
		}
	}
	return cols
}
