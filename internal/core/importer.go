package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// Default limits that trigger wholesale rejection.
const (
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	DefaultMaxRows           = 10000
)

// finalizeTimeout bounds the writes that close out a job after its context ended.
const finalizeTimeout = 10 * time.Second

// Limits bound the files an Importer accepts.
type Limits struct {
	MaxFileSize int64
	MaxRows     int
}

// Option configures an Importer.
type Option func(*Importer)

// WithPublisher sets the publisher notified when a job finishes.
func WithPublisher(p Publisher) Option {
	return func(imp *Importer) {
		if p != nil {
			imp.events = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(imp *Importer) { imp.now = now }
}

// Importer turns CSV files into imported records, Upload Jobs and Row Errors.
// It is safe for concurrent use; rows within one file are processed sequentially.
type Importer struct {
	records RecordStore
	jobs    JobStore
	events  Publisher
	limits  Limits
	now     func() time.Time

	mu     sync.Mutex
	active map[string]struct{} // jobs being imported or retried by this process
}

// NewImporter creates an importer. Zero limits fall back to the defaults.
func NewImporter(records RecordStore, jobs JobStore, limits Limits, opts ...Option) *Importer {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = DefaultMaxFileSize
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultMaxRows
	}

	imp := &Importer{
		records:  records,
		jobs:     jobs,
		events:   nopPublisher{},
		limits:   limits,
		now:      time.Now,
		active:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Limits returns the importer's file limits.
func (imp *Importer) Limits() Limits {
	return imp.limits
}

// ImportRequest is one uploaded file.
type ImportRequest struct {
	CompanyID string
	Kind      Kind
	FileName  string
	Size      int64 // Declared size in bytes; zero when unknown
	Body      io.Reader
}

// ImportOutcome is the result of an import.
// Wholesale is set when the file was rejected before any row was processed.
type ImportOutcome struct {
	Job       UploadJob
	Wholesale *WholesaleError
	Summary   *Summary
}

// Message is a one-line human description of the outcome.
func (o *ImportOutcome) Message() string {
	if o.Wholesale != nil {
		return o.Wholesale.Message
	}
	return fmt.Sprintf("Upload completed. %d rows processed successfully, %d rows failed.",
		o.Job.SuccessfulRows, o.Job.FailedRows)
}

// Import creates an Upload Job for req and processes every row of the file.
//
// Wholesale rejections are reported through the outcome, not the error.
// If ctx ends mid-file the job is finalized with the rows processed so far
// and both the outcome and the context error are returned.
func (imp *Importer) Import(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	def, ok := Lookup(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	exists, err := imp.records.CompanyExists(ctx, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("check company: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, req.CompanyID)
	}

	job := &UploadJob{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		CompanyID: req.CompanyID,
		FileName:  req.FileName,
		FileSize:  req.Size,
		Status:    StatusPending,
		ClientIP:  ClientIPFromContext(ctx),
		CreatedAt: imp.now().UTC(),
	}
	// Claimed before it is stored so a retry never sees it unowned.
	imp.claim(job.ID)
	defer imp.release(job.ID)
	if err := imp.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create upload job: %w", err)
	}

	log := logging.WithFields(ctx, "upload_id", job.ID, "kind", job.Kind, "company_id", job.CompanyID)
	log.Info("import started", "file", job.FileName, "size", job.FileSize)

	if req.Size > imp.limits.MaxFileSize {
		return imp.reject(ctx, log, job, ReasonFileTooLarge, imp.tooLargeMessage())
	}

	data, err := readBounded(req.Body, imp.limits.MaxFileSize)
	switch {
	case errors.Is(err, errFileTooLarge):
		return imp.reject(ctx, log, job, ReasonFileTooLarge, imp.tooLargeMessage())
	case err != nil:
		log.Warn("failed to read upload body", "error", err)
		return imp.reject(ctx, log, job, ReasonUnreadableFile, "Unable to read the uploaded file")
	}
	if job.FileSize == 0 {
		job.FileSize = int64(len(data))
	}

	records, err := parseCSV(data)
	if err != nil {
		return imp.reject(ctx, log, job, ReasonUnreadableFile, "Unable to parse CSV file: "+err.Error())
	}
	if len(records) == 0 {
		return imp.reject(ctx, log, job, ReasonHeaderMismatch, "CSV file has no header row")
	}

	columns, werr := ValidateHeader(records[0], def)
	if werr != nil {
		return imp.reject(ctx, log, job, werr.Reason, werr.Message)
	}

	rows := records[1:]
	if len(rows) > imp.limits.MaxRows {
		return imp.reject(ctx, log, job, ReasonTooManyRows,
			fmt.Sprintf("File has %d data rows; the maximum is %d", len(rows), imp.limits.MaxRows))
	}

	started := imp.now().UTC()
	job.StartedAt = &started
	job.TotalRows = len(rows)
	job.Columns = columns
	if err := imp.jobs.StartJob(ctx, job.ID, len(rows), columns, started); err != nil {
		job.Status, job.TotalRows = StatusFailed, 0
		job.ErrorSummary = "Import could not be started"
		if ferr := imp.finish(ctx, log, job); ferr != nil {
			log.Error("failed to close out upload job", "error", ferr)
		}
		return nil, fmt.Errorf("start upload job: %w", err)
	}

	summary := NewSummary(job.Kind)
	var runErr error

	for i, record := range rows {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		rowNum := i + 1
		rec, rowErr := imp.processRow(ctx, log, def, job.CompanyID, job.ID, rowNum, columns, rowData(columns, record))
		if interrupted(ctx, rowErr) {
			runErr = ctx.Err()
			break
		}

		// A stored record is counted even when ctx ended while it was written.
		if err := imp.recordOutcome(ctx, job.ID, rowErr); err != nil {
			runErr = fmt.Errorf("record row %d outcome: %w", rowNum, err)
			break
		}

		if rowErr != nil {
			job.FailedRows++
			continue
		}
		job.SuccessfulRows++
		summary.Add(rec)
	}

	job.TotalRows = job.SuccessfulRows + job.FailedRows
	job.Status = computeStatus(job.SuccessfulRows, job.FailedRows)
	switch {
	case runErr != nil && job.TotalRows == 0:
		job.Status = StatusFailed
		job.ErrorSummary = "Import interrupted before any row was processed"
	case runErr != nil && job.TotalRows < len(rows):
		job.ErrorSummary = stoppedSummary(job.TotalRows, len(rows))
	}
	if err := imp.finish(ctx, log, job); err != nil {
		return nil, err
	}

	outcome := &ImportOutcome{Job: *job, Summary: summary}
	if runErr != nil {
		log.Warn("import interrupted", "processed", job.TotalRows, "rows", len(rows), "error", runErr)
		return outcome, fmt.Errorf("import interrupted after %d of %d rows: %w", job.TotalRows, len(rows), runErr)
	}

	log.Info("import finished",
		"status", job.Status,
		"total", job.TotalRows,
		"successful", job.SuccessfulRows,
		"failed", job.FailedRows,
	)
	return outcome, nil
}

func (imp *Importer) tooLargeMessage() string {
	return fmt.Sprintf("File size exceeds the maximum allowed size of %d bytes", imp.limits.MaxFileSize)
}

// reject finalizes job as a wholesale failure.
func (imp *Importer) reject(ctx context.Context, log *slog.Logger, job *UploadJob, reason RejectReason, msg string) (*ImportOutcome, error) {
	job.Status = StatusFailed
	job.TotalRows, job.SuccessfulRows, job.FailedRows = 0, 0, 0
	job.ErrorSummary = msg

	if err := imp.finish(ctx, log, job); err != nil {
		return nil, err
	}

	log.Info("upload rejected", "reason", reason, "message", msg)
	return &ImportOutcome{
		Job:       *job,
		Wholesale: &WholesaleError{Reason: reason, Message: msg},
	}, nil
}

// finish writes the terminal job state even when ctx has already ended,
// then publishes the finished event.
func (imp *Importer) finish(ctx context.Context, log *slog.Logger, job *UploadJob) error {
	completed := imp.now().UTC()
	job.CompletedAt = &completed

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := imp.jobs.FinishJob(fctx, job); err != nil {
		return fmt.Errorf("finish upload job: %w", err)
	}

	if err := imp.events.PublishUploadFinished(fctx, *job); err != nil {
		log.Warn("failed to publish upload finished event", "error", err)
	}
	return nil
}

// interrupted reports whether a row failed because ctx ended rather than
// because of its data. Such rows are left unprocessed.
func interrupted(ctx context.Context, rowErr *RowError) bool {
	return rowErr != nil && rowErr.ErrorType == ErrorTypePersistence && ctx.Err() != nil
}

// recordOutcome stores a processed row's outcome even when ctx has ended,
// so the job counters match the records written.
func (imp *Importer) recordOutcome(ctx context.Context, jobID string, rowErr *RowError) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return imp.jobs.RecordOutcome(rctx, jobID, rowErr)
}

func stoppedSummary(processed, total int) string {
	return fmt.Sprintf("Import stopped after %d of %d rows; the remaining rows were not processed", processed, total)
}

// claim marks a job as being worked on by this process.
// It returns false when the job is already claimed.
func (imp *Importer) claim(id string) bool {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	if _, busy := imp.active[id]; busy {
		return false
	}
	imp.active[id] = struct{}{}
	return true
}

func (imp *Importer) release(id string) {
	imp.mu.Lock()
	delete(imp.active, id)
	imp.mu.Unlock()
}

// processRow runs the per-row pipeline: required fields, conversions,
// cross-references, then persistence. It returns the stored record or
// the row's error.
func (imp *Importer) processRow(
	ctx context.Context,
	log *slog.Logger,
	def KindDefinition,
	companyID, jobID string,
	rowNum int,
	columns []string,
	data map[string]string,
) (Record, *RowError) {
	fail := func(ferr *FieldError) *RowError {
		return &RowError{
			UploadID:  jobID,
			RowNumber: rowNum,
			FieldName: ferr.Field,
			ErrorType: ferr.Type,
			Message:   ferr.Message,
			RowData:   data,
			CreatedAt: imp.now().UTC(),
		}
	}

	if ferr := CheckRequired(def, data); ferr != nil {
		return nil, fail(ferr)
	}

	values, ferr := ConvertRow(def, columns, data)
	if ferr != nil {
		return nil, fail(ferr)
	}

	rec, err := def.Build(ctx, RowContext{CompanyID: companyID, Values: values, Resolver: imp.records})
	if err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			return nil, fail(fe)
		}
		log.Error("reference lookup failed", "row", rowNum, "error", err)
		return nil, fail(&FieldError{Type: ErrorTypePersistence, Message: persistenceMessage(err)})
	}

	if _, err := imp.records.Create(ctx, companyID, rec); err != nil {
		log.Warn("failed to store row", "row", rowNum, "error", err)
		return nil, fail(&FieldError{Type: ErrorTypePersistence, Message: persistenceMessage(err)})
	}

	return rec, nil
}

// persistenceMessage describes a store failure for the Row Error.
// Duplicate errors carry the store's own description of the conflicting record.
func persistenceMessage(err error) string {
	if errors.Is(err, ErrDuplicateRecord) {
		return err.Error()
	}
	return FormatUserError(err)
}

// computeStatus derives the terminal status from the row counters.
func computeStatus(successful, failed int) Status {
	switch {
	case failed == 0 && successful > 0:
		return StatusCompleted
	case successful > 0:
		return StatusPartial
	case failed > 0:
		return StatusFailed
	default:
		return StatusCompleted
	}
}
