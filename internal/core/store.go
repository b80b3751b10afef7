package core

import (
	"context"
	"time"
)

// ReferenceResolver looks up or creates the records a row refers to.
type ReferenceResolver interface {
	// FindAccountByName returns the id of the company's account with the
	// exact name, or ErrNotFound.
	FindAccountByName(ctx context.Context, companyID, name string) (string, error)

	// FindOrCreateCategory returns the id of the named category, creating it
	// with the given type when absent. Concurrent callers converge on one record.
	FindOrCreateCategory(ctx context.Context, companyID, name string, categoryType CategoryType) (string, error)
}

// RecordStore persists imported records. Each Create is atomic on its own.
type RecordStore interface {
	ReferenceResolver

	CompanyExists(ctx context.Context, companyID string) (bool, error)

	// Create stores rec for the company and returns its id.
	// Uniqueness violations are reported as ErrDuplicateRecord.
	Create(ctx context.Context, companyID string, rec Record) (string, error)
}

// JobStore persists Upload Jobs and their Row Errors.
type JobStore interface {
	CreateJob(ctx context.Context, job *UploadJob) error

	// StartJob records the number of data rows, the header in file order,
	// and when processing began.
	StartJob(ctx context.Context, jobID string, totalRows int, columns []string, startedAt time.Time) error

	// RecordOutcome counts one processed row: a success when rowErr is nil,
	// otherwise a failure stored with its Row Error.
	RecordOutcome(ctx context.Context, jobID string, rowErr *RowError) error

	// FinishJob writes the job's status, counters, summary and timestamps.
	FinishJob(ctx context.Context, job *UploadJob) error

	// GetJob returns ErrUploadNotFound for an unknown id.
	GetJob(ctx context.Context, jobID string) (*UploadJob, error)

	// ListJobs returns one page of jobs, newest first, and the total match count.
	ListJobs(ctx context.Context, filter ListFilter) ([]UploadJob, int, error)

	// ListRowErrors returns the job's Row Errors ordered by row number.
	ListRowErrors(ctx context.Context, jobID string) ([]RowError, error)

	// ResolveRowError deletes a Row Error and moves one count from failed
	// to successful. Returns ErrRowErrorNotFound when absent.
	ResolveRowError(ctx context.Context, jobID string, rowNumber int) error

	// ReplaceRowError overwrites the stored error for the same row.
	ReplaceRowError(ctx context.Context, rowErr RowError) error
}

// Publisher announces finished jobs to other systems.
type Publisher interface {
	PublishUploadFinished(ctx context.Context, job UploadJob) error
}

type nopPublisher struct{}

func (nopPublisher) PublishUploadFinished(context.Context, UploadJob) error { return nil }

// History paging bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListFilter selects jobs for the upload history. Zero fields match everything.
type ListFilter struct {
	CompanyID string
	Kind      Kind
	Status    Status
	Page      int
	PageSize  int
}

// Normalize clamps paging to valid bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset returns the number of jobs before the requested page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// JobPage is one page of upload history.
type JobPage struct {
	Results     []UploadJob `json:"results" yaml:"results"`
	TotalCount  int         `json:"total_count" yaml:"total_count"`
	Page        int         `json:"page" yaml:"page"`
	PageSize    int         `json:"page_size" yaml:"page_size"`
	HasNext     bool        `json:"has_next" yaml:"has_next"`
	HasPrevious bool        `json:"has_previous" yaml:"has_previous"`
}
