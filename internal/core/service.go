package core

import (
	"context"
	"time"
)

// DefaultUploadTimeout is the maximum duration for one import or retry.
const DefaultUploadTimeout = 10 * time.Minute

// Service is the entry point used by transports. It admits imports through
// an UploadLimiter and bounds each one with a timeout, delegating the work
// to an Importer.
type Service struct {
	importer *Importer
	limiter  *UploadLimiter
	timeout  time.Duration
}

// NewService wraps imp. A nil limiter admits up to DefaultMaxConcurrentUploads imports.
func NewService(imp *Importer, limiter *UploadLimiter, timeout time.Duration) *Service {
	if limiter == nil {
		limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &Service{importer: imp, limiter: limiter, timeout: timeout}
}

// Importer returns the underlying importer.
func (s *Service) Importer() *Importer {
	return s.importer
}

// Import runs one upload once a slot is free.
// Returns ErrTooManyUploads when no slot frees up in time.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.importer.Import(ctx, req)
}

// Retry re-drives a job's failed rows once a slot is free.
func (s *Service) Retry(ctx context.Context, uploadID string) (*RetryOutcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.importer.Retry(ctx, uploadID)
}

// Errors returns the error report for a job.
func (s *Service) Errors(ctx context.Context, uploadID string) (*ErrorReport, error) {
	return s.importer.Errors(ctx, uploadID)
}

// Get returns one Upload Job.
func (s *Service) Get(ctx context.Context, uploadID string) (*UploadJob, error) {
	return s.importer.Get(ctx, uploadID)
}

// List returns one page of upload history.
func (s *Service) List(ctx context.Context, filter ListFilter) (*JobPage, error) {
	return s.importer.List(ctx, filter)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running imports finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
