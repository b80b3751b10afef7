// Package memory implements the core record and job stores in process memory.
// It backs tests and CLI dry runs; all operations serialize on one mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// Store holds companies, imported records, Upload Jobs and Row Errors.
type Store struct {
	mu sync.Mutex

	companies    map[string]string
	accounts     map[string]map[string]storedAccount  // company -> name -> account
	categories   map[string]map[string]storedCategory // company -> name -> category
	transactions map[string][]storedTransaction       // company -> transactions

	jobs      map[string]*core.UploadJob
	rowErrors map[string]map[int]core.RowError // job -> row -> error
}

type storedAccount struct {
	ID string
	core.Account
}

type storedCategory struct {
	ID string
	core.Category
}

type storedTransaction struct {
	ID string
	core.Transaction
}

// New returns an empty store.
func New() *Store {
	return &Store{
		companies:    make(map[string]string),
		accounts:     make(map[string]map[string]storedAccount),
		categories:   make(map[string]map[string]storedCategory),
		transactions: make(map[string][]storedTransaction),
		jobs:         make(map[string]*core.UploadJob),
		rowErrors:    make(map[string]map[int]core.RowError),
	}
}

// AddCompany registers a company so imports can target it.
func (s *Store) AddCompany(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[id] = name
}

// =============================================================================
// Record store
// =============================================================================

func (s *Store) CompanyExists(_ context.Context, companyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.companies[companyID]
	return ok, nil
}

func (s *Store) Create(_ context.Context, companyID string, rec core.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()

	switch r := rec.(type) {
	case core.Account:
		byName := s.accounts[companyID]
		if byName == nil {
			byName = make(map[string]storedAccount)
			s.accounts[companyID] = byName
		}
		if _, exists := byName[r.Name]; exists {
			return "", fmt.Errorf("%w: account %q already exists", core.ErrDuplicateRecord, r.Name)
		}
		byName[r.Name] = storedAccount{ID: id, Account: r}

	case core.Category:
		byName := s.categories[companyID]
		if byName == nil {
			byName = make(map[string]storedCategory)
			s.categories[companyID] = byName
		}
		if _, exists := byName[r.Name]; exists {
			return "", fmt.Errorf("%w: category %q already exists", core.ErrDuplicateRecord, r.Name)
		}
		byName[r.Name] = storedCategory{ID: id, Category: r}

	case core.Transaction:
		s.transactions[companyID] = append(s.transactions[companyID], storedTransaction{ID: id, Transaction: r})

	default:
		return "", fmt.Errorf("%w: %T", core.ErrUnknownKind, rec)
	}

	return id, nil
}

func (s *Store) FindAccountByName(_ context.Context, companyID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[companyID][name]
	if !ok {
		return "", core.ErrNotFound
	}
	return acct.ID, nil
}

func (s *Store) FindOrCreateCategory(_ context.Context, companyID, name string, categoryType core.CategoryType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName := s.categories[companyID]
	if byName == nil {
		byName = make(map[string]storedCategory)
		s.categories[companyID] = byName
	}
	if cat, ok := byName[name]; ok {
		return cat.ID, nil
	}

	cat := storedCategory{
		ID:       uuid.NewString(),
		Category: core.Category{Name: name, Type: categoryType, IsActive: true},
	}
	byName[name] = cat
	return cat.ID, nil
}

// Accounts returns the company's accounts sorted by name.
func (s *Store) Accounts(companyID string) []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Account, 0, len(s.accounts[companyID]))
	for _, a := range s.accounts[companyID] {
		out = append(out, a.Account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Categories returns the company's categories sorted by name.
func (s *Store) Categories(companyID string) []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Category, 0, len(s.categories[companyID]))
	for _, c := range s.categories[companyID] {
		out = append(out, c.Category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Transactions returns the company's transactions in insertion order.
func (s *Store) Transactions(companyID string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, len(s.transactions[companyID]))
	for i, t := range s.transactions[companyID] {
		out[i] = t.Transaction
	}
	return out
}

// =============================================================================
// Job store
// =============================================================================

func (s *Store) CreateJob(_ context.Context, job *core.UploadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: upload %s", core.ErrDuplicateRecord, job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.rowErrors[job.ID] = make(map[int]core.RowError)
	return nil
}

func (s *Store) StartJob(_ context.Context, jobID string, totalRows int, columns []string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrUploadNotFound
	}
	job.TotalRows = totalRows
	job.Columns = append([]string(nil), columns...)
	job.StartedAt = &startedAt
	return nil
}

func (s *Store) RecordOutcome(_ context.Context, jobID string, rowErr *core.RowError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrUploadNotFound
	}
	if rowErr == nil {
		job.SuccessfulRows++
		return nil
	}
	job.FailedRows++
	s.rowErrors[jobID][rowErr.RowNumber] = copyRowError(*rowErr)
	return nil
}

func (s *Store) FinishJob(_ context.Context, job *core.UploadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[job.ID]
	if !ok {
		return core.ErrUploadNotFound
	}
	stored.Status = job.Status
	stored.FileSize = job.FileSize
	stored.TotalRows = job.TotalRows
	stored.SuccessfulRows = job.SuccessfulRows
	stored.FailedRows = job.FailedRows
	stored.ErrorSummary = job.ErrorSummary
	stored.StartedAt = job.StartedAt
	stored.CompletedAt = job.CompletedAt
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*core.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, core.ErrUploadNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListJobs(_ context.Context, filter core.ListFilter) ([]core.UploadJob, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []core.UploadJob
	for _, job := range s.jobs {
		if filter.CompanyID != "" && job.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		matched = append(matched, *job)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []core.UploadJob{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) ListRowErrors(_ context.Context, jobID string) ([]core.RowError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRow, ok := s.rowErrors[jobID]
	if !ok {
		return nil, core.ErrUploadNotFound
	}
	out := make([]core.RowError, 0, len(byRow))
	for _, re := range byRow {
		out = append(out, copyRowError(re))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out, nil
}

func (s *Store) ResolveRowError(_ context.Context, jobID string, rowNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return core.ErrUploadNotFound
	}
	if _, ok := s.rowErrors[jobID][rowNumber]; !ok {
		return core.ErrRowErrorNotFound
	}
	delete(s.rowErrors[jobID], rowNumber)
	job.FailedRows--
	job.SuccessfulRows++
	return nil
}

func (s *Store) ReplaceRowError(_ context.Context, rowErr core.RowError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRow, ok := s.rowErrors[rowErr.UploadID]
	if !ok {
		return core.ErrUploadNotFound
	}
	if _, ok := byRow[rowErr.RowNumber]; !ok {
		return core.ErrRowErrorNotFound
	}
	byRow[rowErr.RowNumber] = copyRowError(rowErr)
	return nil
}

func copyRowError(re core.RowError) core.RowError {
	data := make(map[string]string, len(re.RowData))
	for k, v := range re.RowData {
		data[k] = v
	}
	re.RowData = data
	return re
}
