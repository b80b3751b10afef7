package core

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the record type a CSV file contains.
type Kind string

const (
	KindAccounts     Kind = "accounts"
	KindTransactions Kind = "transactions"
	KindCategories   Kind = "categories"
)

// Status is the lifecycle state of an Upload Job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has finished processing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// ErrorType classifies a failure recorded against a job or a row.
type ErrorType string

const (
	ErrorTypeWholesale         ErrorType = "wholesale_rejection"
	ErrorTypeMissingField      ErrorType = "missing_field"
	ErrorTypeInvalidChoice     ErrorType = "invalid_choice"
	ErrorTypeFieldFormat       ErrorType = "field_format"
	ErrorTypeReferenceNotFound ErrorType = "reference_not_found"
	ErrorTypePersistence       ErrorType = "persistence_error"
)

// RejectReason explains why a whole file was rejected.
type RejectReason string

const (
	ReasonFileTooLarge   RejectReason = "file_too_large"
	ReasonTooManyRows    RejectReason = "too_many_rows"
	ReasonHeaderMismatch RejectReason = "header_mismatch"
	ReasonUnreadableFile RejectReason = "unreadable_file"
)

// UploadJob is the record of one import attempt.
// Counters satisfy SuccessfulRows+FailedRows == TotalRows once the job is terminal.
type UploadJob struct {
	ID             string     `json:"id" yaml:"id"`
	Kind           Kind       `json:"upload_type" yaml:"upload_type"`
	CompanyID      string     `json:"company_id" yaml:"company_id"`
	FileName       string     `json:"file_name" yaml:"file_name"`
	FileSize       int64      `json:"file_size" yaml:"file_size"`
	Status         Status     `json:"status" yaml:"status"`
	TotalRows      int        `json:"total_rows" yaml:"total_rows"`
	SuccessfulRows int        `json:"successful_rows" yaml:"successful_rows"`
	FailedRows     int        `json:"failed_rows" yaml:"failed_rows"`
	ErrorSummary   string     `json:"error_summary,omitempty" yaml:"error_summary,omitempty"`
	ClientIP       string     `json:"client_ip,omitempty" yaml:"client_ip,omitempty"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	// Columns is the uploaded header in file order, kept so a retry checks
	// fields in the order the original import did.
	Columns []string `json:"-" yaml:"-"`
}

// SuccessRate returns successful rows as a percentage of total rows,
// rounded to two decimals. Zero when the job has no rows.
func (j UploadJob) SuccessRate() float64 {
	if j.TotalRows == 0 {
		return 0
	}
	rate := float64(j.SuccessfulRows) / float64(j.TotalRows) * 100
	return math.Round(rate*100) / 100
}

// RowError describes why one data row could not be imported.
// RowNumber is 1-based over data records; the header is not counted.
type RowError struct {
	UploadID  string            `json:"-" yaml:"-"`
	RowNumber int               `json:"row_number" yaml:"row_number"`
	FieldName string            `json:"field_name" yaml:"field_name"`
	ErrorType ErrorType         `json:"error_type" yaml:"error_type"`
	Message   string            `json:"error_message" yaml:"error_message"`
	RowData   map[string]string `json:"row_data" yaml:"row_data"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// WholesaleError rejects an entire file before any row is processed.
type WholesaleError struct {
	Reason  RejectReason
	Message string
}

func (e *WholesaleError) Error() string {
	return e.Message
}

// FieldError is a row-level validation failure returned by kind builders.
type FieldError struct {
	Type    ErrorType
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Record is an imported entity: Account, Transaction or Category.
type Record interface {
	RecordKind() Kind
}

// TransactionType values accepted in transaction files.
const (
	TransactionIncome   = "income"
	TransactionExpense  = "expense"
	TransactionTransfer = "transfer"
)

// CategoryType is the side of the ledger a category belongs to.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// Account is a financial account owned by a company.
type Account struct {
	Name          string
	AccountType   string
	Balance       decimal.Decimal
	AccountNumber string
	BankName      string
	Currency      string
	IsActive      bool
}

func (Account) RecordKind() Kind { return KindAccounts }

// Transaction is a dated movement of money on an account.
type Transaction struct {
	AccountID       string
	AccountName     string
	Amount          decimal.Decimal
	Description     string
	Date            time.Time
	Type            string
	CategoryID      string
	CategoryName    string
	ReferenceNumber string
	Tags            []string
}

func (Transaction) RecordKind() Kind { return KindTransactions }

// Category groups transactions for reporting.
type Category struct {
	Name        string
	Type        CategoryType
	Description string
	IsActive    bool
}

func (Category) RecordKind() Kind { return KindCategories }

// FieldType is the conversion applied to a CSV column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldChoice
	FieldDecimal
	FieldDate
	FieldBool
	FieldCurrency
	FieldTags
)

// FieldSpec defines one CSV column of a kind.
type FieldSpec struct {
	Name     string    // Column header name (must match CSV exactly)
	Type     FieldType // Conversion applied to the cell
	Required bool      // Column must exist in the header and be non-empty in every row
	Choices  []string  // Allowed values for FieldChoice, lower-case
	Default  string    // Value used when an optional cell is empty or the column is absent
}

// RowContext is passed to a kind's builder once every field converted cleanly.
type RowContext struct {
	CompanyID string
	Values    Values
	Resolver  ReferenceResolver
}

// BuildFunc maps converted values to a Record, resolving cross-references.
// A *FieldError return is recorded with its own type; any other error is a
// persistence failure.
type BuildFunc func(ctx context.Context, rc RowContext) (Record, error)

// KindDefinition contains everything needed to import one kind of file.
type KindDefinition struct {
	Kind       Kind
	Label      string
	FieldSpecs []FieldSpec
	SampleRows [][]string // Example rows for the downloadable template
	Build      BuildFunc
}

// Columns returns the column names in template order.
func (d KindDefinition) Columns() []string {
	cols := make([]string, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

// RequiredColumns returns the names of the required columns in template order.
func (d KindDefinition) RequiredColumns() []string {
	var cols []string
	for _, spec := range d.FieldSpecs {
		if spec.Required {
			cols = append(cols, spec.Name)
		}
	}
	return cols
}

// Spec returns the FieldSpec for a column name.
func (d KindDefinition) Spec(name string) (FieldSpec, bool) {
	for _, spec := range d.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}
