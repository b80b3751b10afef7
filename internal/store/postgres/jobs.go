package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

const jobColumns = `id, upload_type, company_id, file_name, file_size, status,
	total_rows, successful_rows, failed_rows, error_summary, client_ip,
	created_at, started_at, completed_at, header_columns`

func scanJob(row pgx.Row) (*core.UploadJob, error) {
	var (
		job  core.UploadJob
		kind string
		st   string
	)
	err := row.Scan(
		&job.ID, &kind, &job.CompanyID, &job.FileName, &job.FileSize, &st,
		&job.TotalRows, &job.SuccessfulRows, &job.FailedRows, &job.ErrorSummary, &job.ClientIP,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Columns,
	)
	if err != nil {
		return nil, err
	}
	job.Kind = core.Kind(kind)
	job.Status = core.Status(st)
	return &job, nil
}

func (s *Store) CreateJob(ctx context.Context, job *core.UploadJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bulk_uploads
			(id, upload_type, company_id, file_name, file_size, status, error_summary, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, string(job.Kind), job.CompanyID, job.FileName, job.FileSize,
		string(job.Status), job.ErrorSummary, job.ClientIP, job.CreatedAt,
	)
	if err != nil {
		return mapError(err, "upload "+job.ID)
	}
	return nil
}

func (s *Store) StartJob(ctx context.Context, jobID string, totalRows int, columns []string, startedAt time.Time) error {
	if columns == nil {
		columns = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE bulk_uploads SET total_rows = $2, header_columns = $3, started_at = $4 WHERE id = $1`,
		jobID, totalRows, columns, startedAt)
	if err != nil {
		return fmt.Errorf("start upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUploadNotFound
	}
	return nil
}

// RecordOutcome bumps the job counter and stores the Row Error in one transaction.
func (s *Store) RecordOutcome(ctx context.Context, jobID string, rowErr *core.RowError) error {
	if rowErr == nil {
		tag, err := s.pool.Exec(ctx,
			`UPDATE bulk_uploads SET successful_rows = successful_rows + 1 WHERE id = $1`, jobID)
		if err != nil {
			return fmt.Errorf("count successful row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrUploadNotFound
		}
		return nil
	}

	return s.beginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE bulk_uploads SET failed_rows = failed_rows + 1 WHERE id = $1`, jobID)
		if err != nil {
			return fmt.Errorf("count failed row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrUploadNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bulk_upload_errors
				(bulk_upload_id, row_number, field_name, error_type, error_message, row_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			jobID, rowErr.RowNumber, rowErr.FieldName, string(rowErr.ErrorType),
			rowErr.Message, rowData(rowErr.RowData), rowErr.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert row error: %w", err)
		}
		return nil
	})
}

func (s *Store) FinishJob(ctx context.Context, job *core.UploadJob) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bulk_uploads SET
			status = $2, file_size = $3, total_rows = $4, successful_rows = $5,
			failed_rows = $6, error_summary = $7, started_at = $8, completed_at = $9
		WHERE id = $1`,
		job.ID, string(job.Status), job.FileSize, job.TotalRows, job.SuccessfulRows,
		job.FailedRows, job.ErrorSummary, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("finish upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUploadNotFound
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*core.UploadJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM bulk_uploads WHERE id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return job, nil
}

// jobFilter builds the WHERE clause and arguments for a history query.
func jobFilter(filter core.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if filter.CompanyID != "" {
		add("company_id", filter.CompanyID)
	}
	if filter.Kind != "" {
		add("upload_type", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListJobs(ctx context.Context, filter core.ListFilter) ([]core.UploadJob, int, error) {
	filter = filter.Normalize()
	where, args := jobFilter(filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bulk_uploads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM bulk_uploads%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	jobs := []core.UploadJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan upload: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	return jobs, total, nil
}

func (s *Store) ListRowErrors(ctx context.Context, jobID string) ([]core.RowError, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT row_number, field_name, error_type, error_message, row_data, created_at
		FROM bulk_upload_errors
		WHERE bulk_upload_id = $1
		ORDER BY row_number`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	defer rows.Close()

	out := []core.RowError{}
	for rows.Next() {
		re := core.RowError{UploadID: jobID}
		var errType string
		if err := rows.Scan(&re.RowNumber, &re.FieldName, &errType, &re.Message, &re.RowData, &re.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row error: %w", err)
		}
		re.ErrorType = core.ErrorType(errType)
		out = append(out, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	return out, nil
}

// ResolveRowError deletes the Row Error and moves the row to the successful
// counter in one transaction.
func (s *Store) ResolveRowError(ctx context.Context, jobID string, rowNumber int) error {
	return s.beginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM bulk_upload_errors WHERE bulk_upload_id = $1 AND row_number = $2`,
			jobID, rowNumber)
		if err != nil {
			return fmt.Errorf("delete row error: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrRowErrorNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE bulk_uploads
			SET failed_rows = failed_rows - 1, successful_rows = successful_rows + 1
			WHERE id = $1`, jobID)
		if err != nil {
			return fmt.Errorf("update counters: %w", err)
		}
		return nil
	})
}

func (s *Store) ReplaceRowError(ctx context.Context, rowErr core.RowError) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bulk_upload_errors
		SET field_name = $3, error_type = $4, error_message = $5, row_data = $6, created_at = $7
		WHERE bulk_upload_id = $1 AND row_number = $2`,
		rowErr.UploadID, rowErr.RowNumber, rowErr.FieldName, string(rowErr.ErrorType),
		rowErr.Message, rowData(rowErr.RowData), rowErr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace row error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRowErrorNotFound
	}
	return nil
}

// rowData keeps a nil map from being stored as JSON null.
func rowData(data map[string]string) map[string]string {
	if data == nil {
		return map[string]string{}
	}
	return data
}
