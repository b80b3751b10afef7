package web

import (
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// UploadResponse is returned by the upload and retry endpoints.
type UploadResponse struct {
	UploadID       string        `json:"bulk_upload_id"`
	Status         core.Status   `json:"status"`
	TotalRows      int           `json:"total_rows"`
	SuccessfulRows int           `json:"successful_rows"`
	FailedRows     int           `json:"failed_rows"`
	SuccessRate    float64       `json:"success_rate"`
	Message        string        `json:"message"`
	DataSummary    *core.Summary `json:"data_summary,omitempty"`

	// Set by retry only.
	Retried      *int `json:"retried,omitempty"`
	Resolved     *int `json:"resolved,omitempty"`
	StillFailing *int `json:"still_failing,omitempty"`
}

func newUploadResponse(job core.UploadJob, message string) UploadResponse {
	return UploadResponse{
		UploadID:       job.ID,
		Status:         job.Status,
		TotalRows:      job.TotalRows,
		SuccessfulRows: job.SuccessfulRows,
		FailedRows:     job.FailedRows,
		SuccessRate:    job.SuccessRate(),
		Message:        message,
	}
}

func importResponse(out *core.ImportOutcome) UploadResponse {
	resp := newUploadResponse(out.Job, out.Message())
	resp.DataSummary = out.Summary
	return resp
}

func retryResponse(out *core.RetryOutcome) UploadResponse {
	msg := fmt.Sprintf("Retry completed. %d rows resolved, %d rows still failing.", out.Resolved, out.StillFailing)
	if out.Retried == 0 {
		msg = "No failed rows to retry."
	}
	resp := newUploadResponse(out.Job, msg)
	resp.Retried, resp.Resolved, resp.StillFailing = &out.Retried, &out.Resolved, &out.StillFailing
	return resp
}

// RejectionResponse is returned when a whole file is rejected.
type RejectionResponse struct {
	UploadID  string            `json:"bulk_upload_id"`
	Status    core.Status       `json:"status"`
	ErrorType core.ErrorType    `json:"error_type"`
	Reason    core.RejectReason `json:"reason"`
	Error     string            `json:"error"`
	Action    string            `json:"action,omitempty"`
	Code      string            `json:"code"`
}

func rejectionResponse(out *core.ImportOutcome) RejectionResponse {
	msg := core.RejectionMessage(out.Wholesale.Reason)
	return RejectionResponse{
		UploadID:  out.Job.ID,
		Status:    out.Job.Status,
		ErrorType: core.ErrorTypeWholesale,
		Reason:    out.Wholesale.Reason,
		Error:     out.Wholesale.Message,
		Action:    msg.Action,
		Code:      msg.Code,
	}
}

// JobResponse is one entry of the upload history.
type JobResponse struct {
	core.UploadJob
	SuccessRate float64 `json:"success_rate"`
}

// HistoryResponse is one page of the upload history.
type HistoryResponse struct {
	Results     []JobResponse `json:"results"`
	TotalCount  int           `json:"total_count"`
	Page        int           `json:"page"`
	PageSize    int           `json:"page_size"`
	HasNext     bool          `json:"has_next"`
	HasPrevious bool          `json:"has_previous"`
}

func historyResponse(page *core.JobPage) HistoryResponse {
	results := make([]JobResponse, len(page.Results))
	for i, job := range page.Results {
		results[i] = JobResponse{UploadJob: job, SuccessRate: job.SuccessRate()}
	}
	return HistoryResponse{
		Results:     results,
		TotalCount:  page.TotalCount,
		Page:        page.Page,
		PageSize:    page.PageSize,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}
}

// RowErrorResponse adds the support code to a Row Error.
type RowErrorResponse struct {
	core.RowError
	Code string `json:"code"`
}

// ErrorsResponse lists the Row Errors of one upload.
type ErrorsResponse struct {
	UploadID    string             `json:"bulk_upload_id"`
	Kind        core.Kind          `json:"upload_type"`
	Status      core.Status        `json:"status"`
	TotalErrors int                `json:"total_errors"`
	Errors      []RowErrorResponse `json:"errors"`
}

func errorsResponse(report *core.ErrorReport) ErrorsResponse {
	errs := make([]RowErrorResponse, len(report.Errors))
	for i, re := range report.Errors {
		errs[i] = RowErrorResponse{RowError: re, Code: core.RowErrorCode(re.ErrorType)}
	}
	return ErrorsResponse{
		UploadID:    report.UploadID,
		Kind:        report.Kind,
		Status:      report.Status,
		TotalErrors: len(errs),
		Errors:      errs,
	}
}
