package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	_ "github.com/JonMunkholm/bulkimport/internal/core/kinds"
	"github.com/JonMunkholm/bulkimport/internal/store/memory"
)

const testCompany = "acme"

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{MaxFileSize: 1 << 20, MaxRows: 100},
		Upload: config.UploadConfig{MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	store.AddCompany(testCompany, "Acme Corp")

	imp := core.NewImporter(store, store, core.Limits{
		MaxFileSize: cfg.Import.MaxFileSize,
		MaxRows:     cfg.Import.MaxRows,
	})
	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	srv := NewServer(core.NewService(imp, limiter, cfg.Upload.Timeout), cfg, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func uploadRequest(t *testing.T, kind, companyID, fileName, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if companyID != "" {
		require.NoError(t, mw.WriteField("company_id", companyID))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s/upload_%s/", APIPrefix, kind), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func upload(t *testing.T, srv *Server, kind, body string) UploadResponse {
	t.Helper()
	rec := serve(srv, uploadRequest(t, kind, testCompany, kind+".csv", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[UploadResponse](t, rec)
}

// =============================================================================
// Uploads
// =============================================================================

func TestUpload_Accounts(t *testing.T) {
	srv, store := newTestServer(t, testConfig())

	resp := upload(t, srv, "accounts", "name,account_type,balance\nMain,checking,100.00\nBad,bogus,1\n")

	assert.NotEmpty(t, resp.UploadID)
	assert.Equal(t, core.StatusPartial, resp.Status)
	assert.Equal(t, 2, resp.TotalRows)
	assert.Equal(t, 1, resp.SuccessfulRows)
	assert.Equal(t, 1, resp.FailedRows)
	assert.Equal(t, 50.0, resp.SuccessRate)
	assert.Equal(t, "Upload completed. 1 rows processed successfully, 1 rows failed.", resp.Message)
	require.NotNil(t, resp.DataSummary)
	assert.Equal(t, 1, resp.DataSummary.RecordCount)
	assert.Nil(t, resp.Retried)

	assert.Len(t, store.Accounts(testCompany), 1)
}

func TestUpload_WholesaleRejection(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "accounts", testCompany, "accounts.csv", "nombre,tipo\nx,y\n"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	assert.NotEmpty(t, resp.UploadID)
	assert.Equal(t, core.StatusFailed, resp.Status)
	assert.Equal(t, core.ErrorTypeWholesale, resp.ErrorType)
	assert.Equal(t, core.ReasonHeaderMismatch, resp.Reason)
	assert.Equal(t, "IMP003", resp.Code)
	assert.NotEmpty(t, resp.Error)

	detail := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/"+resp.UploadID+"/", nil))
	require.Equal(t, http.StatusOK, detail.Code)
	job := decode[JobResponse](t, detail)
	assert.Equal(t, core.StatusFailed, job.Status)
	assert.Equal(t, 0, job.TotalRows)
	assert.Equal(t, resp.Error, job.ErrorSummary)
}

func TestUpload_FormErrors(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		companyID  string
		fileName   string
		wantStatus int
		wantCode   string
	}{
		{"missing company", "", "accounts.csv", http.StatusBadRequest, "FILE002"},
		{"missing file", testCompany, "", http.StatusBadRequest, "FILE001"},
		{"unknown company", "ghost", "accounts.csv", http.StatusNotFound, "UPL007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, uploadRequest(t, "accounts", tt.companyID, tt.fileName, "name,account_type,balance\n"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, APIPrefix+"/upload_accounts/", strings.NewReader("name\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := serve(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE002", decode[ErrorResponse](t, rec).Code)
}

func TestUpload_BodyOverLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 16
	srv, _ := newTestServer(t, cfg)

	body := "name,account_type,balance\n" + strings.Repeat("x", multipartOverhead+64)
	rec := serve(srv, uploadRequest(t, "accounts", testCompany, "accounts.csv", body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE003", decode[ErrorResponse](t, rec).Code)
}

func TestUpload_FileOverLimitIsWholesale(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 16
	srv, _ := newTestServer(t, cfg)

	rec := serve(srv, uploadRequest(t, "accounts", testCompany, "accounts.csv", "name,account_type,balance\nMain,checking,1\n"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[RejectionResponse](t, rec)
	assert.Equal(t, core.ReasonFileTooLarge, resp.Reason)
	assert.Equal(t, "IMP001", resp.Code)
}

// =============================================================================
// Errors, retry, detail
// =============================================================================

func TestErrors_JSONAndCSV(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	resp := upload(t, srv, "accounts", "name,account_type,balance\nBad,checkings,10\n,savings,1\n")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/"+resp.UploadID+"/errors/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[ErrorsResponse](t, rec)
	assert.Equal(t, resp.UploadID, report.UploadID)
	assert.Equal(t, core.KindAccounts, report.Kind)
	assert.Equal(t, core.StatusFailed, report.Status)
	require.Equal(t, 2, report.TotalErrors)
	assert.Equal(t, 1, report.Errors[0].RowNumber)
	assert.Equal(t, "VAL002", report.Errors[0].Code)
	assert.Equal(t, "Bad", report.Errors[0].RowData["name"])
	assert.Equal(t, "VAL001", report.Errors[1].Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/"+resp.UploadID+"/errors/?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bulk_upload_"+resp.UploadID+"_errors.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "row_number", records[0][0])
	assert.Equal(t, "invalid_choice", records[1][2])

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/"+resp.UploadID+"/errors/?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrors_RowLevelErrorKeepsEmptyFieldName(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	resp := upload(t, srv, "accounts", "name,account_type,balance\nCash,cash,1\nCash,cash,2\n")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/"+resp.UploadID+"/errors/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Errors []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	field, ok := body.Errors[0]["field_name"]
	require.True(t, ok, "field_name is always present")
	assert.Equal(t, "", field)
	assert.Equal(t, "persistence_error", body.Errors[0]["error_type"])
}

func TestErrors_UnknownUpload(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	for _, path := range []string{"/missing/", "/missing/errors/"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "UPL002", decode[ErrorResponse](t, rec).Code, path)
	}
}

func TestRetry_ResolvesRows(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	upload(t, srv, "accounts", "name,account_type,balance\nMain Checking,checking,100\n")

	resp := upload(t, srv, "transactions", "account_name,amount,description,date\nMain Checking,10,Deposit,2024-01-15\nGhost,5,Mystery,2024-01-16\n")
	require.Equal(t, core.StatusPartial, resp.Status)

	upload(t, srv, "accounts", "name,account_type,balance\nGhost,cash,0\n")

	rec := serve(srv, httptest.NewRequest(http.MethodPost, APIPrefix+"/"+resp.UploadID+"/retry/", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	retry := decode[UploadResponse](t, rec)
	assert.Equal(t, core.StatusCompleted, retry.Status)
	assert.Equal(t, 2, retry.SuccessfulRows)
	assert.Equal(t, 0, retry.FailedRows)
	assert.Equal(t, 100.0, retry.SuccessRate)
	require.NotNil(t, retry.Retried)
	assert.Equal(t, 1, *retry.Retried)
	assert.Equal(t, 1, *retry.Resolved)
	assert.Equal(t, 0, *retry.StillFailing)
	assert.Equal(t, "Retry completed. 1 rows resolved, 0 rows still failing.", retry.Message)
}

func TestRetry_Errors(t *testing.T) {
	srv, store := newTestServer(t, testConfig())
	require.NoError(t, store.CreateJob(context.Background(), &core.UploadJob{
		ID:        "job-pending",
		Kind:      core.KindAccounts,
		CompanyID: testCompany,
		Status:    core.StatusPending,
	}))

	rec := serve(srv, httptest.NewRequest(http.MethodPost, APIPrefix+"/missing/retry/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A pending job nothing is working on was abandoned and gets closed out.
	rec = serve(srv, httptest.NewRequest(http.MethodPost, APIPrefix+"/job-pending/retry/", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatusFailed, decode[UploadResponse](t, rec).Status)
}

// =============================================================================
// History and templates
// =============================================================================

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	upload(t, srv, "accounts", "name,account_type,balance\nMain,checking,1\n")
	upload(t, srv, "categories", "name,category_type\nRent,expense\n")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[HistoryResponse](t, rec)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, core.DefaultPageSize, page.PageSize)
	assert.False(t, page.HasNext)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/?upload_type=categories&status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[HistoryResponse](t, rec)
	require.Len(t, page.Results, 1)
	assert.Equal(t, core.KindCategories, page.Results[0].Kind)
	assert.Equal(t, 100.0, page.Results[0].SuccessRate)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/?page_size=1&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[HistoryResponse](t, rec)
	assert.Len(t, page.Results, 1)
	assert.True(t, page.HasPrevious)
	assert.False(t, page.HasNext)
}

func TestHistory_InvalidQuery(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	for _, query := range []string{"upload_type=widgets", "status=done", "page=0", "page_size=abc"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code, query)
	}
}

func TestTemplate(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/templates/accounts/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "accounts_template.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "name", records[0][0])
	assert.Greater(t, len(records), 1)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/templates/widgets/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Health, auth, rate limiting
// =============================================================================

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	down, _ := newTestServer(t, testConfig(), WithHealthCheck(func(context.Context) error {
		return errors.New("connection refused")
	}))
	rec = serve(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv, _ := newTestServer(t, cfg)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, APIPrefix+"/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, UploadsPerHour: 1}
	srv, _ := newTestServer(t, cfg)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, APIPrefix+"/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	t.Cleanup(rl.stop)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("a")
	assert.True(t, ok)
	ok, _ = rl.allow("a")
	assert.True(t, ok)
	ok, wait := rl.allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	ok, _ = rl.allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute + time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok, "new window")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", core.ErrUploadNotFound), http.StatusNotFound},
		{core.ErrCompanyNotFound, http.StatusNotFound},
		{core.ErrUnknownKind, http.StatusNotFound},
		{core.ErrUploadInProgress, http.StatusConflict},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{fmt.Errorf("import interrupted: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{errMissingCompany, http.StatusBadRequest},
		{errBodyTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRespondError_TooManyUploadsSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), core.ErrTooManyUploads, http.StatusServiceUnavailable)

	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "UPL001", decode[ErrorResponse](t, rec).Code)
}
