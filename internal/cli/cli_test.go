package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("AMQP_URL", "")

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// =============================================================================
// template
// =============================================================================

func TestTemplate(t *testing.T) {
	out, err := run(t, "template", "accounts")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "account_type", "balance", "account_number", "bank_name", "currency", "is_active"}, records[0])
	assert.Len(t, records, 4)
}

func TestTemplate_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.csv")

	out, err := run(t, "template", "categories", "--output", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "name,category_type,description,is_active\n"))
}

func TestTemplate_UnknownKind(t *testing.T) {
	_, err := run(t, "template", "widgets")
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}

// =============================================================================
// import --memory
// =============================================================================

func TestImport_MemoryText(t *testing.T) {
	path := writeFile(t, "accounts.csv", "name,account_type,balance\nMain,checking,100\nBad,bogus,1\n")

	out, err := run(t, "import", path, "--kind", "accounts", "--company", "acme", "--memory")
	require.NoError(t, err)

	assert.Contains(t, out, "[accounts] partial")
	assert.Contains(t, out, "2 total, 1 successful, 1 failed (50.00%)")
	assert.Contains(t, out, "Upload completed. 1 rows processed successfully, 1 rows failed.")
	assert.Contains(t, out, "- row 2 account_type [invalid_choice]")
}

func TestImport_MemoryYAML(t *testing.T) {
	path := writeFile(t, "accounts.csv", "name,account_type,balance\nBad,checkings,10\n,savings,1\n")

	out, err := run(t, "import", path, "-k", "accounts", "-c", "acme", "--memory", "--format", "yaml")
	require.NoError(t, err)

	var res struct {
		Job struct {
			Status     core.Status `yaml:"status"`
			FileName   string      `yaml:"file_name"`
			FailedRows int         `yaml:"failed_rows"`
		} `yaml:"job"`
		Errors []struct {
			RowNumber int            `yaml:"row_number"`
			ErrorType core.ErrorType `yaml:"error_type"`
		} `yaml:"errors"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &res), out)

	assert.Equal(t, core.StatusFailed, res.Job.Status)
	assert.Equal(t, "accounts.csv", res.Job.FileName)
	assert.Equal(t, 2, res.Job.FailedRows)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, core.ErrorTypeInvalidChoice, res.Errors[0].ErrorType)
	assert.Equal(t, core.ErrorTypeMissingField, res.Errors[1].ErrorType)
}

func TestImport_MemorySeedAccounts(t *testing.T) {
	path := writeFile(t, "tx.csv", "account_name,amount,description,date\nMain Checking,-12.50,Lunch,2024-03-01\n")

	out, err := run(t, "import", path, "-k", "transactions", "-c", "acme", "--memory",
		"--seed-accounts", "Main Checking", "--format", "json")
	require.NoError(t, err)

	var res importResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, core.StatusCompleted, res.Job.Status)
	assert.Equal(t, 1, res.Job.SuccessfulRows)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "12.5", res.Summary.TotalExpense.String())
	assert.Empty(t, res.Errors)
}

func TestImport_WholesaleRejectionFails(t *testing.T) {
	path := writeFile(t, "accounts.csv", "nombre,tipo\nx,y\n")

	out, err := run(t, "import", path, "-k", "accounts", "-c", "acme", "--memory", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(core.ReasonHeaderMismatch))

	var res importResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, core.ReasonHeaderMismatch, res.Rejection.Reason)
	assert.Equal(t, "IMP003", res.Rejection.Code)
	assert.Equal(t, 0, res.Job.TotalRows)
}

func TestImport_FlagErrors(t *testing.T) {
	path := writeFile(t, "accounts.csv", "name,account_type,balance\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing kind", []string{"import", path, "-c", "acme", "--memory"}},
		{"unknown kind", []string{"import", path, "-k", "widgets", "-c", "acme", "--memory"}},
		{"missing file", []string{"import", filepath.Join(t.TempDir(), "nope.csv"), "-k", "accounts", "-c", "acme", "--memory"}},
		{"bad format", []string{"import", path, "-k", "accounts", "-c", "acme", "--memory", "-f", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// database-only commands
// =============================================================================

func TestStoredUploadCommandsNeedDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"errors", "some-id", "--memory"},
		{"retry", "some-id", "--memory"},
		{"history", "--memory"},
		{"migrate", "--memory"},
		{"company", "add", "acme", "Acme", "--memory"},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, errNeedsDatabase, args[0])
	}
}

func TestMissingDatabaseURL(t *testing.T) {
	_, err := run(t, "history")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestRender(t *testing.T) {
	v := map[string]int{"rows": 3}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, v, nil))
	assert.Equal(t, "rows: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, formatJSON, v, nil))
	assert.JSONEq(t, `{"rows": 3}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, formatText, v, func(w io.Writer) { w.Write([]byte("three rows")) }))
	assert.Equal(t, "three rows", buf.String())

	assert.Error(t, render(&buf, "xml", v, nil))
}
