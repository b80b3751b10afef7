package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// importResult is the machine-readable output of the import command.
type importResult struct {
	Job       core.UploadJob  `json:"job" yaml:"job"`
	Message   string          `json:"message" yaml:"message"`
	Rejection *rejection      `json:"rejection,omitempty" yaml:"rejection,omitempty"`
	Summary   *core.Summary   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Errors    []core.RowError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type rejection struct {
	Reason  core.RejectReason `json:"reason" yaml:"reason"`
	Message string            `json:"message" yaml:"message"`
	Code    string            `json:"code" yaml:"code"`
}

func (a *app) importCmd() *cobra.Command {
	var (
		kind         string
		company      string
		format       string
		seedAccounts []string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV file",
		Long: `Import a CSV file of accounts, transactions or categories for a company.

Every valid row is stored; invalid rows are recorded as row errors and
listed in the output. A file that fails the size, row count or header
checks is rejected as a whole and the command exits non-zero.

With --memory the company is created on the fly and nothing is persisted.
--seed-accounts adds named accounts first so a transactions file can be
checked without a database.

Examples:
  importctl import accounts.csv --kind accounts --company acme
  importctl import tx.csv -k transactions -c acme --memory --seed-accounts "Main Checking"
  importctl import categories.csv -k categories -c acme --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			k, err := core.ParseKind(kind)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat file: %w", err)
			}

			if a.mem != nil {
				a.mem.AddCompany(company, company)
				for _, name := range seedAccounts {
					if _, err := a.mem.Create(ctx, company, core.Account{
						Name: name, AccountType: "other", Currency: "USD", IsActive: true,
					}); err != nil {
						return fmt.Errorf("seed account %q: %w", name, err)
					}
				}
			} else if len(seedAccounts) > 0 {
				return fmt.Errorf("--seed-accounts requires --memory")
			}

			out, err := a.importer.Import(ctx, core.ImportRequest{
				CompanyID: company,
				Kind:      k,
				FileName:  filepath.Base(args[0]),
				Size:      info.Size(),
				Body:      f,
			})
			if out == nil {
				return err
			}
			importErr := err

			res := importResult{Job: out.Job, Message: out.Message(), Summary: out.Summary}
			if out.Wholesale != nil {
				res.Rejection = &rejection{
					Reason:  out.Wholesale.Reason,
					Message: out.Wholesale.Message,
					Code:    core.RejectionMessage(out.Wholesale.Reason).Code,
				}
			}
			if out.Job.FailedRows > 0 {
				report, err := a.importer.Errors(ctx, out.Job.ID)
				if err != nil {
					return err
				}
				res.Errors = report.Errors
			}

			if err := render(cmd.OutOrStdout(), format, res, func(w io.Writer) {
				printJob(w, res.Job)
				fmt.Fprintf(w, "\n%s\n", res.Message)
				printRowErrors(w, res.Errors)
			}); err != nil {
				return err
			}

			if importErr != nil {
				return importErr
			}
			if res.Rejection != nil {
				return fmt.Errorf("upload rejected: %s", res.Rejection.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "record kind: accounts, transactions or categories (required)")
	cmd.Flags().StringVarP(&company, "company", "c", "", "company id (required)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	cmd.Flags().StringSliceVar(&seedAccounts, "seed-accounts", nil, "account names to create first (with --memory)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
