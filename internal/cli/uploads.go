package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

func (a *app) errorsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "errors <upload-id>",
		Short: "Show the row errors of an upload",
		Long: `Show the row errors of an upload in row order.

The csv format adds the original cells after the error columns, so the file
can be corrected and imported again.

Examples:
  importctl errors 3f0c...
  importctl errors 3f0c... --format csv > fix.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDatabase(); err != nil {
				return err
			}

			report, err := a.importer.Errors(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if strings.ToLower(format) == formatCSV {
				return report.WriteCSV(cmd.OutOrStdout())
			}
			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) {
				fmt.Fprintf(w, "Upload %s [%s] %s\n", report.UploadID, report.Kind, report.Status)
				if len(report.Errors) == 0 {
					fmt.Fprintln(w, "No row errors.")
					return
				}
				printRowErrors(w, report.Errors)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml or csv")
	return cmd
}

func (a *app) retryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "retry <upload-id>",
		Short: "Re-run the failed rows of an upload",
		Long: `Re-run the failed rows of an upload with the data captured at import time.

Rows that now succeed are removed from the error list; rows that fail again
keep a single, updated error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDatabase(); err != nil {
				return err
			}

			out, err := a.importer.Retry(cmd.Context(), args[0])
			if out == nil {
				return err
			}
			if rerr := render(cmd.OutOrStdout(), format, out, func(w io.Writer) {
				printJob(w, out.Job)
				fmt.Fprintf(w, "\nRetried %d rows: %d resolved, %d still failing.\n",
					out.Retried, out.Resolved, out.StillFailing)
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		company  string
		kind     string
		status   string
		page     int
		pageSize int
		format   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List uploads, newest first",
		Long: `List uploads, newest first.

Examples:
  importctl history
  importctl history --company acme --kind transactions --status partial
  importctl history --page 2 --page-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireDatabase(); err != nil {
				return err
			}

			filter := core.ListFilter{CompanyID: company, Page: page, PageSize: pageSize}
			if kind != "" {
				k, err := core.ParseKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			if status != "" {
				filter.Status = core.Status(strings.ToLower(status))
				if !filter.Status.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
			}

			res, err := a.importer.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) {
				fmt.Fprintf(w, "Uploads (%d, page %d):\n\n", res.TotalCount, res.Page)
				for _, job := range res.Results {
					fmt.Fprintf(w, "- %s [%s] %s %d/%d rows %s\n",
						job.ID, job.Kind, job.Status, job.SuccessfulRows, job.TotalRows,
						job.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				if res.HasNext {
					fmt.Fprintf(w, "\nMore results: --page %d\n", res.Page+1)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&company, "company", "c", "", "only uploads for this company")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only uploads of this kind")
	cmd.Flags().StringVar(&status, "status", "", "only uploads with this status")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", core.DefaultPageSize, "uploads per page")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	return cmd
}
