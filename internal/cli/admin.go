package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

func (a *app) templateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template <kind>",
		Short: "Print the CSV template of a kind",
		Long: `Print the CSV template of a kind: the header row followed by sample rows.

Examples:
  importctl template accounts
  importctl template transactions --output transactions.csv`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{offline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := core.ParseKind(args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return core.WriteTemplate(cmd.OutOrStdout(), kind)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create template file: %w", err)
			}
			if err := core.WriteTemplate(f, kind); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireDatabase(); err != nil {
				return err
			}
			if err := a.pg.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied.")
			return nil
		},
	}
}

func (a *app) companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <id> <name>",
		Short: "Create or rename a company",
		Long: `Create a company so files can be imported for it. An existing company
keeps its id and takes the new name.

Examples:
  importctl company add acme "Acme Corp"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDatabase(); err != nil {
				return err
			}
			if err := a.pg.AddCompany(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Company %s saved.\n", args[0])
			return nil
		},
	})

	return cmd
}
