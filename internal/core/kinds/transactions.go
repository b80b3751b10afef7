package kinds

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// TransactionTypes lists the accepted transaction_type values.
var TransactionTypes = []string{core.TransactionIncome, core.TransactionExpense, core.TransactionTransfer}

func init() {
	core.Register(core.KindDefinition{
		Kind:  core.KindTransactions,
		Label: "Transactions",
		FieldSpecs: []core.FieldSpec{
			{Name: "account_name", Type: core.FieldText, Required: true},
			{Name: "amount", Type: core.FieldDecimal, Required: true},
			{Name: "description", Type: core.FieldText, Required: true},
			{Name: "date", Type: core.FieldDate, Required: true},
			{Name: "transaction_type", Type: core.FieldChoice, Choices: TransactionTypes},
			{Name: "category", Type: core.FieldText},
			{Name: "reference_number", Type: core.FieldText},
			{Name: "tags", Type: core.FieldTags},
		},
		SampleRows: [][]string{
			{"Main Checking", "1500.00", "Client payment - Invoice #1001", "2024-01-15", "income", "Sales Revenue", "INV-1001", "client,payment"},
			{"Main Checking", "-250.00", "Office supplies purchase", "2024-01-16", "expense", "Office Supplies", "PO-2001", "office,supplies"},
			{"Business Credit Card", "-89.99", "Software subscription", "2024-01-17", "expense", "Software", "SUB-3001", "software,subscription"},
		},
		Build: buildTransaction,
	})
}

// buildTransaction resolves the account by exact name and finds or creates
// the category. An empty transaction_type is inferred from the amount's sign.
func buildTransaction(ctx context.Context, rc core.RowContext) (core.Record, error) {
	v := rc.Values

	tx := core.Transaction{
		AccountName:     v.Text("account_name"),
		Amount:          v.Decimal("amount"),
		Description:     v.Text("description"),
		Date:            v.Date("date"),
		Type:            v.Text("transaction_type"),
		CategoryName:    v.Text("category"),
		ReferenceNumber: v.Text("reference_number"),
		Tags:            v.Tags("tags"),
	}
	if tx.Type == "" {
		tx.Type = inferTransactionType(tx)
	}
	if tx.Tags == nil {
		tx.Tags = []string{}
	}

	accountID, err := rc.Resolver.FindAccountByName(ctx, rc.CompanyID, tx.AccountName)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, &core.FieldError{
			Type:    core.ErrorTypeReferenceNotFound,
			Field:   "account_name",
			Message: fmt.Sprintf("Account %q not found", tx.AccountName),
		}
	case err != nil:
		return nil, fmt.Errorf("find account %q: %w", tx.AccountName, err)
	}
	tx.AccountID = accountID

	if tx.CategoryName != "" {
		categoryType := core.CategoryIncome
		if tx.Type == core.TransactionExpense {
			categoryType = core.CategoryExpense
		}
		categoryID, err := rc.Resolver.FindOrCreateCategory(ctx, rc.CompanyID, tx.CategoryName, categoryType)
		if err != nil {
			return nil, fmt.Errorf("find or create category %q: %w", tx.CategoryName, err)
		}
		tx.CategoryID = categoryID
	}

	return tx, nil
}

func inferTransactionType(tx core.Transaction) string {
	if tx.Amount.IsNegative() {
		return core.TransactionExpense
	}
	return core.TransactionIncome
}
