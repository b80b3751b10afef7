package kinds

import (
	"context"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// AccountTypes lists the accepted account_type values.
var AccountTypes = []string{
	"checking", "savings", "credit_card", "loan", "investment",
	"cash", "paypal", "stripe", "other",
}

func init() {
	core.Register(core.KindDefinition{
		Kind:  core.KindAccounts,
		Label: "Accounts",
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Type: core.FieldText, Required: true},
			{Name: "account_type", Type: core.FieldChoice, Required: true, Choices: AccountTypes},
			{Name: "balance", Type: core.FieldDecimal, Required: true},
			{Name: "account_number", Type: core.FieldText},
			{Name: "bank_name", Type: core.FieldText},
			{Name: "currency", Type: core.FieldCurrency, Default: "USD"},
			{Name: "is_active", Type: core.FieldBool, Default: "true"},
		},
		SampleRows: [][]string{
			{"Main Checking", "checking", "5000.00", "1234567890", "Chase Bank", "USD", "true"},
			{"Savings Account", "savings", "15000.00", "0987654321", "Wells Fargo", "USD", "true"},
			{"Business Credit Card", "credit_card", "-2500.00", "5555444433332222", "American Express", "USD", "true"},
		},
		Build: buildAccount,
	})
}

func buildAccount(_ context.Context, rc core.RowContext) (core.Record, error) {
	v := rc.Values
	return core.Account{
		Name:          v.Text("name"),
		AccountType:   v.Text("account_type"),
		Balance:       v.Decimal("balance"),
		AccountNumber: v.Text("account_number"),
		BankName:      v.Text("bank_name"),
		Currency:      v.Text("currency"),
		IsActive:      v.Bool("is_active"),
	}, nil
}
