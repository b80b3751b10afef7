package kinds

import (
	"context"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// CategoryTypes lists the accepted category_type values.
var CategoryTypes = []string{string(core.CategoryIncome), string(core.CategoryExpense)}

func init() {
	core.Register(core.KindDefinition{
		Kind:  core.KindCategories,
		Label: "Categories",
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Type: core.FieldText, Required: true},
			{Name: "category_type", Type: core.FieldChoice, Required: true, Choices: CategoryTypes},
			{Name: "description", Type: core.FieldText},
			{Name: "is_active", Type: core.FieldBool, Default: "true"},
		},
		SampleRows: [][]string{
			{"Sales Revenue", "income", "Revenue from product sales", "true"},
			{"Office Supplies", "expense", "Office supplies and equipment", "true"},
			{"Marketing", "expense", "Marketing and advertising expenses", "true"},
		},
		Build: buildCategory,
	})
}

func buildCategory(_ context.Context, rc core.RowContext) (core.Record, error) {
	v := rc.Values
	return core.Category{
		Name:        v.Text("name"),
		Type:        core.CategoryType(v.Text("category_type")),
		Description: v.Text("description"),
		IsActive:    v.Bool("is_active"),
	}, nil
}
