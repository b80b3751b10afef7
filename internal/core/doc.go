// Package core provides the business logic for bulk CSV imports.
//
// The package holds all domain logic independent of any transport. It is
// used by the HTTP server, the operator CLI and tests without modification.
//
// # Kinds
//
// Each importable record type registers a [KindDefinition] at init time via
// [Register]. The definition lists the CSV columns and a builder that maps a
// validated row to a [Record]:
//
//	core.Register(core.KindDefinition{
//	    Kind: core.KindCategories,
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "name", Type: core.FieldText, Required: true},
//	        {Name: "category_type", Type: core.FieldChoice, Required: true, Choices: []string{"income", "expense"}},
//	    },
//	    Build: buildCategory,
//	})
//
// # Import Pipeline
//
// [Importer.Import] creates an [UploadJob] and then:
//
//  1. Rejects the whole file when it is too large, unreadable, has a bad
//     header or too many rows ([WholesaleError]).
//  2. Processes rows in order: required fields, conversions, cross-references,
//     persistence. The first failure of a row becomes its [RowError].
//  3. Records each row outcome in the [JobStore] as it happens and finishes
//     the job as completed, partial or failed.
//
// [Importer.Retry] re-drives a job's stored Row Errors with the row data
// captured at import time.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - DB001-DB007: store errors (duplicates, constraints, connections)
//   - VAL001-VAL004: row validation errors
//   - IMP001-IMP004: wholesale rejections
//   - UPL001-UPL007: upload lifecycle errors
package core
