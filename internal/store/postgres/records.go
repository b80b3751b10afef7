package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

func (s *Store) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check company %s: %w", companyID, err)
	}
	return exists, nil
}

// Create inserts one record. Each insert commits on its own.
func (s *Store) Create(ctx context.Context, companyID string, rec core.Record) (string, error) {
	id := uuid.NewString()

	var err error
	switch r := rec.(type) {
	case core.Account:
		err = s.createAccount(ctx, id, companyID, r)
	case core.Category:
		err = s.createCategory(ctx, id, companyID, r)
	case core.Transaction:
		err = s.createTransaction(ctx, id, companyID, r)
	default:
		return "", fmt.Errorf("%w: %T", core.ErrUnknownKind, rec)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) createAccount(ctx context.Context, id, companyID string, a core.Account) error {
	balance, err := toPgNumeric(a.Balance)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts
			(id, company_id, name, account_type, balance, account_number, bank_name, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, companyID, a.Name, a.AccountType, balance,
		toPgText(a.AccountNumber), toPgText(a.BankName), a.Currency, a.IsActive,
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("account %q", a.Name))
	}
	return nil
}

func (s *Store) createCategory(ctx context.Context, id, companyID string, c core.Category) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, company_id, name, category_type, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, companyID, c.Name, string(c.Type), toPgText(c.Description), c.IsActive,
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("category %q", c.Name))
	}
	return nil
}

func (s *Store) createTransaction(ctx context.Context, id, companyID string, t core.Transaction) error {
	amount, err := toPgNumeric(t.Amount)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO transactions
			(id, company_id, account_id, category_id, amount, description,
			 transaction_date, transaction_type, reference_number, tags)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10)`,
		id, companyID, t.AccountID, t.CategoryID, amount, t.Description,
		pgtype.Date{Time: t.Date, Valid: true}, t.Type, toPgText(t.ReferenceNumber), t.Tags,
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("transaction %q", t.Description))
	}
	return nil
}

func (s *Store) FindAccountByName(ctx context.Context, companyID, name string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text FROM accounts WHERE company_id = $1 AND name = $2`,
		companyID, name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find account: %w", err)
	}
	return id, nil
}

// FindOrCreateCategory inserts the category unless one with the same name
// exists, then reads back whichever row won.
func (s *Store) FindOrCreateCategory(ctx context.Context, companyID, name string, categoryType core.CategoryType) (string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, company_id, name, category_type, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (company_id, name) DO NOTHING`,
		uuid.NewString(), companyID, name, string(categoryType),
	)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`SELECT id::text FROM categories WHERE company_id = $1 AND name = $2`,
		companyID, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find category: %w", err)
	}
	return id, nil
}
