package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary aggregates the records imported by one upload.
type Summary struct {
	Kind        Kind           `json:"kind" yaml:"kind"`
	RecordCount int            `json:"record_count" yaml:"record_count"`
	ByType      map[string]int `json:"by_type" yaml:"by_type"`

	// Accounts
	TotalBalance *decimal.Decimal `json:"total_balance,omitempty" yaml:"total_balance,omitempty"`
	Currencies   []string         `json:"currencies,omitempty" yaml:"currencies,omitempty"`

	// Transactions
	TotalIncome  *decimal.Decimal `json:"total_income,omitempty" yaml:"total_income,omitempty"`
	TotalExpense *decimal.Decimal `json:"total_expense,omitempty" yaml:"total_expense,omitempty"`
	NetAmount    *decimal.Decimal `json:"net_amount,omitempty" yaml:"net_amount,omitempty"`
	DateRange    *DateRange       `json:"date_range,omitempty" yaml:"date_range,omitempty"`

	// Categories
	ActiveCount *int `json:"active_count,omitempty" yaml:"active_count,omitempty"`
}

// DateRange spans the earliest and latest transaction dates as YYYY-MM-DD.
type DateRange struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// NewSummary returns an empty summary for kind.
func NewSummary(kind Kind) *Summary {
	s := &Summary{Kind: kind, ByType: make(map[string]int)}
	zero := decimal.Zero
	switch kind {
	case KindAccounts:
		s.TotalBalance = &zero
	case KindTransactions:
		income, expense, net := zero, zero, zero
		s.TotalIncome, s.TotalExpense, s.NetAmount = &income, &expense, &net
	case KindCategories:
		active := 0
		s.ActiveCount = &active
	}
	return s
}

// Add folds one imported record into the summary.
func (s *Summary) Add(rec Record) {
	s.RecordCount++

	switch r := rec.(type) {
	case Account:
		s.ByType[r.AccountType]++
		total := s.TotalBalance.Add(r.Balance)
		s.TotalBalance = &total
		s.addCurrency(r.Currency)

	case Transaction:
		s.ByType[r.Type]++
		switch r.Type {
		case TransactionIncome:
			income := s.TotalIncome.Add(r.Amount.Abs())
			s.TotalIncome = &income
		case TransactionExpense:
			expense := s.TotalExpense.Add(r.Amount.Abs())
			s.TotalExpense = &expense
		}
		net := s.TotalIncome.Sub(*s.TotalExpense)
		s.NetAmount = &net
		s.addDate(r.Date.Format("2006-01-02"))

	case Category:
		s.ByType[string(r.Type)]++
		if r.IsActive {
			*s.ActiveCount++
		}
	}
}

func (s *Summary) addCurrency(c string) {
	i := sort.SearchStrings(s.Currencies, c)
	if i < len(s.Currencies) && s.Currencies[i] == c {
		return
	}
	s.Currencies = append(s.Currencies, "")
	copy(s.Currencies[i+1:], s.Currencies[i:])
	s.Currencies[i] = c
}

func (s *Summary) addDate(d string) {
	if s.DateRange == nil {
		s.DateRange = &DateRange{From: d, To: d}
		return
	}
	if d < s.DateRange.From {
		s.DateRange.From = d
	}
	if d > s.DateRange.To {
		s.DateRange.To = d
	}
}
