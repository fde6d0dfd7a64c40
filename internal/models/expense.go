package models

import "github.com/shopspring/decimal"

// Expense is one spending entry of the ledger. Amount is always positive.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	AccountID   string          `json:"account_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CashType    string          `json:"cash_type"`
	Timestamp   int64           `json:"timestamp"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ProviderID  string          `json:"provider_id,omitempty"`
	DedupKey    string          `json:"-"`
}
