package models

// Account is a provider account snapshot owned by a user, keyed by (UserID, AccountID)
type Account struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	AccountID    string  `json:"account_id"`
	MaskedPan    string  `json:"masked_pan"`
	IBAN         string  `json:"iban"`
	CurrencyCode int     `json:"currency_code"`
	Balance      float64 `json:"balance"`
	UpdatedAt    int64   `json:"updated_at"`
}
