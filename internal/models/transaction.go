package models

// Transaction is a validated statement record as reported by the provider.
// Amount is in minor units; negative values are debits.
type Transaction struct {
	ID           string `json:"id"`
	Time         int64  `json:"time"`
	Description  string `json:"description"`
	MCC          string `json:"mcc"`
	Amount       int64  `json:"amount"`
	CurrencyCode int    `json:"currencyCode"`
}
