package models

// ClientInfo is the provider's client-info response
type ClientInfo struct {
	ClientID string            `json:"clientId"`
	Name     string            `json:"name"`
	Accounts []ProviderAccount `json:"accounts"`
}

// ProviderAccount is an account entry of ClientInfo. Balance is in minor units.
type ProviderAccount struct {
	ID           string   `json:"id"`
	MaskedPan    []string `json:"maskedPan"`
	IBAN         string   `json:"iban"`
	CurrencyCode int      `json:"currencyCode"`
	Balance      int64    `json:"balance"`
	Type         string   `json:"type"`
}
