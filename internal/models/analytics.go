package models

import "github.com/shopspring/decimal"

// CategoryTotal is the summed spending of one category within a time range
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// CategorySummary is the report handed to presentation consumers
type CategorySummary struct {
	From       int64           `json:"from"`
	To         int64           `json:"to"`
	Categories []CategoryTotal `json:"categories"`
	Total      decimal.Decimal `json:"total"`
}

// ByCategory returns the summary as a category label to amount mapping
func (s CategorySummary) ByCategory() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.Categories))
	for _, c := range s.Categories {
		out[c.Category] = c.Total
	}
	return out
}
