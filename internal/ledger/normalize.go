package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/shopspring/decimal"
)

// Normalize maps provider transactions to ledger expenses for user. Only debits
// in the user's home currency are kept: the ledger tracks spending, refunds and
// foreign-currency operations are dropped.
func Normalize(txs []models.Transaction, user models.User, accountID, cashType string) []models.Expense {
	out := make([]models.Expense, 0, len(txs))
	for _, tx := range txs {
		if tx.Amount >= 0 {
			continue
		}
		if tx.CurrencyCode != user.HomeCurrency {
			continue
		}
		amount := decimal.New(-tx.Amount, -2)
		out = append(out, models.Expense{
			UserID:      user.ID,
			AccountID:   accountID,
			Amount:      amount,
			CashType:    cashType,
			Timestamp:   tx.Time,
			Description: tx.Description,
			Category:    Category(tx.MCC),
			ProviderID:  tx.ID,
			DedupKey:    DedupKey(tx.Time, amount, tx.Description),
		})
	}
	return out
}

// DedupKey identifies an expense within a user's ledger. It uses the natural
// key so that the same transaction imported from the API and from a statement
// file collapses into one row.
func DedupKey(timestamp int64, amount decimal.Decimal, description string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(amount.StringFixed(2)))
	h.Write([]byte{'|'})
	h.Write([]byte(description))
	return hex.EncodeToString(h.Sum(nil))
}
