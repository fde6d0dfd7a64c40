package repository

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-sync/internal/models"
)

// UpsertAccounts creates or fully overwrites the given accounts of a user in
// one transaction and returns how many rows were written.
func (r *Repository) UpsertAccounts(ctx context.Context, userID int64, accounts []models.Account) (int, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin account batch", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO accounts (user_id, account_id, masked_pan, iban, currency_code, balance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, account_id) DO UPDATE SET
			masked_pan = excluded.masked_pan,
			iban = excluded.iban,
			currency_code = excluded.currency_code,
			balance = excluded.balance,
			updated_at = excluded.updated_at`))
	if err != nil {
		return 0, &StorageError{Op: "prepare account upsert", Err: err}
	}
	defer stmt.Close()

	for _, a := range accounts {
		if _, err := stmt.ExecContext(ctx, userID, a.AccountID, a.MaskedPan, a.IBAN, a.CurrencyCode, a.Balance, a.UpdatedAt); err != nil {
			return 0, &StorageError{Op: fmt.Sprintf("upsert account %s", a.AccountID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit account batch", Err: err}
	}
	return len(accounts), nil
}

// ListAccounts returns the reconciled accounts of a user
func (r *Repository) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	query := r.rebind(`
		SELECT id, user_id, account_id, masked_pan, iban, currency_code, balance, updated_at
		FROM accounts
		WHERE user_id = ?
		ORDER BY id`)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, &StorageError{Op: "query accounts", Err: err}
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.MaskedPan, &a.IBAN, &a.CurrencyCode, &a.Balance, &a.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scan account", Err: err}
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query accounts", Err: err}
	}
	return accounts, nil
}
