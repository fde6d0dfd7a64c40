package repository

import (
	"context"
	"database/sql"

	"github.com/Dan9191/bank-sync/internal/models"
)

// LatestExpenseTimestamp returns the newest expense timestamp stored for one
// account of a user. The boolean is false when the account has no expenses.
// File-ingested expenses carry an empty account id and never move an account's cursor.
func (r *Repository) LatestExpenseTimestamp(ctx context.Context, userID int64, accountID string) (int64, bool, error) {
	var latest sql.NullInt64
	query := r.rebind(`SELECT MAX(occurred_at) FROM expenses WHERE user_id = ? AND account_id = ?`)
	if err := r.db.QueryRowContext(ctx, query, userID, accountID).Scan(&latest); err != nil {
		return 0, false, &StorageError{Op: "query latest expense", Err: err}
	}
	return latest.Int64, latest.Valid, nil
}

// InsertExpenses stores a batch of expenses in one transaction and returns how
// many were new. Rows colliding with an existing (user, dedup key) are skipped.
func (r *Repository) InsertExpenses(ctx context.Context, expenses []models.Expense) (int, error) {
	if len(expenses) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin expense batch", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO expenses (user_id, account_id, amount, cash_type, occurred_at, description, category, provider_id, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, dedup_key) DO NOTHING`))
	if err != nil {
		return 0, &StorageError{Op: "prepare expense insert", Err: err}
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range expenses {
		res, err := stmt.ExecContext(ctx,
			e.UserID, e.AccountID, e.Amount.StringFixed(2), e.CashType, e.Timestamp,
			e.Description, e.Category, e.ProviderID, e.DedupKey)
		if err != nil {
			return 0, &StorageError{Op: "insert expense", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &StorageError{Op: "insert expense", Err: err}
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit expense batch", Err: err}
	}
	return inserted, nil
}

// ExpensesInRange returns a user's expenses with from <= timestamp <= to, oldest first
func (r *Repository) ExpensesInRange(ctx context.Context, userID, from, to int64) ([]models.Expense, error) {
	query := r.rebind(`
		SELECT id, user_id, account_id, amount, cash_type, occurred_at, description, category, provider_id, dedup_key
		FROM expenses
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at, id`)
	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, &StorageError{Op: "query expenses", Err: err}
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.AccountID, &e.Amount, &e.CashType, &e.Timestamp,
			&e.Description, &e.Category, &e.ProviderID, &e.DedupKey); err != nil {
			return nil, &StorageError{Op: "scan expense", Err: err}
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query expenses", Err: err}
	}
	return expenses, nil
}

// CountExpenses returns the number of stored expenses of a user
func (r *Repository) CountExpenses(ctx context.Context, userID int64) (int, error) {
	var n int
	query := r.rebind(`SELECT COUNT(*) FROM expenses WHERE user_id = ?`)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count expenses", Err: err}
	}
	return n, nil
}
