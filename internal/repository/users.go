package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/bank-sync/internal/models"
)

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.HomeCurrency == 0 {
		user.HomeCurrency = 980
	}
	query := r.rebind(`
		INSERT INTO users (username, email, home_currency)
		VALUES (?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.HomeCurrency).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id int64) (models.User, error) {
	query := r.rebind(`
		SELECT id, username, email, credential, home_currency
		FROM users
		WHERE id = ?`)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsersWithCredential returns every user that can be synchronized
func (r *Repository) ListUsersWithCredential(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, email, credential, home_currency
		FROM users
		WHERE credential IS NOT NULL AND credential <> ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetCredential stores the encrypted provider credential. It succeeds only once per user.
func (r *Repository) SetCredential(ctx context.Context, userID int64, encrypted string) error {
	query := r.rebind(`
		UPDATE users SET credential = ?
		WHERE id = ? AND (credential IS NULL OR credential = '')`)
	res, err := r.db.ExecContext(ctx, query, encrypted, userID)
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetUser(ctx, userID); err != nil {
		return err
	}
	return ErrCredentialAlreadySet
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var credential sql.NullString
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &credential, &user.HomeCurrency); err != nil {
		return models.User{}, err
	}
	user.Credential = credential.String
	return user, nil
}
