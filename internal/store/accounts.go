package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"medlocator/m/domain"
)

const accountColumns = `id, username, email, password, role, is_approved, created_at`

// CreateAccount inserts a and returns its id. Username and email must be unique.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) (int64, error) {
	id, err := s.insertReturningID(ctx,
		`INSERT INTO accounts (username, email, password, role, is_approved) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		a.Username, strings.ToLower(a.Email), a.PasswordHash, string(a.Role), a.IsApproved)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

// AccountByID loads one account.
func (s *Store) AccountByID(ctx context.Context, id int64) (domain.Account, error) {
	var a domain.Account
	err := s.get(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return a, notFound(err, "account")
}

// AccountByLogin loads an account by username or, failing that, by email.
func (s *Store) AccountByLogin(ctx context.Context, login string) (domain.Account, error) {
	var a domain.Account
	err := s.get(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE username = ? OR email = ? ORDER BY id LIMIT 1`,
		login, strings.ToLower(login))
	return a, notFound(err, "account")
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	n, err := s.exec(ctx, `UPDATE accounts SET password = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetApproved marks an account approved.
func (s *Store) SetApproved(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `UPDATE accounts SET is_approved = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("approve account: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account; its pharmacy and listings cascade.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingPharmacy is a pharmacy-role account awaiting approval.
type PendingPharmacy struct {
	AccountID    int64   `db:"account_id" json:"account_id"`
	Username     string  `db:"username" json:"username"`
	Email        string  `db:"email" json:"email"`
	PharmacyName *string `db:"pharmacy_name" json:"pharmacy_name"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

// PendingPharmacies lists unapproved pharmacy accounts, oldest first.
func (s *Store) PendingPharmacies(ctx context.Context) ([]PendingPharmacy, error) {
	rows := []PendingPharmacy{}
	err := s.selectAll(ctx, &rows, `SELECT a.id AS account_id, a.username, a.email, p.name AS pharmacy_name, a.created_at
		FROM accounts a
		LEFT JOIN pharmacies p ON p.owner_id = a.id
		WHERE a.role = ? AND a.is_approved = ?
		ORDER BY a.id`, string(domain.RolePharmacy), false)
	if err != nil {
		return nil, fmt.Errorf("list pending pharmacies: %w", err)
	}
	return rows, nil
}

func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("load %s: %w", what, err)
}
