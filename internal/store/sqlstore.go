package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nanobanana/supermarket/internal/models"
)

// SQLStore is the MySQL-backed account store. The charge uses a conditional
// UPDATE so the credit floor is enforced in the database rather than in a
// racy read-modify-write.
type SQLStore struct {
	db             *sql.DB
	initialCredits int
}

func NewSQLStore(db *sql.DB, initialCredits int) *SQLStore {
	return &SQLStore{db: db, initialCredits: initialCredits}
}

func (s *SQLStore) Register(ctx context.Context, phone, password string) (*models.Account, error) {
	if err := validateCredentials(phone, password); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE phone = ?`, phone).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists > 0 {
		return nil, ErrDuplicate
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO accounts (phone, password, remaining_uses)
VALUES (?, ?, ?)`, phone, password, s.initialCredits); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tallies SET total_users = total_users + 1 WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("bump total users: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register: %w", err)
	}

	return s.Get(ctx, phone)
}

func (s *SQLStore) Authenticate(ctx context.Context, phone, password string) (*models.Account, error) {
	if !ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}
	account, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	if account.Password != password {
		return nil, ErrWrongPassword
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = NOW() WHERE phone = ?`, phone); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	return s.Get(ctx, phone)
}

func (s *SQLStore) Get(ctx context.Context, phone string) (*models.Account, error) {
	const query = `
SELECT phone, password, remaining_uses, images_generated, created_at, last_login_at
FROM accounts WHERE phone = ?`
	row := s.db.QueryRowContext(ctx, query, phone)
	var a models.Account
	var lastLogin sql.NullTime
	if err := row.Scan(&a.Phone, &a.Password, &a.RemainingUses, &a.ImagesGenerated, &a.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if lastLogin.Valid {
		a.LastLoginAt = &lastLogin.Time
	}
	return &a, nil
}

func (s *SQLStore) ChargeGeneration(ctx context.Context, phone string) (*models.Usage, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE accounts SET remaining_uses = remaining_uses - 1, images_generated = images_generated + 1
WHERE phone = ? AND remaining_uses > 0`, phone)
	if err != nil {
		return nil, fmt.Errorf("charge generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("charge rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, phone); err != nil {
			return nil, err
		}
		return nil, ErrExhausted
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE tallies SET total_images = total_images + 1 WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("bump total images: %w", err)
	}

	account, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	return &models.Usage{
		RemainingUses:   account.RemainingUses,
		ImagesGenerated: account.ImagesGenerated,
	}, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]models.Account, models.Stats, error) {
	const query = `
SELECT phone, password, remaining_uses, images_generated, created_at, last_login_at
FROM accounts ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, models.Stats{}, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var lastLogin sql.NullTime
		if err := rows.Scan(&a.Phone, &a.Password, &a.RemainingUses, &a.ImagesGenerated, &a.CreatedAt, &lastLogin); err != nil {
			return nil, models.Stats{}, fmt.Errorf("scan account: %w", err)
		}
		if lastLogin.Valid {
			a.LastLoginAt = &lastLogin.Time
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Stats{}, err
	}

	var stats models.Stats
	row := s.db.QueryRowContext(ctx, `SELECT total_users, total_images FROM tallies WHERE id = 1`)
	if err := row.Scan(&stats.TotalUsers, &stats.TotalImages); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, models.Stats{}, fmt.Errorf("scan tallies: %w", err)
	}
	return accounts, stats, nil
}

func (s *SQLStore) ResetUses(ctx context.Context, phone string, uses int) error {
	if uses < 0 {
		return fmt.Errorf("uses must not be negative, got %d", uses)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET remaining_uses = ? WHERE phone = ?`, uses, phone)
	if err != nil {
		return fmt.Errorf("reset uses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, phone); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
