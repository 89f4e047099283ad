package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
)

const userColumns = `id, email, password_hash, role, is_email_verified,
		       reset_token_hash, reset_token_expires_at, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) WithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, is_email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsEmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE email = ?
	`
	return r.findOne(ctx, query, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = ?
	`
	return r.findOne(ctx, query, id)
}

// FindByValidResetToken matches only rows whose reset token has strictly not
// expired yet; a lapsed token is indistinguishable from a wrong one.
func (r *UserRepository) FindByValidResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE reset_token_hash = ? AND reset_token_expires_at > ?
	`
	return r.findOne(ctx, query, tokenHash, now)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, passwordHash string, now time.Time) error {
	query := `
		UPDATE users SET
			password_hash = ?,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, passwordHash, now, userID)
	return err
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID uint64, tokenHash string, expiresAt, now time.Time) error {
	query := `
		UPDATE users SET
			reset_token_hash = ?,
			reset_token_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, tokenHash, expiresAt, now, userID)
	return err
}

func (r *UserRepository) ClearResetToken(ctx context.Context, userID uint64, now time.Time) error {
	query := `
		UPDATE users SET
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, now, userID)
	return err
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, userID uint64, now time.Time) error {
	query := `
		UPDATE users SET
			is_email_verified = 1,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, now, userID)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, userID uint64) error {
	query := `DELETE FROM users WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	user := &entity.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsEmailVerified,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
