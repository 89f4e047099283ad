package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
)

type RefreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) WithTx(tx *sql.Tx) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: tx}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, created_at)
		VALUES (?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// DeleteByTokenHash removes a stored token and reports how many rows went
// away. Redemption relies on the row count: when two concurrent refresh calls
// present the same raw token, exactly one delete observes an affected row.
func (r *RefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string, userID uint64) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE token_hash = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, tokenHash, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByTokenHashOnly is the logout path: the caller may not know the
// owning user and a missing row is not an error.
func (r *RefreshTokenRepository) DeleteByTokenHashOnly(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = ?`
	_, err := r.db.ExecContext(ctx, query, tokenHash)
	return err
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID uint64) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = ?`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *RefreshTokenRepository) CountByUserID(ctx context.Context, userID uint64) (int64, error) {
	query := `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteCreatedBefore purges rows older than the refresh TTL; their signed
// tokens could no longer verify anyway.
func (r *RefreshTokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE created_at < ?`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
