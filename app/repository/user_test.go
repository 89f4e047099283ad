package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
	"github.com/vibast-solutions/ms-go-account/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertUserQuery       = `(?s)INSERT INTO users \(email, password_hash, role, is_email_verified, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	findByEmailQuery      = `(?s)SELECT id, email, password_hash, role, is_email_verified,\s+reset_token_hash, reset_token_expires_at, created_at, updated_at\s+FROM users WHERE email = \?`
	findByIDQuery         = `(?s)SELECT id, email, password_hash, role, is_email_verified,\s+reset_token_hash, reset_token_expires_at, created_at, updated_at\s+FROM users WHERE id = \?`
	findByResetTokenQuery = `(?s)SELECT id, email, password_hash, role, is_email_verified,\s+reset_token_hash, reset_token_expires_at, created_at, updated_at\s+FROM users WHERE reset_token_hash = \? AND reset_token_expires_at > \?`
	updatePasswordQuery   = `(?s)UPDATE users SET\s+password_hash = \?,\s+reset_token_hash = NULL,\s+reset_token_expires_at = NULL,\s+updated_at = \?\s+WHERE id = \?`
	setResetTokenQuery    = `(?s)UPDATE users SET\s+reset_token_hash = \?,\s+reset_token_expires_at = \?,\s+updated_at = \?\s+WHERE id = \?`
	clearResetTokenQuery  = `(?s)UPDATE users SET\s+reset_token_hash = NULL,\s+reset_token_expires_at = NULL,\s+updated_at = \?\s+WHERE id = \?`
	setEmailVerifiedQuery = `(?s)UPDATE users SET\s+is_email_verified = 1,\s+updated_at = \?\s+WHERE id = \?`
	deleteUserQuery       = `(?s)DELETE FROM users WHERE id = \?`
)

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"role",
	"is_email_verified",
	"reset_token_hash",
	"reset_token_expires_at",
	"created_at",
	"updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).AddRow(
		uint64(1),
		"user@example.com",
		"hash",
		entity.RoleUser,
		false,
		sql.NullString{Valid: false},
		sql.NullTime{Valid: false},
		now,
		now,
	)
}

func TestUserRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()
	user := &entity.User{
		Email:        "user@example.com",
		PasswordHash: "hash",
		Role:         entity.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(insertUserQuery).
		WithArgs(
			user.Email,
			user.PasswordHash,
			user.Role,
			user.IsEmailVerified,
			user.CreatedAt,
			user.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("expected ID 1, got %d", user.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(userRow(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user == nil || user.ID != 1 {
		t.Fatalf("expected user ID 1, got %+v", user)
	}
	if user.Role != entity.RoleUser {
		t.Fatalf("expected role %q, got %q", entity.RoleUser, user.Role)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(findByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("expected nil error for missing user, got %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(findByIDQuery).
		WithArgs(uint64(1)).
		WillReturnRows(userRow(time.Now()))

	user, err := repo.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user == nil || user.Email != "user@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByValidResetToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(findByResetTokenQuery).
		WithArgs("tokenhash", now).
		WillReturnRows(userRow(now))

	user, err := repo.FindByValidResetToken(context.Background(), "tokenhash", now)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user == nil || user.ID != 1 {
		t.Fatalf("expected user ID 1, got %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()

	mock.ExpectExec(updatePasswordQuery).
		WithArgs("newhash", now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePassword(context.Background(), 1, "newhash", now); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetAndClearResetToken(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()
	expiresAt := now.Add(15 * time.Minute)

	mock.ExpectExec(setResetTokenQuery).
		WithArgs("tokenhash", expiresAt, now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clearResetTokenQuery).
		WithArgs(now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetResetToken(context.Background(), 1, "tokenhash", expiresAt, now); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := repo.ClearResetToken(context.Background(), 1, now); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetEmailVerified(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)
	now := time.Now()

	mock.ExpectExec(setEmailVerifiedQuery).
		WithArgs(now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetEmailVerified(context.Background(), 1, now); err != nil {
		t.Fatalf("set verified failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewUserRepository(db)

	mock.ExpectExec(deleteUserQuery).
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
