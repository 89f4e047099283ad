package entity

import (
	"database/sql"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                  uint64
	Email               string
	PasswordHash        string
	Role                string
	IsEmailVerified     bool
	ResetTokenHash      sql.NullString
	ResetTokenExpiresAt sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RefreshToken is a server-side session record. Only the SHA-256 hash of the
// raw token is ever stored; the row is deleted at redemption time so a given
// raw token can be honored at most once.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	CreatedAt time.Time
}
