package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
	"github.com/vibast-solutions/ms-go-account/app/service"
	"github.com/vibast-solutions/ms-go-account/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		ClientURL: "http://localhost:5173",

		JWTAccessSecret:  "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTEmailSecret:   "email-secret",

		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		EmailTokenTTL:   time.Hour,
		ResetTokenTTL:   15 * time.Minute,

		PasswordPolicy: config.PasswordPolicy{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumber:    true,
			RequireSpecial:   true,
		},
	}
}

func testUser() *entity.User {
	return &entity.User{
		ID:              1,
		Email:           "user@example.com",
		Role:            entity.RoleUser,
		IsEmailVerified: true,
	}
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	signed, err := tokens.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tokens.VerifyAccessToken(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != 1 {
		t.Fatalf("expected user ID 1, got %d", claims.UserID)
	}
	if claims.Role != entity.RoleUser {
		t.Fatalf("expected role %q, got %q", entity.RoleUser, claims.Role)
	}
	if !claims.Verified {
		t.Fatal("expected verified claim")
	}
	if claims.Subject != "user@example.com" {
		t.Fatalf("expected subject email, got %q", claims.Subject)
	}
}

func TestTokenService_RefreshTokenRoundTrip(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	signed, err := tokens.IssueRefreshToken(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tokens.VerifyRefreshToken(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user ID 42, got %d", claims.UserID)
	}
}

func TestTokenService_EmailTokenRoundTrip(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	signed, err := tokens.IssueEmailToken(7)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tokens.VerifyEmailToken(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != 7 {
		t.Fatalf("expected user ID 7, got %d", claims.UserID)
	}
}

// Each kind signs with its own secret, so a token of one kind must never
// verify as another.
func TestTokenService_KindsAreNotInterchangeable(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	refresh, err := tokens.IssueRefreshToken(1)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := tokens.VerifyAccessToken(refresh); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh-as-access, got %v", err)
	}
	if _, err := tokens.VerifyEmailToken(refresh); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh-as-email, got %v", err)
	}

	access, err := tokens.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := tokens.VerifyRefreshToken(access); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access-as-refresh, got %v", err)
	}
}

func TestTokenService_ExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute
	tokens := service.NewTokenService(cfg)

	signed, err := tokens.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := tokens.VerifyAccessToken(signed); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenService_GarbageRejected(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	if _, err := tokens.VerifyAccessToken("not-a-token"); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := tokens.VerifyRefreshToken(""); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

// Rotation must never mint the same refresh token twice for a user, even
// within the same second.
func TestTokenService_RefreshTokensAreUnique(t *testing.T) {
	tokens := service.NewTokenService(testConfig())

	first, err := tokens.IssueRefreshToken(1)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	second, err := tokens.IssueRefreshToken(1)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct refresh tokens")
	}
}
