package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/entity"
	"github.com/vibast-solutions/ms-go-account/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenKind selects which secret and TTL a token is signed with. The three
// kinds use distinct secrets so a compromise of one cannot forge another.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	TokenKindEmail   TokenKind = "email"
)

type AccessClaims struct {
	UserID   uint64 `json:"user_id"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// SubjectClaims carries only the user id. Refresh and email-verification
// tokens assert nothing beyond identity.
type SubjectClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenService struct {
	cfg *config.Config
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

func (s *TokenService) IssueAccessToken(user *entity.User) (string, error) {
	claims := &AccessClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Verified: user.IsEmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl(TokenKindAccess))),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Email,
		},
	}
	return s.sign(TokenKindAccess, claims)
}

func (s *TokenService) IssueRefreshToken(userID uint64) (string, error) {
	claims := &SubjectClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl(TokenKindRefresh))),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			// jti keeps rotated tokens distinct even within the same second
			ID: uuid.New().String(),
		},
	}
	return s.sign(TokenKindRefresh, claims)
}

func (s *TokenService) IssueEmailToken(userID uint64) (string, error) {
	claims := &SubjectClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl(TokenKindEmail))),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return s.sign(TokenKindEmail, claims)
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(TokenKindAccess, tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (*SubjectClaims, error) {
	claims := &SubjectClaims{}
	if err := s.parse(TokenKindRefresh, tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) VerifyEmailToken(tokenString string) (*SubjectClaims, error) {
	claims := &SubjectClaims{}
	if err := s.parse(TokenKindEmail, tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) sign(kind TokenKind, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret(kind))
}

// parse rejects bad signatures, wrong algorithms and lapsed expiries
// uniformly as ErrInvalidToken.
func (s *TokenService) parse(kind TokenKind, tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret(kind), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenService) secret(kind TokenKind) []byte {
	switch kind {
	case TokenKindRefresh:
		return []byte(s.cfg.JWTRefreshSecret)
	case TokenKindEmail:
		return []byte(s.cfg.JWTEmailSecret)
	default:
		return []byte(s.cfg.JWTAccessSecret)
	}
}

func (s *TokenService) ttl(kind TokenKind) time.Duration {
	switch kind {
	case TokenKindRefresh:
		return s.cfg.RefreshTokenTTL
	case TokenKindEmail:
		return s.cfg.EmailTokenTTL
	default:
		return s.cfg.AccessTokenTTL
	}
}
