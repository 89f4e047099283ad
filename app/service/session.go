package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/dto"
	"github.com/vibast-solutions/ms-go-account/app/entity"
	"github.com/vibast-solutions/ms-go-account/app/repository"
	"github.com/vibast-solutions/ms-go-account/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotVerified = errors.New("email not verified")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrPasswordMismatch   = errors.New("password is incorrect")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset token")
	ErrEmailDelivery      = errors.New("failed to send email")
)

// SessionService owns the authentication session lifecycle: issuance,
// rotation and invalidation of access/refresh token pairs reconciled against
// the refresh-token store.
type SessionService interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (*dto.LoginResult, error)
	Logout(ctx context.Context, rawRefreshToken string) error
	Refresh(ctx context.Context, rawRefreshToken string) (*dto.LoginResult, error)
	Me(ctx context.Context, userID uint64) (*entity.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerificationEmail(ctx context.Context, userID uint64) error
	ExportUserData(ctx context.Context, userID uint64) (*dto.ExportResult, error)
	DeleteAccount(ctx context.Context, userID uint64, password string) error
	VerifyAccessToken(tokenString string) (*AccessClaims, error)
}

type AsyncRunner func(task func())

type SessionServiceOption func(*sessionService)

type sessionService struct {
	db          *sql.DB
	userRepo    *repository.UserRepository
	refreshRepo *repository.RefreshTokenRepository
	tokens      *TokenService
	mailer      Mailer
	cfg         *config.Config
	asyncRunner AsyncRunner
	dummyHash   []byte
}

func NewSessionService(
	db *sql.DB,
	userRepo *repository.UserRepository,
	refreshRepo *repository.RefreshTokenRepository,
	tokens *TokenService,
	mailer Mailer,
	cfg *config.Config,
	opts ...SessionServiceOption,
) SessionService {
	// Compared against when login targets a nonexistent email, so both
	// branches pay the same bcrypt cost.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to generate dummy password hash")
	}

	svc := &sessionService{
		db:          db,
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		mailer:      mailer,
		cfg:         cfg,
		asyncRunner: func(task func()) {
			go task()
		},
		dummyHash: dummyHash,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) SessionServiceOption {
	return func(s *sessionService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func (s *sessionService) Register(ctx context.Context, email, password string) error {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	if err := s.cfg.PasswordPolicy.Validate(password); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	user := &entity.User{
		Email:           email,
		PasswordHash:    string(hashedPassword),
		Role:            entity.RoleUser,
		IsEmailVerified: false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}

	// Best effort: a failed delivery does not roll back the account, the
	// user can request another verification email later.
	userID := user.ID
	userEmail := user.Email
	s.asyncRunner(func() {
		if err := s.sendVerificationEmail(userID, userEmail); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to send verification email")
		}
	})

	return nil
}

func (s *sessionService) Login(ctx context.Context, email, password string) (*dto.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	// Compare against a dummy hash when the user does not exist so wrong
	// email and wrong password are indistinguishable, including timing.
	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if user == nil || cmpErr != nil {
		return nil, ErrInvalidCredentials
	}

	if s.cfg.LoginRequireVerified && !user.IsEmailVerified {
		return nil, ErrAccountNotVerified
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, s.refreshRepo, user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout is best-effort: a missing or already-redeemed token is not an error.
func (s *sessionService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	return s.refreshRepo.DeleteByTokenHashOnly(ctx, hashToken(rawRefreshToken))
}

func (s *sessionService) Refresh(ctx context.Context, rawRefreshToken string) (*dto.LoginResult, error) {
	// Signature and expiry first: cheap, and a forged token never touches
	// the store.
	claims, err := s.tokens.VerifyRefreshToken(rawRefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txRefreshRepo := s.refreshRepo.WithTx(tx)

	// Conditional delete is the serialization point: of two concurrent
	// redemptions of the same raw token, only one observes an affected row.
	// Matching on user_id too guards against a store/token mismatch.
	rowsDeleted, err := txRefreshRepo.DeleteByTokenHash(ctx, hashToken(rawRefreshToken), claims.UserID)
	if err != nil {
		return nil, err
	}
	if rowsDeleted == 0 {
		return nil, ErrInvalidToken
	}

	// Re-read the user: role or verification may have changed since the
	// redeemed token was issued.
	txUserRepo := s.userRepo.WithTx(tx)
	user, err := txUserRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, txRefreshRepo, user)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *sessionService) Me(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *sessionService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		// The controller answers with the same generic message either way.
		return nil
	}

	rawToken, err := generateResetToken()
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.userRepo.SetResetToken(ctx, user.ID, hashToken(rawToken), now.Add(s.cfg.ResetTokenTTL), now); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.cfg.ClientURL, rawToken)
	if err := s.mailer.Send(user.Email, "Password Reset Request", resetEmailBody(resetURL)); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to send password reset email")

		// Compensating update, not a transaction: without the email the
		// user could never complete the reset, so clear the token.
		if clearErr := s.userRepo.ClearResetToken(ctx, user.ID, time.Now()); clearErr != nil {
			logrus.WithError(clearErr).WithField("user_id", user.ID).Error("Failed to roll back reset token")
		}
		return ErrEmailDelivery
	}

	return nil
}

func (s *sessionService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.userRepo.FindByValidResetToken(ctx, hashToken(rawToken), time.Now())
	if err != nil {
		return err
	}
	if user == nil {
		// Wrong token and expired token collapse to one answer.
		return ErrInvalidResetToken
	}

	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashedPassword), time.Now()); err != nil {
		return err
	}

	// A reset treats every prior session as suspect: purge them all so each
	// device has to log in again.
	return s.refreshRepo.DeleteByUserID(ctx, user.ID)
}

func (s *sessionService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.VerifyEmailToken(token)
	if err != nil {
		return ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	return s.userRepo.SetEmailVerified(ctx, user.ID, time.Now())
}

func (s *sessionService) ResendVerificationEmail(ctx context.Context, userID uint64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	if err := s.sendVerificationEmail(user.ID, user.Email); err != nil {
		return ErrEmailDelivery
	}
	return nil
}

func (s *sessionService) ExportUserData(ctx context.Context, userID uint64) (*dto.ExportResult, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	sessions, err := s.refreshRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.ExportResult{
		User:           user,
		ActiveSessions: sessions,
		ExportDate:     time.Now().UTC(),
	}, nil
}

func (s *sessionService) DeleteAccount(ctx context.Context, userID uint64, password string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// A destructive action re-proves the password even on a valid session.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}

	// Tokens first, then the user row (foreign key).
	if err := s.refreshRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, user.ID)
}

func (s *sessionService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	return s.tokens.VerifyAccessToken(tokenString)
}

func (s *sessionService) issueTokenPair(ctx context.Context, repo *repository.RefreshTokenRepository, user *entity.User) (string, string, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return "", "", err
	}

	record := &entity.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, record); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *sessionService) sendVerificationEmail(userID uint64, email string) error {
	token, err := s.tokens.IssueEmailToken(userID)
	if err != nil {
		return err
	}
	verificationURL := fmt.Sprintf("%s/verify-email/%s", s.cfg.ClientURL, token)
	return s.mailer.Send(email, "Email Verification", verificationEmailBody(verificationURL))
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
