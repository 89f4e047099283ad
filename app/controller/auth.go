package controller

import (
	"errors"
	"net/http"

	dto "github.com/vibast-solutions/ms-go-account/app/dto/http"
	"github.com/vibast-solutions/ms-go-account/app/entity"
	"github.com/vibast-solutions/ms-go-account/app/middleware"
	"github.com/vibast-solutions/ms-go-account/app/service"
	"github.com/vibast-solutions/ms-go-account/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"

	// The refresh cookie only ever travels to the auth endpoints.
	refreshCookiePath = "/auth"
)

type AuthController struct {
	sessions service.SessionService
	cfg      *config.Config
}

func NewAuthController(sessions service.SessionService, cfg *config.Config) *AuthController {
	return &AuthController{sessions: sessions, cfg: cfg}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req dto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	err := c.sessions.Register(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			logrus.WithField("email", req.Email).Warn("Register failed: email already registered")
			return fail(ctx, http.StatusConflict, "An account with this email already exists")
		}
		if errors.Is(err, service.ErrWeakPassword) {
			return badRequest(ctx, err.Error(), nil)
		}
		return c.internal(ctx, err, "Register failed")
	}

	return ctx.JSON(http.StatusCreated, dto.Envelope{
		Success: true,
		Message: "Registration successful. Please check your email to verify your account.",
	})
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req dto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	result, err := c.sessions.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// One message for wrong email and wrong password alike.
			logrus.WithFields(requestFields(ctx)).Warn("Login failed: invalid credentials")
			return fail(ctx, http.StatusUnauthorized, "Invalid email or password")
		}
		if errors.Is(err, service.ErrAccountNotVerified) {
			logrus.WithFields(requestFields(ctx)).Warn("Login failed: email not verified")
			return fail(ctx, http.StatusForbidden, "Please verify your email before logging in")
		}
		return c.internal(ctx, err, "Login failed")
	}

	c.setAuthCookies(ctx, result.AccessToken, result.RefreshToken)

	logrus.WithField("user_id", result.User.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, dto.UserResponse{
		Success: true,
		User:    publicUser(result.User),
	})
}

func (c *AuthController) Logout(ctx echo.Context) error {
	if cookie, err := ctx.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		if err := c.sessions.Logout(ctx.Request().Context(), cookie.Value); err != nil {
			logrus.WithError(err).Warn("Logout: failed to delete refresh token")
		}
	}

	c.clearAuthCookies(ctx)
	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Logged out successfully",
	})
}

func (c *AuthController) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		return fail(ctx, http.StatusUnauthorized, "Refresh token required")
	}

	result, err := c.sessions.Refresh(ctx.Request().Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.WithFields(requestFields(ctx)).Warn("Refresh failed: invalid refresh token")
			return fail(ctx, http.StatusUnauthorized, "Invalid refresh token")
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "User not found")
		}
		return c.internal(ctx, err, "Refresh failed")
	}

	c.setAuthCookies(ctx, result.AccessToken, result.RefreshToken)

	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Token refreshed successfully",
	})
}

func (c *AuthController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return fail(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	user, err := c.sessions.Me(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "User not found")
		}
		return c.internal(ctx, err, "Me failed")
	}

	return ctx.JSON(http.StatusOK, dto.UserResponse{
		Success: true,
		User:    publicUser(user),
	})
}

func (c *AuthController) VerifyEmail(ctx echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	err := c.sessions.VerifyEmail(ctx.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return badRequest(ctx, "Invalid or expired verification token", nil)
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "User not found")
		}
		if errors.Is(err, service.ErrAlreadyVerified) {
			return badRequest(ctx, "Email already verified", nil)
		}
		return c.internal(ctx, err, "VerifyEmail failed")
	}

	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Email verified successfully. You can now login.",
	})
}

func (c *AuthController) ResendVerificationEmail(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return fail(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	err := c.sessions.ResendVerificationEmail(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "No account found with this email")
		}
		if errors.Is(err, service.ErrAlreadyVerified) {
			return badRequest(ctx, "Email already verified", nil)
		}
		if errors.Is(err, service.ErrEmailDelivery) {
			logrus.WithError(err).WithFields(requestFields(ctx)).Error("Verification email delivery failed")
			return fail(ctx, http.StatusInternalServerError, "Failed to send verification email. Please try again later.")
		}
		return c.internal(ctx, err, "ResendVerificationEmail failed")
	}

	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Verification email sent successfully. Please check your inbox.",
	})
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	err := c.sessions.ForgotPassword(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrEmailDelivery) {
			// The one path where delivery failure surfaces: without the
			// email the reset can never complete.
			logrus.WithError(err).WithFields(requestFields(ctx)).Error("Password reset email delivery failed")
			return fail(ctx, http.StatusInternalServerError, "Failed to send password reset email. Please try again later.")
		}
		return c.internal(ctx, err, "ForgotPassword failed")
	}

	// Same answer whether or not the account exists.
	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "If an account exists with this email, a password reset link has been sent.",
	})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	err := c.sessions.ResetPassword(ctx.Request().Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			return badRequest(ctx, "Invalid or expired password reset token", nil)
		}
		if errors.Is(err, service.ErrWeakPassword) {
			return badRequest(ctx, err.Error(), nil)
		}
		return c.internal(ctx, err, "ResetPassword failed")
	}

	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Password reset successfully. You can now login with your new password.",
	})
}

func (c *AuthController) ExportData(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return fail(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	result, err := c.sessions.ExportUserData(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "User not found")
		}
		return c.internal(ctx, err, "ExportData failed")
	}

	return ctx.JSON(http.StatusOK, dto.ExportResponse{
		User: dto.ExportedUser{
			ID:              result.User.ID,
			Email:           result.User.Email,
			Role:            result.User.Role,
			IsEmailVerified: result.User.IsEmailVerified,
			CreatedAt:       result.User.CreatedAt,
			UpdatedAt:       result.User.UpdatedAt,
		},
		ActiveSessions: result.ActiveSessions,
		ExportDate:     result.ExportDate,
	})
}

func (c *AuthController) DeleteAccount(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return fail(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	var req dto.DeleteAccountRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body", nil)
	}
	if errs := req.Validate(); errs != nil {
		return badRequest(ctx, "Validation failed", errs)
	}

	err := c.sessions.DeleteAccount(ctx.Request().Context(), userID, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return fail(ctx, http.StatusNotFound, "User not found")
		}
		if errors.Is(err, service.ErrPasswordMismatch) {
			logrus.WithField("user_id", userID).Warn("DeleteAccount failed: password mismatch")
			return fail(ctx, http.StatusUnauthorized, "Invalid password")
		}
		return c.internal(ctx, err, "DeleteAccount failed")
	}

	c.clearAuthCookies(ctx)

	logrus.WithField("user_id", userID).Info("Account deleted")
	return ctx.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Message: "Account deleted successfully",
	})
}

func (c *AuthController) setAuthCookies(ctx echo.Context, accessToken, refreshToken string) {
	ctx.SetCookie(&http.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(c.cfg.AccessTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
	ctx.SetCookie(&http.Cookie{
		Name:     refreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(c.cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *AuthController) clearAuthCookies(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
	ctx.SetCookie(&http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

// internal logs the real error and answers with a generic message. Outside
// production the underlying error text is included for debuggability.
func (c *AuthController) internal(ctx echo.Context, err error, message string) error {
	logrus.WithError(err).WithFields(requestFields(ctx)).Error(message)

	body := "Internal server error"
	if !c.cfg.IsProduction() {
		body = err.Error()
	}
	return fail(ctx, http.StatusInternalServerError, body)
}

func fail(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, dto.Envelope{Success: false, Message: message})
}

func badRequest(ctx echo.Context, message string, errs []dto.FieldError) error {
	return ctx.JSON(http.StatusBadRequest, dto.Envelope{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

func publicUser(user *entity.User) dto.UserPayload {
	return dto.UserPayload{
		ID:              user.ID,
		Email:           user.Email,
		Role:            user.Role,
		IsEmailVerified: user.IsEmailVerified,
	}
}

func requestFields(ctx echo.Context) logrus.Fields {
	fields := logrus.Fields{
		"method":     ctx.Request().Method,
		"uri":        ctx.Request().RequestURI,
		"remote_ip":  ctx.RealIP(),
		"user_agent": ctx.Request().UserAgent(),
	}
	if userID, ok := ctx.Get(middleware.ContextUserID).(uint64); ok {
		fields["user_id"] = userID
	}
	return fields
}
