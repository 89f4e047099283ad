package middleware

import (
	"net/http"

	dto "github.com/vibast-solutions/ms-go-account/app/dto/http"
	"github.com/vibast-solutions/ms-go-account/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const AccessTokenCookie = "accessToken"

// Context keys for the decoded identity.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextVerified = "user_verified"
)

type accessTokenValidator interface {
	VerifyAccessToken(tokenString string) (*service.AccessClaims, error)
}

type AuthMiddleware struct {
	sessions accessTokenValidator
}

func NewAuthMiddleware(sessions accessTokenValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireAuth rejects requests without a valid access-token cookie and
// attaches the decoded identity to the context otherwise.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := m.extract(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, dto.Envelope{
				Success: false,
				Message: "Authentication required. Please provide a valid token.",
			})
		}

		attach(c, claims)
		return next(c)
	}
}

// RequireRole builds on RequireAuth and additionally rejects identities whose
// role is not in the allow-list.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.RequireAuth(func(c echo.Context) error {
			role, _ := c.Get(ContextUserRole).(string)
			for _, allowed := range allowedRoles {
				if role == allowed {
					return next(c)
				}
			}

			logrus.WithFields(logrus.Fields{
				"role": role,
				"uri":  c.Request().RequestURI,
			}).Warn("Access denied: role not allowed")
			return c.JSON(http.StatusForbidden, dto.Envelope{
				Success: false,
				Message: "Access denied",
			})
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// silently proceeds anonymously otherwise, including on an invalid token.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims, ok := m.extract(c); ok {
			attach(c, claims)
		}
		return next(c)
	}
}

func (m *AuthMiddleware) extract(c echo.Context) (*service.AccessClaims, bool) {
	cookie, err := c.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims, err := m.sessions.VerifyAccessToken(cookie.Value)
	if err != nil {
		logrus.Debug("Invalid or expired access token")
		return nil, false
	}
	return claims, true
}

func attach(c echo.Context, claims *service.AccessClaims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextVerified, claims.Verified)
}
