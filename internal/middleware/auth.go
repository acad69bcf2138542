package middleware

import (
	"strings"

	"projecthub-service/internal/identity"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/jwtutil"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const identityKey = "identity"

// JWTAuthMiddleware validates the bearer token and stores the caller
// identity on the context. Every failure is a 401.
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return apperr.Unauthenticated("Access token required")
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				log.Warn("Invalid authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return apperr.Unauthenticated("Invalid authorization header format")
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return apperr.Unauthenticated("Invalid or expired token")
			}

			id, err := identity.New(claims.UserID, claims.TenantID, claims.Role)
			if err != nil {
				log.Warn("Token carries an invalid identity", zap.Error(err))
				prometheus.RecordAuthError("invalid_identity")
				return apperr.Unauthenticated("Invalid or expired token")
			}

			c.Set(identityKey, id)
			tenantID, _ := id.Tenant()
			logger.SetEcho(c, log.With(
				zap.String("user_id", id.ID()),
				zap.String("tenant_id", tenantID),
				zap.String("role", string(id.Role())),
			))

			return next(c)
		}
	}
}

// CurrentIdentity returns the caller stored by JWTAuthMiddleware
func CurrentIdentity(c echo.Context) (identity.Identity, error) {
	id, ok := c.Get(identityKey).(identity.Identity)
	if !ok || id == nil {
		return nil, apperr.Unauthenticated("Access token required")
	}
	return id, nil
}

// SetIdentity stores id on the context
func SetIdentity(c echo.Context, id identity.Identity) {
	c.Set(identityKey, id)
}
