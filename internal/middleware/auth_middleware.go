package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/auth"
)

const claimsKey = "auth_claims"

// AuthMiddleware guards routes with session tokens or the static API key.
type AuthMiddleware struct {
	jwtService *auth.JWTService
	apiKey     string
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, apiKey string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		apiKey:     apiKey,
	}
}

// AdminAuth admits admin console sessions, admin mini-program sessions,
// and callers presenting the static X-API-Key.
func (m *AuthMiddleware) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKeyOK(c) {
			c.Next()
			return
		}

		claims, err := m.tokenClaims(c)
		if err != nil {
			abortWith(c, err)
			return
		}
		if !claims.IsAdmin {
			abortWith(c, apperrors.ErrPermissionDenied)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// MiniAuth admits any valid mini-program session and records its claims.
func (m *AuthMiddleware) MiniAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.tokenClaims(c)
		if err != nil {
			abortWith(c, err)
			return
		}
		if claims.Openid == "" {
			abortWith(c, apperrors.ErrTokenInvalid)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// FileAuth admits admins plus mini-program users; controllers downstream
// decide per-file ownership from the stored claims.
func (m *AuthMiddleware) FileAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKeyOK(c) {
			c.Next()
			return
		}

		claims, err := m.tokenClaims(c)
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func (m *AuthMiddleware) apiKeyOK(c *gin.Context) bool {
	key := c.GetHeader("X-API-Key")
	return key != "" && m.apiKey != "" && auth.SecureCompare(key, m.apiKey)
}

func (m *AuthMiddleware) tokenClaims(c *gin.Context) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		// The mini-program file viewer cannot set headers on image
		// requests, so a token query parameter is accepted too.
		header = c.Query("token")
	}
	if header == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return m.jwtService.ValidateToken(auth.ExtractBearerToken(header))
}

func abortWith(c *gin.Context, err error) {
	HandleAPIError(c, err)
	c.Abort()
}

// ClaimsFrom returns the authenticated claims stored on the context, nil
// for API-key callers.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
