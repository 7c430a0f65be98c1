package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

const tokenIssuer = "trainsys"

// JWTService signs and validates session tokens for the admin console and
// the mini-program.
type JWTService struct {
	secret   []byte
	adminTTL time.Duration
	miniTTL  time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string, adminTTL, miniTTL time.Duration) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		adminTTL: adminTTL,
		miniTTL:  miniTTL,
	}
}

// Claims defines session token content. Admin tokens carry Username;
// mini-program tokens carry Openid and the allowlist-derived IsAdmin flag.
type Claims struct {
	Username string `json:"username,omitempty"`
	Openid   string `json:"openid,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// GenerateAdminToken creates an admin console session token
func (s *JWTService) GenerateAdminToken(username string) (string, error) {
	return s.sign(&Claims{
		Username:         username,
		IsAdmin:          true,
		RegisteredClaims: s.registeredClaims(username, s.adminTTL),
	})
}

// GenerateMiniToken creates a mini-program session token bound to the
// WeChat openid.
func (s *JWTService) GenerateMiniToken(openid string, isAdmin bool) (string, error) {
	return s.sign(&Claims{
		Openid:           openid,
		IsAdmin:          isAdmin,
		RegisteredClaims: s.registeredClaims(openid, s.miniTTL),
	})
}

func (s *JWTService) registeredClaims(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
		Subject:   subject,
		ID:        uuid.New().String(),
	}
}

func (s *JWTService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token string and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrTokenInvalid
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return authHeader
}
