package services

import (
	"context"
	"time"

	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/config"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/auth"
	"github.com/luoxh/trainsys/internal/pkg/logger"
	"github.com/luoxh/trainsys/internal/pkg/wechat"
)

// AuthService handles admin console and mini-program sessions.
type AuthService struct {
	cfg    *config.Config
	jwt    *auth.JWTService
	wechat *wechat.Client
}

// NewAuthService creates a new auth service instance
func NewAuthService(cfg *config.Config, jwtService *auth.JWTService, wechatClient *wechat.Client) *AuthService {
	return &AuthService{
		cfg:    cfg,
		jwt:    jwtService,
		wechat: wechatClient,
	}
}

// Login verifies admin credentials and issues a session token. The
// configured password may be a bcrypt hash or, for small deployments, a
// plaintext value compared in constant time.
func (s *AuthService) Login(ctx context.Context, username, password string) (*dto.TokenResponse, error) {
	if !auth.SecureCompare(username, s.cfg.Auth.AdminUser) {
		return nil, apperrors.ErrInvalidCredentials
	}

	switch {
	case s.cfg.Auth.AdminPasswordHash != "":
		if !auth.CheckPassword(password, s.cfg.Auth.AdminPasswordHash) {
			return nil, apperrors.ErrInvalidCredentials
		}
	case s.cfg.Auth.AdminPassword != "":
		if !auth.SecureCompare(password, s.cfg.Auth.AdminPassword) {
			return nil, apperrors.ErrInvalidCredentials
		}
	default:
		logger.Error().Msg("No admin password configured, refusing login")
		return nil, apperrors.ErrConfigError
	}

	token, err := s.jwt.GenerateAdminToken(username)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("username", username).Msg("Admin logged in")
	return &dto.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(time.Duration(s.cfg.Auth.SessionHours) * time.Hour / time.Second),
	}, nil
}

// MiniLogin exchanges a wx.login code for a mini-program session token.
func (s *AuthService) MiniLogin(ctx context.Context, code string) (*dto.MiniLoginResponse, error) {
	openid, err := s.wechat.CodeToOpenid(ctx, code)
	if err != nil {
		return nil, err
	}

	isAdmin := false
	for _, admin := range s.cfg.AdminOpenids() {
		if openid == admin {
			isAdmin = true
			break
		}
	}

	token, err := s.jwt.GenerateMiniToken(openid, isAdmin)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("openid", openid).Bool("is_admin", isAdmin).Msg("Mini-program login")
	return &dto.MiniLoginResponse{
		Token: dto.TokenResponse{
			Token:     token,
			TokenType: "Bearer",
			ExpiresIn: int64(time.Duration(s.cfg.Wechat.TokenHours) * time.Hour / time.Second),
		},
		Openid:  openid,
		IsAdmin: isAdmin,
	}, nil
}
