package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/middleware"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

// AuthController handles login endpoints
type AuthController struct {
	authService *services.AuthService
}

// NewAuthController creates a new AuthController
func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Login authenticates the admin console
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("缺少用户名或密码"))
		return
	}

	token, err := c.authService.Login(ctx, req.Username, req.Password)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, token)
}

// Logout acknowledges session termination. Tokens are stateless; the
// client discards its copy.
func (c *AuthController) Logout(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "已退出登录"})
}

// MiniLogin exchanges a wx.login code for a mini-program session
func (c *AuthController) MiniLogin(ctx *gin.Context) {
	var req dto.MiniLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("缺少登录凭证"))
		return
	}

	session, err := c.authService.MiniLogin(ctx, req.Code)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, session)
}
