package dto

// LoginRequest represents admin console login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents a signed session token
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType" example:"Bearer"`
	ExpiresIn int64  `json:"expiresIn"`
}

// MiniLoginRequest carries the wx.login code from the mini-program
type MiniLoginRequest struct {
	Code string `json:"code" binding:"required"`
}

// MiniLoginResponse represents a mini-program session
type MiniLoginResponse struct {
	Token   TokenResponse `json:"token"`
	Openid  string        `json:"openid"`
	IsAdmin bool          `json:"isAdmin"`
}
