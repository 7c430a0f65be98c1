package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoxh/trainsys/internal/pkg/auth"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService := auth.NewJWTService("test-secret", time.Hour, time.Hour)
	m := NewAuthMiddleware(jwtService, "static-api-key")

	router := gin.New()
	router.GET("/admin", m.AdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"claims": ClaimsFrom(c) != nil})
	})
	router.GET("/mini", m.MiniAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"openid": ClaimsFrom(c).Openid})
	})
	router.GET("/file", m.FileAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, jwtService
}

func get(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuthWithAPIKey(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	w := get(router, "/admin", map[string]string{"X-API-Key": "static-api-key"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/admin", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthWithToken(t *testing.T) {
	router, jwtService := newAuthTestRouter(t)

	token, err := jwtService.GenerateAdminToken("admin")
	require.NoError(t, err)
	w := get(router, "/admin", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)

	// A non-admin mini-program session may not reach admin routes.
	miniToken, err := jwtService.GenerateMiniToken("wx-1", false)
	require.NoError(t, err)
	w = get(router, "/admin", map[string]string{"Authorization": "Bearer " + miniToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// An allowlisted mini-program admin may.
	adminMini, err := jwtService.GenerateMiniToken("wx-admin", true)
	require.NoError(t, err)
	w = get(router, "/admin", map[string]string{"Authorization": "Bearer " + adminMini})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuthRejectsMissingAndBadTokens(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	w := get(router, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(router, "/admin", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiniAuth(t *testing.T) {
	router, jwtService := newAuthTestRouter(t)

	token, err := jwtService.GenerateMiniToken("wx-1", false)
	require.NoError(t, err)
	w := get(router, "/mini", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wx-1")

	// Admin console tokens carry no openid and are not mini sessions.
	adminToken, err := jwtService.GenerateAdminToken("admin")
	require.NoError(t, err)
	w = get(router, "/mini", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFileAuthAcceptsTokenQueryParam(t *testing.T) {
	router, jwtService := newAuthTestRouter(t)

	token, err := jwtService.GenerateMiniToken("wx-1", false)
	require.NoError(t, err)
	w := get(router, "/file?token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/file", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
