package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoxh/trainsys/internal/app/controllers"
	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/config"
	"github.com/luoxh/trainsys/internal/db"
	"github.com/luoxh/trainsys/internal/middleware"
	"github.com/luoxh/trainsys/internal/pkg/auth"
	"github.com/luoxh/trainsys/internal/pkg/docgen"
	"github.com/luoxh/trainsys/internal/pkg/filestorage"
	"github.com/luoxh/trainsys/internal/pkg/photo"
	"github.com/luoxh/trainsys/internal/pkg/wechat"
)

const testAPIKey = "test-api-key"

type apiFixture struct {
	router *gin.Engine
	repo   *repositories.StudentRepository
	store  *filestorage.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	baseDir := t.TempDir()
	database, err := db.NewSQLiteDB(filepath.Join(baseDir, "database", "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := filestorage.NewStore(baseDir)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Auth.AdminUser = "admin"
	cfg.Auth.AdminPassword = "secret"
	cfg.Auth.SessionHours = 12
	cfg.Wechat.TokenHours = 72

	jwtService := auth.NewJWTService("secret-key", 12*time.Hour, 72*time.Hour)

	repo := repositories.NewStudentRepository(database)
	studentService := services.NewStudentService(repo, store,
		photo.NewProcessor(photo.Options{}), docgen.NewGenerator(filepath.Join(baseDir, "templates")))
	exportService := services.NewExportService(repo)
	authService := services.NewAuthService(cfg, jwtService, wechat.NewClient("", ""))

	authMiddleware := middleware.NewAuthMiddleware(jwtService, testAPIKey)

	router := gin.New()
	SetupRouter(router,
		controllers.NewAuthController(authService),
		controllers.NewStudentController(studentService),
		controllers.NewExportController(exportService),
		controllers.NewConfigController(),
		controllers.NewFileController(studentService, store),
		authMiddleware,
	)
	return &apiFixture{router: router, repo: repo, store: store}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"X-API-Key": testAPIKey}
}

func studentBody() map[string]any {
	return map[string]any{
		"name":            "张三",
		"gender":          "男",
		"education":       "本科或同等学历",
		"id_card":         "110101199003070012",
		"phone":           "13812345678",
		"company":         "甲公司",
		"company_address": "测试地址",
		"job_category":    "电工作业",
		"exam_project":    "低压电工作业",
	}
}

func TestHealthAndPublicConfig(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodGet, "/api/config/job_categories", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "special_operation")
	assert.Contains(t, w.Body.String(), "电工作业")
	assert.Contains(t, w.Body.String(), "锅炉作业")
}

func TestLoginFlow(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)

	// The issued token grants admin access.
	w = fx.do(t, http.MethodGet, "/api/students", nil,
		map[string]string{"Authorization": "Bearer " + resp.Token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentsRequireAuth(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/students", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodPost, "/api/students", studentBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentCRUDFlow(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/students", studentBody(), adminHeaders())
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	assert.Equal(t, models.StatusUnreviewed, created.Status)

	w = fx.do(t, http.MethodGet, "/api/students", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = fx.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d", created.ID), nil, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodPut, fmt.Sprintf("/api/students/%d", created.ID),
		map[string]string{"phone": "13900000000"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "13900000000")

	// Approval without the required attachments fails field by field.
	w = fx.do(t, http.MethodPost, fmt.Sprintf("/api/students/%d/approve", created.ID), nil, adminHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "缺少必传附件")

	w = fx.do(t, http.MethodPost, fmt.Sprintf("/api/students/%d/reject", created.ID), nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodDelete, fmt.Sprintf("/api/students/%d", created.ID), nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d", created.ID), nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentValidationErrors(t *testing.T) {
	fx := newAPIFixture(t)

	body := studentBody()
	body["phone"] = "123"
	w := fx.do(t, http.MethodPost, "/api/students", body, adminHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "手机号格式不正确")

	w = fx.do(t, http.MethodGet, "/api/students/not-a-number", nil, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchEndpoints(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/students", studentBody(), adminHeaders())
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = fx.do(t, http.MethodPost, "/api/students/batch/reject",
		map[string]any{"ids": []int64{created.ID, 9999}}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"requested":2`)
	assert.Contains(t, w.Body.String(), `"succeeded":1`)
	assert.Contains(t, w.Body.String(), "9999")

	// Empty ID lists are rejected at binding.
	w = fx.do(t, http.MethodPost, "/api/students/batch/delete",
		map[string]any{"ids": []int64{}}, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompaniesAndExport(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/students", studentBody(), adminHeaders())
	require.Equal(t, http.StatusCreated, w.Code)

	w = fx.do(t, http.MethodGet, "/api/companies", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "甲公司")

	w = fx.do(t, http.MethodGet, "/api/export/excel", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestServeStudentFileOwnership(t *testing.T) {
	fx := newAPIFixture(t)

	// Store a file and register it on a mini-program submission.
	rel, err := fx.store.SaveBytes([]byte("img"), "甲公司", "张三", "110101199003070012", models.AttachmentPhoto, ".jpg")
	require.NoError(t, err)

	student := &models.Student{
		Name: "张三", Gender: "男", Education: "本科或同等学历",
		IDCard: "110101199003070012", Phone: "13812345678",
		Company: "甲公司", CompanyAddress: "测试地址", JobCategory: "电工作业",
		TrainingType: models.TrainingSpecialOperation, Status: models.StatusUnreviewed,
		PhotoPath: rel, SubmitterOpenid: "wx-owner",
	}
	require.NoError(t, fx.repo.Create(context.Background(), student))

	jwtService := auth.NewJWTService("secret-key", time.Hour, time.Hour)
	ownerToken, err := jwtService.GenerateMiniToken("wx-owner", false)
	require.NoError(t, err)
	strangerToken, err := jwtService.GenerateMiniToken("wx-stranger", false)
	require.NoError(t, err)

	path := "/" + rel

	w := fx.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodGet, path, nil, map[string]string{"Authorization": "Bearer " + ownerToken})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "img", w.Body.String())

	w = fx.do(t, http.MethodGet, path, nil, map[string]string{"Authorization": "Bearer " + strangerToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin API key sees everything.
	w = fx.do(t, http.MethodGet, path, nil, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code)

	// Traversal is refused before touching the filesystem.
	w = fx.do(t, http.MethodGet, "/students/../database/students.db", nil, adminHeaders())
	assert.NotEqual(t, http.StatusOK, w.Code)
}
