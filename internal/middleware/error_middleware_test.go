package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

func handleError(err error) (*httptest.ResponseRecorder, dto.ErrorResponse) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleAPIError(c, err)

	var resp dto.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandleAPIErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NewBadRequestError("无可用文档模板"), http.StatusBadRequest, "bad_request"},
		{apperrors.ErrStudentNotFound, http.StatusNotFound, "not_found"},
		{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{apperrors.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{apperrors.ErrTokenInvalid, http.StatusUnauthorized, "unauthorized"},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{apperrors.ErrPermissionDenied, http.StatusForbidden, "forbidden"},
		{apperrors.ErrUnsafePath, http.StatusForbidden, "forbidden"},
		{apperrors.ErrGone, http.StatusGone, "gone"},
		{apperrors.NewDatabaseError(errors.New("boom")), http.StatusInternalServerError, "database_error"},
		{errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		w, resp := handleError(tc.err)
		assert.Equal(t, tc.status, w.Code, "error %v", tc.err)
		assert.Equal(t, tc.code, resp.Error.Code, "error %v", tc.err)
	}
}

func TestHandleAPIErrorValidationFields(t *testing.T) {
	err := apperrors.NewValidationError("缺少必传附件", map[string]string{"photo": "必填项"})

	w, resp := handleError(err)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", resp.Error.Code)
	assert.Equal(t, "缺少必传附件", resp.Error.Message)
	assert.Equal(t, "必填项", resp.Error.Fields["photo"])
}

func TestHandleAPIErrorHidesInternalDetail(t *testing.T) {
	_, resp := handleError(apperrors.NewDatabaseError(errors.New("constraint violated on students")))
	assert.Equal(t, "数据库操作失败", resp.Error.Message)
	assert.NotContains(t, resp.Error.Message, "students")
}
