package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/logger"
)

// HandleAPIError maps domain errors onto the uniform error envelope.
// Unexpected errors are logged server-side and surface as a generic 500.
func HandleAPIError(c *gin.Context, err error) {
	var custom *apperrors.CustomError
	message := err.Error()
	if errors.As(err, &custom) && custom.Message != "" {
		message = custom.Message
	}

	switch {
	case errors.Is(err, apperrors.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "validation_failed",
			Message: message,
			Fields:  apperrors.FieldErrors(err),
		}})
	case errors.Is(err, apperrors.ErrBadRequest):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "bad_request",
			Message: message,
		}})
	case errors.Is(err, apperrors.ErrStudentNotFound), errors.Is(err, apperrors.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "not_found",
			Message: message,
		}})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "invalid_credentials",
			Message: "用户名或密码错误",
		}})
	case errors.Is(err, apperrors.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "token_expired",
			Message: "登录已过期",
		}})
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "unauthorized",
			Message: "认证失败",
		}})
	case errors.Is(err, apperrors.ErrPermissionDenied), errors.Is(err, apperrors.ErrUnsafePath):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "forbidden",
			Message: "无权访问",
		}})
	case errors.Is(err, apperrors.ErrGone):
		c.JSON(http.StatusGone, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "gone",
			Message: "该接口已下线",
		}})
	case errors.Is(err, apperrors.ErrDatabase):
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Database error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "database_error",
			Message: "数据库操作失败",
		}})
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: dto.ErrorDetail{
			Code:    "internal_error",
			Message: "服务器内部错误",
		}})
	}
}
