package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/middleware"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/filestorage"
)

// FileController serves stored attachments with ownership checks.
type FileController struct {
	studentService *services.StudentService
	store          *filestorage.Store
}

// NewFileController creates a new FileController
func NewFileController(studentService *services.StudentService, store *filestorage.Store) *FileController {
	return &FileController{
		studentService: studentService,
		store:          store,
	}
}

// ServeStudentFile serves one attachment under students/. Admins see
// everything; a mini-program user only the files of their own records.
func (c *FileController) ServeStudentFile(ctx *gin.Context) {
	rel := filestorage.StudentsRoot + "/" + strings.TrimPrefix(ctx.Param("filepath"), "/")

	if err := filestorage.ValidateRelPath(rel); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	claims := middleware.ClaimsFrom(ctx)
	if claims != nil && !claims.IsAdmin {
		owner, err := c.studentService.GetByFilePath(ctx, rel)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}
		if owner.SubmitterOpenid == "" || owner.SubmitterOpenid != claims.Openid {
			middleware.HandleAPIError(ctx, apperrors.NewForbiddenError("无权访问该附件"))
			return
		}
	}

	abs, err := c.store.AbsPath(rel)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.File(abs)
}
