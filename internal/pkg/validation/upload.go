package validation

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

var (
	allowedUploadExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true,
	}
	allowedUploadMimes = map[string]bool{
		"image/jpeg": true, "image/png": true,
	}
)

// MaxUploadFileMB caps a single attachment upload.
const MaxUploadFileMB = 10

// Upload checks an uploaded attachment's extension, declared MIME type and
// size before it is stored.
func Upload(fileHeader *multipart.FileHeader) error {
	if fileHeader == nil || fileHeader.Filename == "" {
		return apperrors.NewValidationError("未选择文件", nil)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		return apperrors.NewValidationError("文件名无效", nil)
	}
	if !allowedUploadExts[ext] {
		return apperrors.NewValidationError("不支持的文件类型，仅支持: jpg, jpeg, png", nil)
	}

	mimetype := strings.ToLower(fileHeader.Header.Get("Content-Type"))
	if mimetype != "" && !allowedUploadMimes[mimetype] {
		return apperrors.NewValidationError("文件MIME类型无效，仅支持 JPG/PNG 图片", nil)
	}

	if fileHeader.Size > MaxUploadFileMB*1024*1024 {
		return apperrors.NewValidationError(fmt.Sprintf("文件大小不能超过 %dMB", MaxUploadFileMB), nil)
	}

	return nil
}
