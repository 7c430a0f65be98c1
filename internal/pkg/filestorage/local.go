package filestorage

import (
	"archive/zip"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/logger"
)

// StudentsRoot is the directory prefix every attachment path lives under.
const StudentsRoot = "students"

// Store maps student identities to attachment files on the local
// filesystem. All paths returned and accepted are relative to baseDir and
// start with "students/".
type Store struct {
	baseDir string
}

// NewStore ensures the students root exists under baseDir and returns a
// Store rooted there.
func NewStore(baseDir string) (*Store, error) {
	root := filepath.Join(baseDir, StudentsRoot)
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", root).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}

	return &Store{baseDir: baseDir}, nil
}

// RelPath computes the canonical relative path for an attachment:
// students/<company>-<name>/<idCard><name>-<label><ext>.
func RelPath(company, name, idCard string, kind models.AttachmentKind, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	folder := fmt.Sprintf("%s-%s", company, name)
	filename := fmt.Sprintf("%s%s-%s%s", idCard, name, kind.Label(), strings.ToLower(ext))
	return path.Join(StudentsRoot, folder, filename)
}

// ValidateRelPath rejects traversal segments, absolute paths and anything
// outside the students root before any filesystem access happens.
func ValidateRelPath(rel string) error {
	if rel == "" {
		return apperrors.NewValidationError("attachment path is empty", nil)
	}

	normalized := strings.ReplaceAll(rel, "\\", "/")
	if path.IsAbs(normalized) || filepath.IsAbs(rel) {
		return &apperrors.CustomError{Err: apperrors.ErrUnsafePath, Message: "absolute attachment path rejected"}
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return &apperrors.CustomError{Err: apperrors.ErrUnsafePath, Message: "attachment path may not traverse upward"}
		}
	}

	cleaned := path.Clean(normalized)
	if cleaned != StudentsRoot && !strings.HasPrefix(cleaned, StudentsRoot+"/") {
		return &apperrors.CustomError{Err: apperrors.ErrUnsafePath, Message: "attachment path must stay under " + StudentsRoot + "/"}
	}

	return nil
}

// AbsPath resolves a validated relative path against the store base.
func (s *Store) AbsPath(rel string) (string, error) {
	if err := ValidateRelPath(rel); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(rel)), nil
}

// Save writes content to the canonical path for the given identity and
// attachment kind, creating the student folder when absent. An existing
// file at the same path is overwritten.
func (s *Store) Save(content io.Reader, company, name, idCard string, kind models.AttachmentKind, ext string) (string, error) {
	rel := RelPath(company, name, idCard, kind, ext)

	abs, err := s.AbsPath(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(abs), os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", filepath.Dir(abs)).Msg("Failed to create student folder")
		return "", fmt.Errorf("failed to create student folder: %w", err)
	}

	dst, err := os.Create(abs)
	if err != nil {
		logger.Error().Err(err).Str("path", abs).Msg("Failed to create attachment file")
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, content); err != nil {
		logger.Error().Err(err).Str("path", abs).Msg("Failed to write attachment content")
		_ = os.Remove(abs)
		return "", fmt.Errorf("failed to save attachment content: %w", err)
	}

	logger.Info().Str("path", rel).Msg("Attachment saved")
	return rel, nil
}

// SaveUpload saves a multipart upload. A nil header is a no-op returning
// an empty path.
func (s *Store) SaveUpload(fileHeader *multipart.FileHeader, company, name, idCard string, kind models.AttachmentKind) (string, error) {
	if fileHeader == nil || fileHeader.Filename == "" {
		return "", nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Failed to open uploaded file")
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	return s.Save(file, company, name, idCard, kind, filepath.Ext(fileHeader.Filename))
}

// SaveBytes saves pre-processed content (for example a normalized photo).
func (s *Store) SaveBytes(content []byte, company, name, idCard string, kind models.AttachmentKind, ext string) (string, error) {
	return s.Save(strings.NewReader(string(content)), company, name, idCard, kind, ext)
}

// Delete removes the file at the given relative path, then the owning
// student folder when it became empty. A missing file is not an error.
func (s *Store) Delete(rel string) error {
	if rel == "" {
		return nil
	}

	abs, err := s.AbsPath(rel)
	if err != nil {
		return err
	}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		logger.Warn().Str("path", rel).Msg("Attachment to delete does not exist")
		return nil
	}

	if err := os.Remove(abs); err != nil {
		logger.Error().Err(err).Str("path", abs).Msg("Failed to delete attachment")
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	logger.Info().Str("path", rel).Msg("Attachment deleted")

	folder := filepath.Dir(abs)
	if folder != filepath.Join(s.baseDir, StudentsRoot) {
		if entries, err := os.ReadDir(folder); err == nil && len(entries) == 0 {
			if err := os.Remove(folder); err == nil {
				logger.Info().Str("path", folder).Msg("Empty student folder removed")
			}
		}
	}

	return nil
}

// DeleteAll removes every path in the list, logging and continuing on
// individual failures.
func (s *Store) DeleteAll(rels []string) {
	for _, rel := range rels {
		if err := s.Delete(rel); err != nil {
			logger.Error().Err(err).Str("path", rel).Msg("Failed to delete attachment during cleanup")
		}
	}
}

// Open opens a stored attachment for reading.
func (s *Store) Open(rel string) (*os.File, error) {
	abs, err := s.AbsPath(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// WriteZip bundles the given attachment paths into a zip archive written
// to w, using file basenames as entry names. Missing files are skipped;
// the count of bundled entries is returned.
func (s *Store) WriteZip(w io.Writer, rels []string) (int, error) {
	zw := zip.NewWriter(w)
	added := 0

	for _, rel := range rels {
		abs, err := s.AbsPath(rel)
		if err != nil {
			logger.Warn().Err(err).Str("path", rel).Msg("Skipping invalid path in zip bundle")
			continue
		}

		src, err := os.Open(abs)
		if err != nil {
			continue
		}

		entry, err := zw.Create(filepath.Base(abs))
		if err != nil {
			src.Close()
			zw.Close()
			return added, fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			zw.Close()
			return added, fmt.Errorf("failed to write zip entry: %w", err)
		}
		src.Close()
		added++
	}

	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return added, nil
}
