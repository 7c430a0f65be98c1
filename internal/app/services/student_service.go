package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/docgen"
	"github.com/luoxh/trainsys/internal/pkg/filestorage"
	"github.com/luoxh/trainsys/internal/pkg/logger"
	"github.com/luoxh/trainsys/internal/pkg/photo"
	"github.com/luoxh/trainsys/internal/pkg/validation"
)

// StudentService implements the enrollment workflow: intake, attachment
// routing, review transitions, and document generation.
type StudentService struct {
	repo   *repositories.StudentRepository
	store  *filestorage.Store
	photos *photo.Processor
	docs   *docgen.Generator
}

// NewStudentService creates a new student service instance
func NewStudentService(
	repo *repositories.StudentRepository,
	store *filestorage.Store,
	photos *photo.Processor,
	docs *docgen.Generator,
) *StudentService {
	return &StudentService{
		repo:   repo,
		store:  store,
		photos: photos,
		docs:   docs,
	}
}

// Create validates and stores a new enrollment. When requireComplete is
// set (mini-program submissions) every required attachment must be among
// files; admin-entered records may start without attachments.
func (s *StudentService) Create(
	ctx context.Context,
	req *dto.CreateStudentRequest,
	files map[models.AttachmentKind]*multipart.FileHeader,
	submitterOpenid string,
	requireComplete bool,
) (*models.Student, error) {
	student := studentFromCreate(req)
	student.SubmitterOpenid = submitterOpenid

	if err := validation.StudentFields(studentFieldMap(student), nil); err != nil {
		return nil, err
	}

	if requireComplete {
		if err := checkRequiredFiles(student.TrainingType, files); err != nil {
			return nil, err
		}
	}

	for kind, fh := range files {
		if err := validation.Upload(fh); err != nil {
			return nil, err
		}
		rel, err := s.saveAttachment(ctx, student, kind, fh)
		if err != nil {
			s.store.DeleteAll(student.AllAttachmentPaths())
			return nil, err
		}
		student.SetAttachmentPath(kind, rel)
	}

	if err := s.repo.Create(ctx, student); err != nil {
		s.store.DeleteAll(student.AllAttachmentPaths())
		return nil, err
	}

	logger.Info().Int64("id", student.ID).Str("name", student.Name).Msg("Student created")
	return student, nil
}

// Get retrieves one student record
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByFilePath resolves the record owning a served attachment path
func (s *StudentService) GetByFilePath(ctx context.Context, relPath string) (*models.Student, error) {
	if err := filestorage.ValidateRelPath(relPath); err != nil {
		return nil, err
	}
	return s.repo.GetByFilePath(ctx, relPath)
}

// List retrieves students matching the filter
func (s *StudentService) List(ctx context.Context, filter repositories.ListFilter) ([]*models.Student, error) {
	return s.repo.List(ctx, filter)
}

// Count reports how many records match the filter.
func (s *StudentService) Count(ctx context.Context, filter repositories.ListFilter) (int64, error) {
	return s.repo.Count(ctx, filter)
}

// Update applies a partial update to a student record
func (s *StudentService) Update(ctx context.Context, id int64, req *dto.UpdateStudentRequest) (*models.Student, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	provided := map[string]string{}
	var requiredProvided []string

	set := func(column string, val *string) {
		if val == nil {
			return
		}
		v := strings.TrimSpace(*val)
		if column == "education" {
			v = validation.NormalizeEducation(v)
		}
		fields[column] = v
		provided[column] = v
		requiredProvided = append(requiredProvided, column)
	}

	set("name", req.Name)
	set("gender", req.Gender)
	set("education", req.Education)
	set("school", req.School)
	set("major", req.Major)
	set("id_card", req.IDCard)
	set("phone", req.Phone)
	set("company", req.Company)
	set("company_address", req.CompanyAddress)
	set("job_category", req.JobCategory)
	set("exam_project", req.ExamProject)
	set("project_code", req.ProjectCode)

	// school, major, exam_project and project_code may legitimately be
	// cleared; only validate the fields the domain rules cover.
	requiredProvided = intersect(requiredProvided, []string{
		"name", "gender", "education", "id_card", "phone",
		"company", "company_address", "job_category",
	})
	if err := validation.StudentFields(provided, requiredProvided); err != nil {
		return nil, err
	}

	switch {
	case req.TrainingType != nil:
		fields["training_type"] = *req.TrainingType
	case req.JobCategory != nil:
		fields["training_type"] = string(models.InferTrainingType(*req.JobCategory))
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// UploadAttachment stores one attachment for an existing record; photos
// are routed through the post-processor before landing on disk.
func (s *StudentService) UploadAttachment(ctx context.Context, id int64, kind models.AttachmentKind, fh *multipart.FileHeader) (*models.Student, error) {
	if !isUploadable(kind) {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("不支持的附件类型: %s", kind))
	}
	if err := validation.Upload(fh); err != nil {
		return nil, err
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := student.AttachmentPath(kind)

	rel, err := s.saveAttachment(ctx, student, kind, fh)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, map[string]any{kind.DBColumn(): rel}); err != nil {
		s.store.Delete(rel)
		return nil, err
	}

	if old != "" && old != rel {
		s.store.Delete(old)
	}

	student.SetAttachmentPath(kind, rel)
	return student, nil
}

// Approve transitions a record to reviewed. Every required attachment
// must be on file; the training form is then generated best-effort.
func (s *StudentService) Approve(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	missing := map[string]string{}
	for _, kind := range models.RequiredAttachments(student.TrainingType) {
		if student.AttachmentPath(kind) == "" {
			missing[string(kind)] = "必填项"
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("缺少必传附件", missing)
	}

	if err := s.repo.UpdateStatus(ctx, id, models.StatusReviewed); err != nil {
		return nil, err
	}
	student.Status = models.StatusReviewed

	// Form generation is a convenience side effect; its failure does not
	// undo the approval.
	if rel, err := s.GenerateDocuments(ctx, student); err != nil {
		logger.Warn().Err(err).Int64("id", id).Msg("Training form generation failed after approval")
	} else {
		student.TrainingFormPath = rel
	}

	return student, nil
}

// Reject marks a record rejected; when deleteRow is set the row and its
// files are removed instead.
func (s *StudentService) Reject(ctx context.Context, id int64, deleteRow bool) error {
	if deleteRow {
		return s.Delete(ctx, id)
	}
	return s.repo.UpdateStatus(ctx, id, models.StatusRejected)
}

// Delete removes a record and every file it owns
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.store.DeleteAll(student.AllAttachmentPaths())
	return nil
}

// ApproveBatch approves each ID in turn. Per-item failures are logged
// and reported; they never abort the loop.
func (s *StudentService) ApproveBatch(ctx context.Context, ids []int64) dto.BatchResponse {
	return s.runBatch(ids, "approve", func(id int64) error {
		_, err := s.Approve(ctx, id)
		return err
	})
}

// RejectBatch rejects (or deletes) each ID in turn
func (s *StudentService) RejectBatch(ctx context.Context, ids []int64, deleteRows bool) dto.BatchResponse {
	return s.runBatch(ids, "reject", func(id int64) error {
		return s.Reject(ctx, id, deleteRows)
	})
}

// DeleteBatch deletes each ID in turn
func (s *StudentService) DeleteBatch(ctx context.Context, ids []int64) dto.BatchResponse {
	return s.runBatch(ids, "delete", func(id int64) error {
		return s.Delete(ctx, id)
	})
}

func (s *StudentService) runBatch(ids []int64, action string, op func(int64) error) dto.BatchResponse {
	resp := dto.BatchResponse{Requested: len(ids)}
	for _, id := range ids {
		if err := op(id); err != nil {
			logger.Warn().Err(err).Int64("id", id).Str("action", action).Msg("Batch item failed")
			resp.FailedIDs = append(resp.FailedIDs, id)
			continue
		}
		resp.Succeeded++
	}
	return resp
}

// GenerateDocuments produces the filled form for a student and records
// its path. The health-check template wins when the exam project needs
// one; otherwise the registration form template is used.
func (s *StudentService) GenerateDocuments(ctx context.Context, student *models.Student) (string, error) {
	templateName, ok := docgen.HealthCheckTemplate(student.ExamProject)
	if !ok || !s.docs.HasTemplate(templateName) {
		templateName = docgen.TrainingFormTemplate
	}
	if !s.docs.HasTemplate(templateName) {
		return "", apperrors.NewNotFoundError("无可用文档模板")
	}

	rel := filestorage.RelPath(student.Company, student.Name, student.IDCard, models.AttachmentTrainingForm, ".docx")
	abs, err := s.store.AbsPath(rel)
	if err != nil {
		return "", err
	}

	photoPath := ""
	if student.PhotoPath != "" {
		if p, err := s.store.AbsPath(student.PhotoPath); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				photoPath = p
			}
		}
	}

	fields := map[string]string{
		docgen.LabelName:        student.Name,
		docgen.LabelGender:      student.Gender,
		docgen.LabelIDCard:      student.IDCard,
		docgen.LabelCompany:     student.Company,
		docgen.LabelJobCategory: student.JobCategory,
		docgen.LabelExamProject: student.ExamProject,
	}

	if err := s.docs.Generate(templateName, abs, fields, photoPath); err != nil {
		return "", err
	}

	if err := s.repo.Update(ctx, student.ID, map[string]any{"training_form_path": rel}); err != nil {
		return "", err
	}
	return rel, nil
}

// WriteAttachmentsZip streams a reviewed student's attachments as a zip
// archive and returns the suggested filename.
func (s *StudentService) WriteAttachmentsZip(ctx context.Context, id int64, w io.Writer) (string, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if student.Status != models.StatusReviewed {
		return "", apperrors.NewBadRequestError("仅支持已审核学员打包下载")
	}

	paths := student.AllAttachmentPaths()
	if len(paths) == 0 {
		return "", apperrors.NewBadRequestError("该学员暂无可打包的附件")
	}

	count, err := s.store.WriteZip(w, paths)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", apperrors.NewBadRequestError("该学员暂无可打包的附件")
	}

	safe := strings.NewReplacer("/", "-", "\\", "-").Replace(student.IDCard + "-" + student.Name)
	return safe + ".zip", nil
}

// Companies lists distinct company names
func (s *StudentService) Companies(ctx context.Context) ([]string, error) {
	return s.repo.Companies(ctx)
}

// saveAttachment persists one upload, detouring photos through the
// post-processor. The processor never fails, it only degrades.
func (s *StudentService) saveAttachment(ctx context.Context, student *models.Student, kind models.AttachmentKind, fh *multipart.FileHeader) (string, error) {
	if kind != models.AttachmentPhoto {
		return s.store.SaveUpload(fh, student.Company, student.Name, student.IDCard, kind)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening uploaded photo: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading uploaded photo: %w", err)
	}

	result := s.photos.Process(ctx, raw)
	ext := ".jpg"
	if result.Applied(photo.StagePassthru) {
		// Undecodable bytes are stored as received.
		ext = strings.ToLower(filepath.Ext(fh.Filename))
	}
	return s.store.SaveBytes(result.JPEG, student.Company, student.Name, student.IDCard, kind, ext)
}

func studentFromCreate(req *dto.CreateStudentRequest) *models.Student {
	student := &models.Student{
		Name:           strings.TrimSpace(req.Name),
		Gender:         strings.TrimSpace(req.Gender),
		Education:      validation.NormalizeEducation(req.Education),
		School:         strings.TrimSpace(req.School),
		Major:          strings.TrimSpace(req.Major),
		IDCard:         strings.TrimSpace(req.IDCard),
		Phone:          strings.TrimSpace(req.Phone),
		Company:        strings.TrimSpace(req.Company),
		CompanyAddress: strings.TrimSpace(req.CompanyAddress),
		JobCategory:    strings.TrimSpace(req.JobCategory),
		ExamProject:    strings.TrimSpace(req.ExamProject),
		ProjectCode:    strings.TrimSpace(req.ProjectCode),
		TrainingType:   models.TrainingType(req.TrainingType),
		Status:         models.StatusUnreviewed,
	}
	if !student.TrainingType.Valid() {
		student.TrainingType = models.InferTrainingType(student.JobCategory)
	}
	return student
}

func studentFieldMap(s *models.Student) map[string]string {
	return map[string]string{
		"name":            s.Name,
		"gender":          s.Gender,
		"education":       s.Education,
		"school":          s.School,
		"major":           s.Major,
		"id_card":         s.IDCard,
		"phone":           s.Phone,
		"company":         s.Company,
		"company_address": s.CompanyAddress,
		"job_category":    s.JobCategory,
		"exam_project":    s.ExamProject,
		"project_code":    s.ProjectCode,
	}
}

func checkRequiredFiles(t models.TrainingType, files map[models.AttachmentKind]*multipart.FileHeader) error {
	missing := map[string]string{}
	for _, kind := range models.RequiredAttachments(t) {
		if files[kind] == nil {
			missing[string(kind)] = "必填项"
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("缺少必传附件", missing)
	}
	return nil
}

func isUploadable(kind models.AttachmentKind) bool {
	for _, k := range models.UploadableAttachmentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func intersect(have, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	var out []string
	for _, h := range have {
		if allowedSet[h] {
			out = append(out, h)
		}
	}
	return out
}
