package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/db"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/docgen"
	"github.com/luoxh/trainsys/internal/pkg/filestorage"
	"github.com/luoxh/trainsys/internal/pkg/photo"
)

type serviceFixture struct {
	service *StudentService
	repo    *repositories.StudentRepository
	store   *filestorage.Store
	baseDir string
	tplDir  string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	baseDir := t.TempDir()
	database, err := db.NewSQLiteDB(filepath.Join(baseDir, "database", "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := filestorage.NewStore(baseDir)
	require.NoError(t, err)

	tplDir := filepath.Join(baseDir, "templates")
	require.NoError(t, os.MkdirAll(tplDir, 0o755))

	repo := repositories.NewStudentRepository(database)
	return &serviceFixture{
		service: NewStudentService(repo, store, photo.NewProcessor(photo.Options{}), docgen.NewGenerator(tplDir)),
		repo:    repo,
		store:   store,
		baseDir: baseDir,
		tplDir:  tplDir,
	}
}

// fileHeader builds a parseable multipart file header with real content.
func fileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func pngUpload(t *testing.T, filename string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(60, 80, color.White)))
	return fileHeader(t, filename, "image/png", buf.Bytes())
}

func createRequest() *dto.CreateStudentRequest {
	return &dto.CreateStudentRequest{
		Name:           "张三",
		Gender:         "男",
		Education:      "本科",
		IDCard:         "110101199003070012",
		Phone:          "13812345678",
		Company:        "甲公司",
		CompanyAddress: "测试地址",
		JobCategory:    "电工作业",
		ExamProject:    "低压电工作业",
	}
}

func TestCreateAdminRecord(t *testing.T) {
	fx := newServiceFixture(t)

	student, err := fx.service.Create(context.Background(), createRequest(), nil, "", false)
	require.NoError(t, err)
	assert.NotZero(t, student.ID)
	assert.Equal(t, models.StatusUnreviewed, student.Status)
	assert.Equal(t, models.TrainingSpecialOperation, student.TrainingType)
	// Legacy education spellings are normalized on intake.
	assert.Equal(t, "本科或同等学历", student.Education)
}

func TestCreateInfersEquipmentTrack(t *testing.T) {
	fx := newServiceFixture(t)

	req := createRequest()
	req.JobCategory = "锅炉作业"
	req.ExamProject = "锅炉水处理"

	student, err := fx.service.Create(context.Background(), req, nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, models.TrainingSpecialEquipment, student.TrainingType)
}

func TestCreateValidation(t *testing.T) {
	fx := newServiceFixture(t)

	req := createRequest()
	req.Phone = "123"
	req.Company = ""

	_, err := fx.service.Create(context.Background(), req, nil, "", false)
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "手机号格式不正确", fields["phone"])
	assert.Equal(t, "必填项", fields["company"])
}

func TestCreateRequiresAttachmentsForMiniProgram(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.Create(context.Background(), createRequest(), nil, "wx-1", true)
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "必填项", fields["photo"])
	assert.Equal(t, "必填项", fields["diploma"])
	assert.Equal(t, "必填项", fields["id_card_front"])
	assert.Equal(t, "必填项", fields["id_card_back"])
	assert.NotContains(t, fields, "hukou_residence")
}

func TestCreateEquipmentRequiresHukouPages(t *testing.T) {
	fx := newServiceFixture(t)

	req := createRequest()
	req.JobCategory = "锅炉作业"
	files := map[models.AttachmentKind]*multipart.FileHeader{
		models.AttachmentPhoto:       pngUpload(t, "photo.png"),
		models.AttachmentDiploma:     pngUpload(t, "diploma.png"),
		models.AttachmentIDCardFront: pngUpload(t, "front.png"),
		models.AttachmentIDCardBack:  pngUpload(t, "back.png"),
	}

	_, err := fx.service.Create(context.Background(), req, files, "wx-1", true)
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "必填项", fields["hukou_residence"])
	assert.Equal(t, "必填项", fields["hukou_personal"])
}

func TestCreateWithFilesStoresAttachments(t *testing.T) {
	fx := newServiceFixture(t)

	files := map[models.AttachmentKind]*multipart.FileHeader{
		models.AttachmentPhoto:       pngUpload(t, "photo.png"),
		models.AttachmentDiploma:     pngUpload(t, "diploma.png"),
		models.AttachmentIDCardFront: pngUpload(t, "front.png"),
		models.AttachmentIDCardBack:  pngUpload(t, "back.png"),
	}

	student, err := fx.service.Create(context.Background(), createRequest(), files, "wx-1", true)
	require.NoError(t, err)
	assert.Equal(t, "wx-1", student.SubmitterOpenid)

	// The photo is normalized to a JPEG regardless of the upload format.
	assert.Equal(t, "students/甲公司-张三/110101199003070012张三-个人照片.jpg", student.PhotoPath)
	assert.Equal(t, "students/甲公司-张三/110101199003070012张三-学历证书.png", student.DiplomaPath)

	abs, err := fx.store.AbsPath(student.PhotoPath)
	require.NoError(t, err)
	img, err := imaging.Open(abs)
	require.NoError(t, err)
	tw, th := photo.TargetPixelBox()
	assert.Equal(t, tw, img.Bounds().Dx())
	assert.Equal(t, th, img.Bounds().Dy())
}

func TestUploadAttachmentReplacesOld(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)

	updated, err := fx.service.UploadAttachment(ctx, student.ID, models.AttachmentDiploma, pngUpload(t, "diploma.png"))
	require.NoError(t, err)
	require.NotEmpty(t, updated.DiplomaPath)

	abs, err := fx.store.AbsPath(updated.DiplomaPath)
	require.NoError(t, err)
	_, err = os.Stat(abs)
	require.NoError(t, err)

	// The generated training form slot only accepts generated output.
	_, err = fx.service.UploadAttachment(ctx, student.ID, models.AttachmentTrainingForm, pngUpload(t, "x.png"))
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestApproveRequiresAttachments(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)

	_, err = fx.service.Approve(ctx, student.ID)
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "必填项", fields["photo"])
}

func markAttachmentsOnFile(t *testing.T, fx *serviceFixture, id int64) {
	t.Helper()
	require.NoError(t, fx.repo.Update(context.Background(), id, map[string]any{
		"photo_path":         "students/甲公司-张三/p.jpg",
		"diploma_path":       "students/甲公司-张三/d.jpg",
		"id_card_front_path": "students/甲公司-张三/f.jpg",
		"id_card_back_path":  "students/甲公司-张三/b.jpg",
	}))
}

func TestApproveTransitionsStatus(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)
	markAttachmentsOnFile(t, fx, student.ID)

	// No template installed: approval still succeeds, form generation is
	// a best-effort side effect.
	approved, err := fx.service.Approve(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, approved.Status)
	assert.Empty(t, approved.TrainingFormPath)

	got, err := fx.repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, got.Status)
}

func TestGenerateDocumentsWithoutTemplate(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)

	_, err = fx.service.GenerateDocuments(ctx, student)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.Contains(t, err.Error(), "无可用文档模板")
}

func TestRejectKeepsRow(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)

	require.NoError(t, fx.service.Reject(ctx, student.ID, false))
	got, err := fx.repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestRejectWithDeleteRemovesRowAndFiles(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	files := map[models.AttachmentKind]*multipart.FileHeader{
		models.AttachmentDiploma: pngUpload(t, "diploma.png"),
	}
	student, err := fx.service.Create(ctx, createRequest(), files, "", false)
	require.NoError(t, err)
	abs, err := fx.store.AbsPath(student.DiplomaPath)
	require.NoError(t, err)

	require.NoError(t, fx.service.Reject(ctx, student.ID, true))
	_, err = fx.repo.GetByID(ctx, student.ID)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
	_, err = os.Stat(abs)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdatePartial(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	student, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)

	phone := "13900000000"
	category := "锅炉作业"
	updated, err := fx.service.Update(ctx, student.ID, &dto.UpdateStudentRequest{
		Phone:       &phone,
		JobCategory: &category,
	})
	require.NoError(t, err)
	assert.Equal(t, "13900000000", updated.Phone)
	assert.Equal(t, "锅炉作业", updated.JobCategory)
	// A job category change re-infers the training track.
	assert.Equal(t, models.TrainingSpecialEquipment, updated.TrainingType)

	bad := "123"
	_, err = fx.service.Update(ctx, student.ID, &dto.UpdateStudentRequest{Phone: &bad})
	require.Error(t, err)
	assert.Equal(t, "手机号格式不正确", apperrors.FieldErrors(err)["phone"])
}

func TestBatchApprovePartialFailure(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	first, err := fx.service.Create(ctx, createRequest(), nil, "", false)
	require.NoError(t, err)
	markAttachmentsOnFile(t, fx, first.ID)

	req := createRequest()
	req.Name = "李四"
	req.IDCard = "110101199003070020"
	second, err := fx.service.Create(ctx, req, nil, "", false)
	require.NoError(t, err)
	markAttachmentsOnFile(t, fx, second.ID)

	resp := fx.service.ApproveBatch(ctx, []int64{first.ID, 9999, second.ID})
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, []int64{9999}, resp.FailedIDs)
}

func TestWriteAttachmentsZip(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	files := map[models.AttachmentKind]*multipart.FileHeader{
		models.AttachmentDiploma: pngUpload(t, "diploma.png"),
	}
	student, err := fx.service.Create(ctx, createRequest(), files, "", false)
	require.NoError(t, err)

	// Unreviewed records may not be bundled.
	var buf bytes.Buffer
	_, err = fx.service.WriteAttachmentsZip(ctx, student.ID, &buf)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	require.NoError(t, fx.repo.UpdateStatus(ctx, student.ID, models.StatusReviewed))
	buf.Reset()
	filename, err := fx.service.WriteAttachmentsZip(ctx, student.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "110101199003070012-张三.zip", filename)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 1)
}

func TestGetByFilePathRejectsTraversal(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.GetByFilePath(context.Background(), "students/../database/students.db")
	assert.ErrorIs(t, err, apperrors.ErrUnsafePath)
}
