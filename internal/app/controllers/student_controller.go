package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/models/dto"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/middleware"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/helpers"
)

// StudentController handles student record operations
type StudentController struct {
	studentService *services.StudentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService *services.StudentService) *StudentController {
	return &StudentController{studentService: studentService}
}

// Create handles enrollment submission, as JSON or multipart form with
// attachment files.
func (c *StudentController) Create(ctx *gin.Context) {
	req, files, err := bindStudentForm(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Create(ctx, req, files, "", false)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, student)
}

// MiniCreate handles a mini-program submission. The full attachment set
// is required and the record is bound to the submitter's openid.
func (c *StudentController) MiniCreate(ctx *gin.Context) {
	claims := middleware.ClaimsFrom(ctx)
	if claims == nil || claims.Openid == "" {
		middleware.HandleAPIError(ctx, apperrors.ErrUnauthorized)
		return
	}

	req, files, err := bindStudentForm(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Create(ctx, req, files, claims.Openid, true)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, student)
}

// List retrieves students matching the query filters. Mini-program
// callers only see their own submissions unless flagged as admins.
func (c *StudentController) List(ctx *gin.Context) {
	var query dto.ListStudentsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("无效的查询参数"))
		return
	}

	filter := repositories.ListFilter{
		Status:       query.Status,
		Search:       query.Search,
		Company:      query.Company,
		TrainingType: query.TrainingType,
	}

	if claims := middleware.ClaimsFrom(ctx); claims != nil && !claims.IsAdmin {
		filter.SubmitterOpenid = claims.Openid
	}

	resp := dto.ListStudentsResponse{}
	if query.PageSize > 0 {
		total, err := c.studentService.Count(ctx, filter)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}
		filter.Offset, filter.Limit = helpers.CalculateOffsetLimit(query.Page, query.PageSize)
		resp.Total = int(total)
		resp.Pagination = helpers.NewPaginationInfo(total, query.Page, query.PageSize)
	}

	students, err := c.studentService.List(ctx, filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if students == nil {
		students = []*models.Student{}
	}

	resp.Students = students
	if resp.Pagination == nil {
		resp.Total = len(students)
	}
	ctx.JSON(http.StatusOK, resp)
}

// Get retrieves one student
func (c *StudentController) Get(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Get(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, student)
}

// Update applies a partial update
func (c *StudentController) Update(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var req dto.UpdateStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("无效的请求数据"))
		return
	}

	student, err := c.studentService.Update(ctx, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, student)
}

// Delete removes a student and their attachments
func (c *StudentController) Delete(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if err := c.studentService.Delete(ctx, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "已删除"})
}

// Approve transitions a student to reviewed
func (c *StudentController) Approve(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Approve(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, student)
}

// Reject marks a student rejected, optionally deleting the record
func (c *StudentController) Reject(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var req dto.RejectStudentRequest
	// Body is optional; absence means keep the row.
	_ = ctx.ShouldBindJSON(&req)

	if err := c.studentService.Reject(ctx, id, req.Delete); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "已驳回"})
}

// Generate produces the filled training form for a student
func (c *StudentController) Generate(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Get(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	rel, err := c.studentService.GenerateDocuments(ctx, student)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.GenerateResponse{
		Message:     "materials generated",
		Path:        rel,
		DownloadURL: "/" + rel,
	})
}

// Upload stores one attachment for an existing student
func (c *StudentController) Upload(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	kind := models.AttachmentKind(ctx.PostForm("kind"))
	fh, fileErr := ctx.FormFile("file")
	if kind == "" || fileErr != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("缺少附件类型或文件"))
		return
	}

	student, err := c.studentService.UploadAttachment(ctx, id, kind, fh)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, student)
}

// AttachmentsZip streams a reviewed student's attachments as a zip
func (c *StudentController) AttachmentsZip(ctx *gin.Context) {
	id, err := pathID(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	// The service validates status before writing, so the header block
	// below only runs for a streamable record.
	student, err := c.studentService.Get(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if student.Status != models.StatusReviewed {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("仅支持已审核学员打包下载"))
		return
	}

	ctx.Header("Content-Type", "application/zip")
	ctx.Header("Content-Disposition", `attachment; filename="attachments.zip"`)
	if _, err := c.studentService.WriteAttachmentsZip(ctx, id, ctx.Writer); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
}

// BatchApprove approves several students, reporting partial success
func (c *StudentController) BatchApprove(ctx *gin.Context) {
	ids, ok := bindBatch(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, c.studentService.ApproveBatch(ctx, ids))
}

// BatchReject rejects several students
func (c *StudentController) BatchReject(ctx *gin.Context) {
	var req struct {
		IDs    []int64 `json:"ids" binding:"required,min=1"`
		Delete bool    `json:"delete"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("无效的请求数据"))
		return
	}
	ctx.JSON(http.StatusOK, c.studentService.RejectBatch(ctx, req.IDs, req.Delete))
}

// BatchDelete deletes several students
func (c *StudentController) BatchDelete(ctx *gin.Context) {
	ids, ok := bindBatch(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, c.studentService.DeleteBatch(ctx, ids))
}

// Companies lists distinct company names
func (c *StudentController) Companies(ctx *gin.Context) {
	companies, err := c.studentService.Companies(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if companies == nil {
		companies = []string{}
	}
	ctx.JSON(http.StatusOK, gin.H{"companies": companies})
}

func pathID(ctx *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequestError("无效的学员ID")
	}
	return id, nil
}

func bindBatch(ctx *gin.Context) ([]int64, bool) {
	var req dto.BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("无效的请求数据"))
		return nil, false
	}
	return req.IDs, true
}

// bindStudentForm accepts either a JSON body or a multipart form whose
// file parts are named after the attachment kinds.
func bindStudentForm(ctx *gin.Context) (*dto.CreateStudentRequest, map[models.AttachmentKind]*multipart.FileHeader, error) {
	var req dto.CreateStudentRequest

	contentType := ctx.ContentType()
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return nil, nil, apperrors.NewBadRequestError("无效的请求数据")
		}
		return &req, nil, nil
	}

	if err := ctx.ShouldBind(&req); err != nil {
		return nil, nil, apperrors.NewBadRequestError("无效的表单数据")
	}

	files := map[models.AttachmentKind]*multipart.FileHeader{}
	for _, kind := range models.UploadableAttachmentKinds {
		if fh, err := ctx.FormFile(string(kind)); err == nil && fh != nil {
			files[kind] = fh
		}
	}
	return &req, files, nil
}
