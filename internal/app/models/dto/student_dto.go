package dto

import "github.com/luoxh/trainsys/internal/app/models"

// CreateStudentRequest carries a new enrollment, from JSON or multipart
// form fields. Domain validation produces the field-level messages, so
// binding tags stay permissive here.
type CreateStudentRequest struct {
	Name           string `json:"name" form:"name"`
	Gender         string `json:"gender" form:"gender"`
	Education      string `json:"education" form:"education"`
	School         string `json:"school" form:"school"`
	Major          string `json:"major" form:"major"`
	IDCard         string `json:"id_card" form:"id_card"`
	Phone          string `json:"phone" form:"phone"`
	Company        string `json:"company" form:"company"`
	CompanyAddress string `json:"company_address" form:"company_address"`
	JobCategory    string `json:"job_category" form:"job_category"`
	ExamProject    string `json:"exam_project" form:"exam_project"`
	ProjectCode    string `json:"project_code" form:"project_code"`
	TrainingType   string `json:"training_type" form:"training_type" binding:"omitempty,oneof=special_operation special_equipment"`
}

// UpdateStudentRequest carries a partial update; nil fields are left
// untouched.
type UpdateStudentRequest struct {
	Name           *string `json:"name"`
	Gender         *string `json:"gender"`
	Education      *string `json:"education"`
	School         *string `json:"school"`
	Major          *string `json:"major"`
	IDCard         *string `json:"id_card"`
	Phone          *string `json:"phone"`
	Company        *string `json:"company"`
	CompanyAddress *string `json:"company_address"`
	JobCategory    *string `json:"job_category"`
	ExamProject    *string `json:"exam_project"`
	ProjectCode    *string `json:"project_code"`
	TrainingType   *string `json:"training_type" binding:"omitempty,oneof=special_operation special_equipment"`
}

// ListStudentsQuery are the supported list filters.
type ListStudentsQuery struct {
	Status       string `form:"status" binding:"omitempty,oneof=unreviewed reviewed rejected pending"`
	Search       string `form:"search"`
	Company      string `form:"company"`
	TrainingType string `form:"training_type" binding:"omitempty,oneof=special_operation special_equipment"`

	// Page and PageSize are optional; leaving PageSize at zero returns
	// every matching record in one response.
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// PaginationInfo describes one page of a paged listing.
type PaginationInfo struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
}

// RejectStudentRequest controls the reject action. Delete additionally
// removes the row and its files instead of keeping it as rejected.
type RejectStudentRequest struct {
	Delete bool `json:"delete"`
}

// BatchRequest names the records a batch action applies to.
type BatchRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// BatchResponse reports a batch action's partial-success outcome.
type BatchResponse struct {
	Requested int     `json:"requested"`
	Succeeded int     `json:"succeeded"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// ListStudentsResponse wraps a student listing.
type ListStudentsResponse struct {
	Students   []*models.Student `json:"students"`
	Total      int               `json:"total"`
	Pagination *PaginationInfo   `json:"pagination,omitempty"`
}

// GenerateResponse reports a generated document.
type GenerateResponse struct {
	Message     string `json:"message"`
	Path        string `json:"path"`
	DownloadURL string `json:"download_url"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
