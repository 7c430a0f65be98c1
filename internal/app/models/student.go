package models

import "time"

// TrainingType identifies the certification track a student enrolls in.
// The track determines which attachments are required and which document
// template applies.
type TrainingType string

const (
	TrainingSpecialOperation TrainingType = "special_operation"
	TrainingSpecialEquipment TrainingType = "special_equipment"
)

// Valid reports whether the training type is one of the known tracks.
func (t TrainingType) Valid() bool {
	return t == TrainingSpecialOperation || t == TrainingSpecialEquipment
}

// Label returns the Chinese display label for the training type.
func (t TrainingType) Label() string {
	if t == TrainingSpecialEquipment {
		return "特种设备"
	}
	return "特种作业"
}

// StudentStatus represents the review workflow state of a record.
type StudentStatus string

const (
	StatusUnreviewed StudentStatus = "unreviewed"
	StatusReviewed   StudentStatus = "reviewed"
	StatusRejected   StudentStatus = "rejected"

	// StatusPending is a virtual filter value expanding to
	// unreviewed + rejected in list queries.
	StatusPending StudentStatus = "pending"
)

// Label returns the Chinese display label for the status.
func (s StudentStatus) Label() string {
	switch s {
	case StatusReviewed:
		return "已审核"
	case StatusRejected:
		return "已驳回"
	default:
		return "未审核"
	}
}

// GenderOptions are the two accepted gender values.
var GenderOptions = []string{"男", "女"}

// EducationOptions are the canonical education-level labels; legacy
// spellings are normalized onto these by validation.NormalizeEducation.
var EducationOptions = []string{
	"初中",
	"高中或同等学历",
	"中专或同等学历",
	"专科或同等学历",
	"本科或同等学历",
	"研究生及以上",
}

// Student is one trainee application row in the students table.
type Student struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Gender         string        `json:"gender"`
	Education      string        `json:"education"`
	School         string        `json:"school"`
	Major          string        `json:"major"`
	IDCard         string        `json:"id_card"`
	Phone          string        `json:"phone"`
	Company        string        `json:"company"`
	CompanyAddress string        `json:"company_address"`
	JobCategory    string        `json:"job_category"`
	ExamProject    string        `json:"exam_project"`
	ProjectCode    string        `json:"project_code"`
	TrainingType   TrainingType  `json:"training_type"`
	Status         StudentStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`

	PhotoPath          string `json:"photo_path"`
	DiplomaPath        string `json:"diploma_path"`
	IDCardFrontPath    string `json:"id_card_front_path"`
	IDCardBackPath     string `json:"id_card_back_path"`
	HukouResidencePath string `json:"hukou_residence_path"`
	HukouPersonalPath  string `json:"hukou_personal_path"`
	TrainingFormPath   string `json:"training_form_path"`

	// SubmitterOpenid is set for records submitted through the
	// mini-program; admin-entered records leave it empty.
	SubmitterOpenid string `json:"submitter_openid"`
}

// AttachmentPath returns the stored relative path for the given kind.
func (s *Student) AttachmentPath(kind AttachmentKind) string {
	switch kind {
	case AttachmentPhoto:
		return s.PhotoPath
	case AttachmentDiploma:
		return s.DiplomaPath
	case AttachmentIDCardFront:
		return s.IDCardFrontPath
	case AttachmentIDCardBack:
		return s.IDCardBackPath
	case AttachmentHukouResidence:
		return s.HukouResidencePath
	case AttachmentHukouPersonal:
		return s.HukouPersonalPath
	case AttachmentTrainingForm:
		return s.TrainingFormPath
	}
	return ""
}

// SetAttachmentPath stores the relative path for the given kind.
func (s *Student) SetAttachmentPath(kind AttachmentKind, rel string) {
	switch kind {
	case AttachmentPhoto:
		s.PhotoPath = rel
	case AttachmentDiploma:
		s.DiplomaPath = rel
	case AttachmentIDCardFront:
		s.IDCardFrontPath = rel
	case AttachmentIDCardBack:
		s.IDCardBackPath = rel
	case AttachmentHukouResidence:
		s.HukouResidencePath = rel
	case AttachmentHukouPersonal:
		s.HukouPersonalPath = rel
	case AttachmentTrainingForm:
		s.TrainingFormPath = rel
	}
}

// AllAttachmentPaths returns every non-empty attachment path on the record,
// generated training form included. Used for cleanup and zip bundling.
func (s *Student) AllAttachmentPaths() []string {
	var paths []string
	for _, kind := range AllAttachmentKinds {
		if p := s.AttachmentPath(kind); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
