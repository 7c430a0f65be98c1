package models

// AttachmentKind names one of the fixed attachment slots on a student
// record. The form field name doubles as the multipart input name.
type AttachmentKind string

const (
	AttachmentPhoto          AttachmentKind = "photo"
	AttachmentDiploma        AttachmentKind = "diploma"
	AttachmentIDCardFront    AttachmentKind = "id_card_front"
	AttachmentIDCardBack     AttachmentKind = "id_card_back"
	AttachmentHukouResidence AttachmentKind = "hukou_residence"
	AttachmentHukouPersonal  AttachmentKind = "hukou_personal"
	AttachmentTrainingForm   AttachmentKind = "training_form"
)

// AllAttachmentKinds lists every attachment slot, generated form included.
var AllAttachmentKinds = []AttachmentKind{
	AttachmentPhoto,
	AttachmentDiploma,
	AttachmentIDCardFront,
	AttachmentIDCardBack,
	AttachmentHukouResidence,
	AttachmentHukouPersonal,
	AttachmentTrainingForm,
}

// UploadableAttachmentKinds lists the slots accepted from form uploads.
var UploadableAttachmentKinds = []AttachmentKind{
	AttachmentPhoto,
	AttachmentDiploma,
	AttachmentIDCardFront,
	AttachmentIDCardBack,
	AttachmentHukouResidence,
	AttachmentHukouPersonal,
}

// attachmentLabels are the Chinese display labels used in stored filenames.
var attachmentLabels = map[AttachmentKind]string{
	AttachmentPhoto:          "个人照片",
	AttachmentDiploma:        "学历证书",
	AttachmentIDCardFront:    "身份证正面",
	AttachmentIDCardBack:     "身份证反面",
	AttachmentHukouResidence: "户口本户籍页",
	AttachmentHukouPersonal:  "户口本个人页",
	AttachmentTrainingForm:   "体检表",
}

// Label returns the Chinese filename label for the attachment kind.
func (k AttachmentKind) Label() string {
	if label, ok := attachmentLabels[k]; ok {
		return label
	}
	return string(k)
}

// DBColumn returns the students-table column storing this kind's path.
func (k AttachmentKind) DBColumn() string {
	return string(k) + "_path"
}

// RequiredAttachments returns the attachment set a record must carry
// before it can be created complete or transition to reviewed.
func RequiredAttachments(t TrainingType) []AttachmentKind {
	base := []AttachmentKind{
		AttachmentPhoto,
		AttachmentDiploma,
		AttachmentIDCardFront,
		AttachmentIDCardBack,
	}
	if t == TrainingSpecialEquipment {
		return append(base, AttachmentHukouResidence, AttachmentHukouPersonal)
	}
	return base
}
