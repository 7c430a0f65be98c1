package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTrainingType(t *testing.T) {
	assert.Equal(t, TrainingSpecialEquipment, InferTrainingType("锅炉作业"))
	assert.Equal(t, TrainingSpecialEquipment, InferTrainingType("电梯作业"))
	assert.Equal(t, TrainingSpecialOperation, InferTrainingType("电工作业"))
	// Unknown categories default to the operation track.
	assert.Equal(t, TrainingSpecialOperation, InferTrainingType("不存在的类别"))
	assert.Equal(t, TrainingSpecialOperation, InferTrainingType(""))
}

func TestRequiredAttachments(t *testing.T) {
	op := RequiredAttachments(TrainingSpecialOperation)
	assert.Equal(t, []AttachmentKind{
		AttachmentPhoto, AttachmentDiploma,
		AttachmentIDCardFront, AttachmentIDCardBack,
	}, op)

	eq := RequiredAttachments(TrainingSpecialEquipment)
	assert.Len(t, eq, 6)
	assert.Contains(t, eq, AttachmentHukouResidence)
	assert.Contains(t, eq, AttachmentHukouPersonal)
}

func TestAttachmentKindLabels(t *testing.T) {
	assert.Equal(t, "个人照片", AttachmentPhoto.Label())
	assert.Equal(t, "体检表", AttachmentTrainingForm.Label())
	assert.Equal(t, "photo_path", AttachmentPhoto.DBColumn())
	assert.Equal(t, "training_form_path", AttachmentTrainingForm.DBColumn())
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "已审核", StatusReviewed.Label())
	assert.Equal(t, "已驳回", StatusRejected.Label())
	assert.Equal(t, "未审核", StatusUnreviewed.Label())
	assert.Equal(t, "未审核", StudentStatus("bogus").Label())
}

func TestAttachmentPathAccessors(t *testing.T) {
	s := &Student{}
	s.SetAttachmentPath(AttachmentPhoto, "students/a-b/x.jpg")
	s.SetAttachmentPath(AttachmentTrainingForm, "students/a-b/y.docx")

	assert.Equal(t, "students/a-b/x.jpg", s.AttachmentPath(AttachmentPhoto))
	assert.Equal(t, "students/a-b/y.docx", s.AttachmentPath(AttachmentTrainingForm))
	assert.Empty(t, s.AttachmentPath(AttachmentDiploma))

	assert.ElementsMatch(t, []string{
		"students/a-b/x.jpg", "students/a-b/y.docx",
	}, s.AllAttachmentPaths())
}

func TestAllJobCategories(t *testing.T) {
	all := AllJobCategories()
	assert.Len(t, all, len(OperationJobCategories)+len(EquipmentJobCategories))
	// Operation categories come first.
	assert.Equal(t, OperationJobCategories[0].Name, all[0].Name)
	for _, c := range all {
		assert.NotEmpty(t, c.Name)
		assert.True(t, c.TrainingType.Valid())
	}
}
