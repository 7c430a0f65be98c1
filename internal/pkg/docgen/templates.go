package docgen

import "strings"

// Form labels recognized in template tables. A cell whose text equals one
// of these gets the student value written into the cell to its right.
const (
	LabelName        = "姓名"
	LabelGender      = "性别"
	LabelIDCard      = "身份证号"
	LabelCompany     = "工作单位"
	LabelJobCategory = "作业类别"
	LabelExamProject = "操作项目"
)

// TrainingFormTemplate is the registration form every student gets.
const TrainingFormTemplate = "培训报名表.docx"

// healthCheckTemplates maps exam-project keywords to the medical form
// template that project requires.
var healthCheckTemplates = map[string]string{
	"叉车司机":  "叉车司机体检表.docx",
	"锅炉水处理": "锅炉水处理体检表.docx",
}

// HealthCheckTemplate returns the medical-form template for an exam
// project, matched by keyword substring. ok is false when the project
// needs no health check form.
func HealthCheckTemplate(examProject string) (string, bool) {
	if examProject == "" {
		return "", false
	}
	for keyword, template := range healthCheckTemplates {
		if strings.Contains(examProject, keyword) {
			return template, true
		}
	}
	return "", false
}
