package validation

import (
	"regexp"
	"strings"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
)

var (
	idCardPattern = regexp.MustCompile(`^\d{17}[\dXx]$`)
	phonePattern  = regexp.MustCompile(`^\d{11}$`)
)

// educationAliases maps historical spellings onto the canonical labels.
var educationAliases = map[string]string{
	"高中":  "高中或同等学历",
	"中专":  "中专或同等学历",
	"大专":  "专科或同等学历",
	"专科":  "专科或同等学历",
	"本科":  "本科或同等学历",
	"研究生": "研究生及以上",
	"硕士":  "研究生及以上",
	"博士":  "研究生及以上",
}

// ValidIDCard reports whether s is 17 digits plus a digit/X checksum char.
func ValidIDCard(s string) bool {
	return idCardPattern.MatchString(s)
}

// ValidPhone reports whether s is an 11-digit phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidGender reports whether s is one of the accepted gender values.
func ValidGender(s string) bool {
	for _, opt := range models.GenderOptions {
		if s == opt {
			return true
		}
	}
	return false
}

// NormalizeEducation maps a raw education value onto a canonical label.
// Unknown values are returned trimmed but otherwise untouched.
func NormalizeEducation(raw string) string {
	val := strings.TrimSpace(raw)
	if canonical, ok := educationAliases[val]; ok {
		return canonical
	}
	return val
}

// StudentFields validates the provided field map. requiredFields lists the
// fields that must be present and non-empty; pass nil for a full-record
// check and an empty slice for a partial update.
func StudentFields(fields map[string]string, requiredFields []string) error {
	if requiredFields == nil {
		requiredFields = []string{
			"name", "gender", "education", "id_card", "phone",
			"company", "company_address", "job_category",
		}
	}

	errs := map[string]string{}

	for _, field := range requiredFields {
		if strings.TrimSpace(fields[field]) == "" {
			errs[field] = "必填项"
		}
	}

	if gender, ok := fields["gender"]; ok && gender != "" && !ValidGender(gender) {
		errs["gender"] = `性别须为"男"或"女"`
	}

	if idCard, ok := fields["id_card"]; ok && idCard != "" && !ValidIDCard(idCard) {
		errs["id_card"] = "身份证号格式不正确"
	}

	if phone, ok := fields["phone"]; ok && phone != "" && !ValidPhone(phone) {
		errs["phone"] = "手机号格式不正确"
	}

	if len(errs) > 0 {
		return apperrors.NewValidationError("validation_failed", errs)
	}
	return nil
}
