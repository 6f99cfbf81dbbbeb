package consultation

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
)

const (
	SubjectSelf  = "self"
	SubjectOther = "other"
)

var (
	genders   = []string{"male", "female"}
	languages = []string{"ar", "fr", "bilingual"}

	// StateCodes are the 23 administrative provinces of Chad.
	StateCodes = []string{
		"barh_el_gazel", "batha", "borkou", "chari_baguirmi", "ennedi_est",
		"ennedi_ouest", "guera", "hadjer_lamis", "kanem", "lac",
		"logone_occidental", "logone_oriental", "mandoul", "mayo_kebbi_est",
		"mayo_kebbi_ouest", "moyen_chari", "n_djamena", "ouaddai", "salamat",
		"sila", "tandjile", "tibesti", "wadi_fira",
	}
)

// Input carries caller supplied request details. Nil fields are absent: on
// create they fail validation, on edit they keep the stored value.
type Input struct {
	SubjectType    *string  `json:"subjectType"`
	SubjectName    *string  `json:"subjectName"`
	AgeYears       *float64 `json:"ageYears"`
	Gender         *string  `json:"gender"`
	WeightKg       *float64 `json:"weightKg"`
	StateCode      *string  `json:"stateCode"`
	SpokenLanguage *string  `json:"spokenLanguage"`
	Symptoms       *string  `json:"symptoms"`
}

// merge overlays the present fields of in onto the stored request.
func (in Input) merge(req database.ConsultationRequest) Input {
	age := float64(req.AgeYears)
	out := Input{
		SubjectType:    &req.SubjectType,
		SubjectName:    &req.SubjectName,
		AgeYears:       &age,
		Gender:         &req.Gender,
		WeightKg:       &req.WeightKg,
		StateCode:      &req.StateCode,
		SpokenLanguage: &req.SpokenLanguage,
		Symptoms:       &req.Symptoms,
	}
	if in.SubjectType != nil {
		out.SubjectType = in.SubjectType
	}
	if in.SubjectName != nil {
		out.SubjectName = in.SubjectName
	}
	if in.AgeYears != nil {
		out.AgeYears = in.AgeYears
	}
	if in.Gender != nil {
		out.Gender = in.Gender
	}
	if in.WeightKg != nil {
		out.WeightKg = in.WeightKg
	}
	if in.StateCode != nil {
		out.StateCode = in.StateCode
	}
	if in.SpokenLanguage != nil {
		out.SpokenLanguage = in.SpokenLanguage
	}
	if in.Symptoms != nil {
		out.Symptoms = in.Symptoms
	}

	return out
}

// Normalize validates in and returns the request details it describes. For
// subject type "self" the subject name is patientName.
func Normalize(in Input, patientName string) (database.ConsultationRequest, error) {
	var req database.ConsultationRequest

	req.SubjectType = str(in.SubjectType)
	if req.SubjectType != SubjectSelf && req.SubjectType != SubjectOther {
		return req, apperr.Validation("consultation-subject-type-invalid", "subjectType must be self or other")
	}

	if req.SubjectType == SubjectSelf {
		req.SubjectName = strings.TrimSpace(patientName)
	} else {
		req.SubjectName = str(in.SubjectName)
	}
	if utf8.RuneCountInString(req.SubjectName) < 2 {
		return req, apperr.Validation("consultation-subject-name-required", "subject name is required")
	}

	if in.AgeYears == nil || !isWhole(*in.AgeYears) || *in.AgeYears < 0 || *in.AgeYears > 120 {
		return req, apperr.Validation("consultation-age-invalid", "ageYears must be an integer between 0 and 120")
	}
	req.AgeYears = int(*in.AgeYears)

	req.Gender = str(in.Gender)
	if !slices.Contains(genders, req.Gender) {
		return req, apperr.Validation("consultation-gender-invalid", "gender must be male or female")
	}

	if in.WeightKg == nil || math.IsNaN(*in.WeightKg) || *in.WeightKg < 1 || *in.WeightKg > 400 {
		return req, apperr.Validation("consultation-weight-invalid", "weightKg must be between 1 and 400")
	}
	req.WeightKg = *in.WeightKg

	req.StateCode = strings.ToLower(str(in.StateCode))
	if !slices.Contains(StateCodes, req.StateCode) {
		return req, apperr.Validation("consultation-state-invalid", "stateCode is invalid")
	}

	req.SpokenLanguage = strings.ToLower(str(in.SpokenLanguage))
	if !slices.Contains(languages, req.SpokenLanguage) {
		return req, apperr.Validation("consultation-language-invalid", "spokenLanguage must be ar, fr, or bilingual")
	}

	req.Symptoms = str(in.Symptoms)
	if n := utf8.RuneCountInString(req.Symptoms); n < 5 || n > 2000 {
		return req, apperr.Validation("consultation-symptoms-invalid", "symptoms must be between 5 and 2000 characters")
	}

	return req, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}

	return strings.TrimSpace(*s)
}

func isWhole(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}
