package triage

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sihhaapp/sihha/internal/apperr"
)

// Flag is a boolean that also accepts 0/1 and "yes"/"no" style strings.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}

	return nil
}

// Request is the raw analyze payload.
type Request struct {
	Age      *float64 `json:"age"`
	Sex      string   `json:"sex"`
	WeightKg *float64 `json:"weightKg"`
	Pregnant Flag     `json:"pregnant"`
	Symptoms string   `json:"symptoms"`
	Duration string   `json:"duration"`
	Language string   `json:"language"`
}

// Input is a validated request.
type Input struct {
	Age      int     `json:"age"`
	Sex      string  `json:"sex"`
	WeightKg float64 `json:"weightKg"`
	Pregnant bool    `json:"pregnant"`
	Symptoms string  `json:"symptoms"`
	Duration string  `json:"duration"`
	Language string  `json:"locale"`
}

func Normalize(r Request) (Input, error) {
	in := Input{
		Sex:      strings.ToLower(strings.TrimSpace(r.Sex)),
		Pregnant: bool(r.Pregnant),
		Symptoms: strings.TrimSpace(r.Symptoms),
		Duration: strings.TrimSpace(r.Duration),
		Language: "ar",
	}
	if strings.ToLower(strings.TrimSpace(r.Language)) == "fr" {
		in.Language = "fr"
	}

	if r.Age == nil || *r.Age != math.Trunc(*r.Age) || *r.Age < 0 || *r.Age > 120 {
		return in, apperr.Validation("triage-invalid-age", "age must be an integer between 0 and 120")
	}
	in.Age = int(*r.Age)

	if in.Sex != "male" && in.Sex != "female" {
		return in, apperr.Validation("triage-invalid-sex", "sex must be male or female")
	}

	if r.WeightKg == nil || math.IsNaN(*r.WeightKg) || *r.WeightKg < 1 || *r.WeightKg > 400 {
		return in, apperr.Validation("triage-invalid-weight", "weightKg must be between 1 and 400")
	}
	in.WeightKg = math.Round(*r.WeightKg*100) / 100

	if in.Sex == "male" && in.Pregnant {
		return in, apperr.Validation("triage-invalid-pregnancy", "pregnant cannot be true for male sex")
	}

	if n := utf8.RuneCountInString(in.Symptoms); n < 5 || n > 3000 {
		return in, apperr.Validation("triage-invalid-symptoms", "symptoms must be between 5 and 3000 characters")
	}

	if n := utf8.RuneCountInString(in.Duration); n < 1 || n > 120 {
		return in, apperr.Validation("triage-invalid-duration", "duration must be between 1 and 120 characters")
	}

	return in, nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
