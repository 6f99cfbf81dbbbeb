package triage

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	maxListItems  = 12
	maxItemLen    = 280
	maxSummaryLen = 4000
	minQuestions  = 3
)

var (
	riskLevels  = []string{"low", "medium", "high", "emergency"}
	specialties = []string{"general_practice", "pediatrics", "gynecology", "emergency"}

	specialtyAliases = map[string]string{
		"general":             "general_practice",
		"general_medicine":    "general_practice",
		"generalist":          "general_practice",
		"medecin_generaliste": "general_practice",
		"pediatric":           "pediatrics",
		"pediatrician":        "pediatrics",
		"pediatre":            "pediatrics",
		"children":            "pediatrics",
		"gynaecology":         "gynecology",
		"gynecologue":         "gynecology",
		"obgyn":               "gynecology",
		"obstetrics":          "gynecology",
		"urgent":              "emergency",
		"urgences":            "emergency",
		"er":                  "emergency",
	}
)

// Result is the triage answer. Field names follow the model's JSON contract.
type Result struct {
	RiskLevel          string   `json:"risk_level"`
	RedFlags           []string `json:"red_flags"`
	FollowUpQuestions  []string `json:"follow_up_questions"`
	SuggestedSpecialty string   `json:"suggested_specialty"`
	SelfCare           []string `json:"self_care"`
	SeekUrgentCareIf   []string `json:"seek_urgent_care_if"`
	SummaryForDoctor   string   `json:"summary_for_doctor"`
}

type phrases struct {
	questions []string
	selfCare  []string
	urgent    []string
}

var defaults = map[string]phrases{
	"fr": {
		questions: []string{
			"Y a-t-il une douleur thoracique importante ?",
			"Avez-vous une mesure de saturation en oxygene (SpO2) ?",
			"Les symptomes s aggravent-ils rapidement ?",
		},
		selfCare: []string{
			"Hydratez-vous regulierement.",
			"Surveillez la temperature et l evolution des symptomes.",
		},
		urgent: []string{
			"Aggravation de la difficulte respiratoire.",
			"Perte de connaissance, confusion, ou douleur thoracique severe.",
			"Si les symptomes deviennent severes ou s aggravent, rendez-vous immediatement aux urgences.",
		},
	},
	"ar": {
		questions: []string{
			"هل يوجد ألم صدر شديد؟",
			"هل قياس الأكسجين (SpO2) متاح؟",
			"هل الأعراض تتفاقم بسرعة؟",
		},
		selfCare: []string{
			"اشرب سوائل بانتظام.",
			"راقب الحرارة وتطور الأعراض.",
		},
		urgent: []string{
			"تفاقم ضيق النفس.",
			"إغماء أو تشوش شديد أو ألم صدر قوي.",
			"إذا كانت الأعراض شديدة أو متفاقمة توجه للطوارئ فورًا.",
		},
	},
}

func phrasesFor(lang string) phrases {
	if p, ok := defaults[lang]; ok {
		return p
	}

	return defaults["ar"]
}

// cleanList trims, truncates and de-duplicates items, keeping at most limit.
func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		text := truncate(strings.TrimSpace(item), maxItemLen)
		if text == "" || slices.Contains(out, text) {
			continue
		}
		out = append(out, text)
		if len(out) >= limit {
			break
		}
	}

	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}

func normalizeSpecialty(raw, risk string) string {
	if risk == "emergency" {
		return "emergency"
	}

	v := strings.ToLower(strings.TrimSpace(raw))
	if slices.Contains(specialties, v) {
		return v
	}
	if alias, ok := specialtyAliases[v]; ok {
		return alias
	}

	return "general_practice"
}

// normalizeResult coerces a model answer into the contract: known enums,
// bounded lists, default guidance and a summary when the model gave none.
func normalizeResult(raw Result, in Input) Result {
	p := phrasesFor(in.Language)

	risk := strings.ToLower(strings.TrimSpace(raw.RiskLevel))
	if !slices.Contains(riskLevels, risk) {
		risk = "medium"
	}

	questions := cleanList(raw.FollowUpQuestions, maxListItems)
	for _, q := range p.questions {
		if len(questions) >= minQuestions {
			break
		}
		if !slices.Contains(questions, q) {
			questions = append(questions, q)
		}
	}

	selfCare := cleanList(raw.SelfCare, maxListItems)
	if len(selfCare) == 0 {
		selfCare = append(selfCare, p.selfCare...)
	}

	urgent := cleanList(raw.SeekUrgentCareIf, maxListItems)
	for _, u := range p.urgent {
		if !slices.Contains(urgent, u) {
			urgent = append(urgent, u)
		}
	}

	res := Result{
		RiskLevel:          risk,
		RedFlags:           cleanList(raw.RedFlags, maxListItems),
		FollowUpQuestions:  capList(questions),
		SuggestedSpecialty: normalizeSpecialty(raw.SuggestedSpecialty, risk),
		SelfCare:           capList(selfCare),
		SeekUrgentCareIf:   capList(urgent),
		SummaryForDoctor:   truncate(strings.TrimSpace(raw.SummaryForDoctor), maxSummaryLen),
	}
	if res.SummaryForDoctor == "" {
		res.SummaryForDoctor = summarize(in, res)
	}

	return res
}

func capList(items []string) []string {
	if len(items) > maxListItems {
		return items[:maxListItems]
	}

	return items
}

func summarize(in Input, res Result) string {
	if in.Language == "fr" {
		sex := "masculin"
		if in.Sex == "female" {
			sex = "feminin"
		}
		return fmt.Sprintf("Patient %s, %d ans, %s kg, symptomes: %s, duree: %s, niveau de risque: %s, specialite suggeree: %s.",
			sex, in.Age, formatWeight(in.WeightKg), in.Symptoms, in.Duration, res.RiskLevel, res.SuggestedSpecialty)
	}

	sex := "ذكر"
	if in.Sex == "female" {
		sex = "أنثى"
	}
	return fmt.Sprintf("مريض %s، العمر %d سنة، الوزن %s كغ، الأعراض: %s، المدة: %s، مستوى الخطورة: %s، التخصص المقترح: %s.",
		sex, in.Age, formatWeight(in.WeightKg), in.Symptoms, in.Duration, res.RiskLevel, res.SuggestedSpecialty)
}

func moderationFallback(lang string) Result {
	p := phrasesFor(lang)
	res := Result{
		RiskLevel:          "emergency",
		FollowUpQuestions:  p.questions,
		SuggestedSpecialty: "emergency",
		SelfCare:           p.selfCare,
		SeekUrgentCareIf:   p.urgent,
	}
	if lang == "fr" {
		res.RedFlags = []string{"Contenu sensible detecte"}
		res.SummaryForDoctor = "Demande de triage marquee comme contenu sensible. Prioriser evaluation humaine immediate."
	} else {
		res.RedFlags = []string{"تم رصد محتوى حساس"}
		res.SummaryForDoctor = "تم تعليم طلب الفرز كمحتوى حساس. يوصى بتقييم بشري فوري."
	}

	return res
}

func unavailableFallback(lang string) Result {
	p := phrasesFor(lang)
	res := Result{
		RiskLevel:          "high",
		FollowUpQuestions:  p.questions,
		SuggestedSpecialty: "general_practice",
		SelfCare:           p.selfCare,
		SeekUrgentCareIf:   p.urgent,
	}
	if lang == "fr" {
		res.RedFlags = []string{"Analyse IA temporairement indisponible"}
		res.SummaryForDoctor = "Analyse IA indisponible (erreur technique). Prioriser evaluation clinique humaine."
	} else {
		res.RedFlags = []string{"خدمة التحليل الذكي غير متاحة مؤقتًا"}
		res.SummaryForDoctor = "تعذر تنفيذ تحليل الذكاء الاصطناعي بسبب خطأ تقني. يُنصح بتقييم طبي بشري مباشر."
	}

	return res
}
