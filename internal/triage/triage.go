// Package triage runs a non-diagnostic symptom triage through OpenAI and
// audits every outcome.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"go.uber.org/zap"
)

const (
	moderationModel = "omni-moderation-latest"

	StatusSuccess           = "success"
	StatusInvalidInput      = "invalid_input"
	StatusUnavailable       = "unavailable"
	StatusModerationFlagged = "moderation_flagged"
	StatusFallback          = "fallback_ai_error"
)

var ErrNotConfigured = apperr.Unavailable("triage-openai-not-configured", "triage AI is not configured", nil)

const systemPrompt = `أنت مساعد فرز طبي (Triage) غير تشخيصي.
- لا تقدّم تشخيصًا نهائيًا.
- لا تقدّم أي جرعات دوائية أو وصفات دوائية.
- ركّز فقط على: مستوى الخطورة، مؤشرات الإنذار، أسئلة متابعة، نصائح سلامة عامة.
- إذا وجدت مؤشرات خطر، ارفع مستوى الخطورة واذكر ضرورة التوجه للطوارئ فورًا.
- استخدم لغة المستخدم (ar أو fr).
- يجب أن تكون suggested_specialty واحدة من: general_practice, pediatrics, gynecology, emergency.
- أعد JSON فقط بالمفاتيح: risk_level, red_flags, follow_up_questions, suggested_specialty, self_care, seek_urgent_care_if, summary_for_doctor.`

// Client is the subset of *openai.Client the service calls.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Moderations(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error)
}

type Service struct {
	client   Client
	model    string
	moderate bool
	audit    database.TriageAuditStore
	now      func() time.Time
	log      *zap.Logger
}

// NewService builds the triage service. A nil client leaves triage
// unavailable.
func NewService(client Client, model string, moderate bool, audit database.TriageAuditStore, logger *zap.Logger) *Service {
	return &Service{
		client:   client,
		model:    model,
		moderate: moderate,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

// NewOpenAIClient returns nil when apiKey is empty so the service reports
// itself unavailable.
func NewOpenAIClient(apiKey string) Client {
	if apiKey == "" {
		return nil
	}

	return openai.NewClient(apiKey)
}

// Analyze validates r and returns a triage result. Model failures and
// moderation hits degrade to a conservative fallback rather than an error.
func (s *Service) Analyze(ctx context.Context, userId string, r Request) (Result, error) {
	in, err := Normalize(r)
	if err != nil {
		s.record(ctx, userId, in, nil, false, StatusInvalidInput, err)
		return Result{}, err
	}

	if s.client == nil {
		s.record(ctx, userId, in, nil, false, StatusUnavailable, ErrNotConfigured)
		return Result{}, ErrNotConfigured
	}

	flagged := false
	if s.moderate {
		flagged, err = s.flagged(ctx, in)
		if err != nil {
			s.log.Warn("triage moderation failed", zap.Error(err))
		}
	}

	if flagged {
		res := moderationFallback(in.Language)
		s.record(ctx, userId, in, &res, true, StatusModerationFlagged,
			apperr.New(apperr.KindUnknown, "triage-content-flagged", "content flagged by moderation"))
		return res, nil
	}

	raw, err := s.complete(ctx, in)
	if err != nil {
		s.log.Error("triage completion failed", zap.String("user_id", userId), zap.Error(err))
		res := normalizeResult(unavailableFallback(in.Language), in)
		s.record(ctx, userId, in, &res, flagged, StatusFallback,
			apperr.New(apperr.KindUnknown, "triage-fallback", truncate(err.Error(), 500)))
		return res, nil
	}

	res := normalizeResult(raw, in)
	s.record(ctx, userId, in, &res, flagged, StatusSuccess, nil)

	return res, nil
}

func (s *Service) flagged(ctx context.Context, in Input) (bool, error) {
	resp, err := s.client.Moderations(ctx, openai.ModerationRequest{
		Model: moderationModel,
		Input: in.Symptoms + "\n" + in.Duration,
	})
	if err != nil {
		return false, err
	}

	for _, r := range resp.Results {
		if r.Flagged {
			return true, nil
		}
	}

	return false, nil
}

func (s *Service) complete(ctx context.Context, in Input) (Result, error) {
	payload, err := json.Marshal(struct {
		Input
		Country string `json:"country"`
	}{in, "TD"})
	if err != nil {
		return Result{}, err
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("triage-empty-output")
	}

	return parseResult(resp.Choices[0].Message.Content)
}

// parseResult decodes the model output, tolerating prose around the object.
func parseResult(text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, errors.New("triage-empty-output")
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err == nil {
		return res, nil
	}

	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first == -1 || last <= first {
		return Result{}, errors.New("triage-invalid-json-output")
	}
	if err := json.Unmarshal([]byte(text[first:last+1]), &res); err != nil {
		return Result{}, fmt.Errorf("triage-invalid-json-output: %w", err)
	}

	return res, nil
}

// record writes the audit row. Audit failures are logged and swallowed.
func (s *Service) record(ctx context.Context, userId string, in Input, res *Result, flagged bool, status string, cause error) {
	entry := database.TriageAuditLog{
		Id:                uuid.NewString(),
		UserId:            userId,
		AgeYears:          in.Age,
		Sex:               in.Sex,
		WeightKg:          in.WeightKg,
		Pregnant:          in.Pregnant,
		Symptoms:          in.Symptoms,
		DurationText:      in.Duration,
		Language:          in.Language,
		ModelName:         s.model,
		ModerationFlagged: flagged,
		Status:            status,
		CreatedAt:         s.now(),
	}
	if res != nil {
		entry.RiskLevel = &res.RiskLevel
		entry.SuggestedSpecialty = &res.SuggestedSpecialty
		entry.RedFlags = res.RedFlags
		entry.FollowUpQuestions = res.FollowUpQuestions
		entry.SelfCare = res.SelfCare
		entry.SeekUrgentCareIf = res.SeekUrgentCareIf
		entry.SummaryForDoctor = res.SummaryForDoctor
	}

	var appErr *apperr.Error
	if errors.As(cause, &appErr) {
		code, msg := appErr.Code, appErr.Message
		entry.ErrorCode = &code
		entry.ErrorMessage = &msg
	}

	if err := s.audit.InsertTriageAuditLog(ctx, entry); err != nil {
		s.log.Error("triage audit log failed", zap.Error(err))
	}
}
