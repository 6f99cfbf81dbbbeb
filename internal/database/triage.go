package database

import (
	"context"
	"encoding/json"
	"fmt"
)

func jsonList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}

	return json.Marshal(items)
}

func (db *PgRepository) InsertTriageAuditLog(ctx context.Context, entry TriageAuditLog) error {
	lists := make([][]byte, 0, 4)
	for _, l := range [][]string{entry.RedFlags, entry.FollowUpQuestions, entry.SelfCare, entry.SeekUrgentCareIf} {
		b, err := jsonList(l)
		if err != nil {
			return fmt.Errorf("encode triage list: %w", err)
		}
		lists = append(lists, b)
	}

	var userId *string
	if entry.UserId != "" {
		userId = &entry.UserId
	}

	_, err := db.q.ExecContext(ctx,
		"INSERT INTO triage_audit_logs (id, user_id, age_years, sex, weight_kg, pregnant, symptoms, duration_text, "+
			"language, risk_level, suggested_specialty, red_flags, follow_up_questions, self_care, seek_urgent_care_if, "+
			"summary_for_doctor, model_name, moderation_flagged, status, error_code, error_message, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)",
		entry.Id,
		userId,
		entry.AgeYears,
		entry.Sex,
		entry.WeightKg,
		entry.Pregnant,
		entry.Symptoms,
		entry.DurationText,
		entry.Language,
		entry.RiskLevel,
		entry.SuggestedSpecialty,
		string(lists[0]),
		string(lists[1]),
		string(lists[2]),
		string(lists[3]),
		entry.SummaryForDoctor,
		entry.ModelName,
		entry.ModerationFlagged,
		entry.Status,
		entry.ErrorCode,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert triage audit log: %w", err)
	}

	return nil
}
