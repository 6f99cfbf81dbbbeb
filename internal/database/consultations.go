package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const consultationSelect = "SELECT cr.id, cr.patient_id, cr.target_doctor_id, cr.subject_type, cr.subject_name, " +
	"cr.age_years, cr.gender, cr.weight_kg, cr.state_code, cr.spoken_language, cr.symptoms, cr.status, " +
	"cr.created_at, cr.updated_at, cr.responded_at, cr.responded_by_doctor_id, cr.transferred_by_doctor_id, " +
	"cr.linked_room_id, p.name, p.photo_url, d.name, d.photo_url, rd.name, td.name " +
	"FROM consultation_requests cr " +
	"JOIN users p ON p.id = cr.patient_id " +
	"JOIN users d ON d.id = cr.target_doctor_id " +
	"LEFT JOIN users rd ON rd.id = cr.responded_by_doctor_id " +
	"LEFT JOIN users td ON td.id = cr.transferred_by_doctor_id "

func scanConsultation(row rowScanner) (ConsultationRequest, error) {
	var (
		c                                      ConsultationRequest
		respondedAt                            sql.NullTime
		respondedBy, transferredBy, linkedRoom sql.NullString
		respondedByName, transferredByName     sql.NullString
	)
	err := row.Scan(
		&c.Id,
		&c.PatientId,
		&c.TargetDoctorId,
		&c.SubjectType,
		&c.SubjectName,
		&c.AgeYears,
		&c.Gender,
		&c.WeightKg,
		&c.StateCode,
		&c.SpokenLanguage,
		&c.Symptoms,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
		&respondedAt,
		&respondedBy,
		&transferredBy,
		&linkedRoom,
		&c.PatientName,
		&c.PatientPhotoURL,
		&c.TargetDoctorName,
		&c.TargetDoctorPhotoURL,
		&respondedByName,
		&transferredByName,
	)
	if err != nil {
		return ConsultationRequest{}, err
	}
	c.RespondedAt = timePtr(respondedAt)
	c.RespondedByDoctorId = stringPtr(respondedBy)
	c.TransferredByDoctorId = stringPtr(transferredBy)
	c.LinkedRoomId = stringPtr(linkedRoom)
	c.RespondedByDoctorName = stringPtr(respondedByName)
	c.TransferredByDoctorName = stringPtr(transferredByName)

	return c, nil
}

func (db *PgRepository) listConsultations(ctx context.Context, query string, args ...any) ([]ConsultationRequest, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consultation requests: %w", err)
	}
	defer rows.Close()

	var out []ConsultationRequest
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// CreateConsultationRequest returns ErrDuplicate when the pair already has an
// open (pending or accepted) request.
func (db *PgRepository) CreateConsultationRequest(ctx context.Context, req ConsultationRequest) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO consultation_requests (id, patient_id, target_doctor_id, subject_type, subject_name, "+
			"age_years, gender, weight_kg, state_code, spoken_language, symptoms, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		req.Id,
		req.PatientId,
		req.TargetDoctorId,
		req.SubjectType,
		req.SubjectName,
		req.AgeYears,
		req.Gender,
		req.WeightKg,
		req.StateCode,
		req.SpokenLanguage,
		req.Symptoms,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create consultation request: %w", translate(err))
	}

	return nil
}

func (db *PgRepository) GetConsultationRequest(ctx context.Context, id string) (ConsultationRequest, error) {
	c, err := scanConsultation(db.q.QueryRowContext(ctx, consultationSelect+"WHERE cr.id = $1", id))
	if err != nil {
		return ConsultationRequest{}, translate(err)
	}

	return c, nil
}

func (db *PgRepository) GetLatestConsultationRequestForPair(ctx context.Context, patientId, doctorId string) (ConsultationRequest, error) {
	c, err := scanConsultation(db.q.QueryRowContext(ctx,
		consultationSelect+"WHERE cr.patient_id = $1 AND cr.target_doctor_id = $2 ORDER BY cr.updated_at DESC LIMIT 1",
		patientId,
		doctorId,
	))
	if err != nil {
		return ConsultationRequest{}, translate(err)
	}

	return c, nil
}

func (db *PgRepository) GetConsultationRequestByRoom(ctx context.Context, roomId string) (ConsultationRequest, error) {
	c, err := scanConsultation(db.q.QueryRowContext(ctx,
		consultationSelect+"WHERE cr.linked_room_id = $1 ORDER BY cr.updated_at DESC LIMIT 1",
		roomId,
	))
	if err != nil {
		return ConsultationRequest{}, translate(err)
	}

	return c, nil
}

func (db *PgRepository) ListConsultationRequestsByPatient(ctx context.Context, patientId string) ([]ConsultationRequest, error) {
	return db.listConsultations(ctx,
		consultationSelect+"WHERE cr.patient_id = $1 ORDER BY cr.updated_at DESC",
		patientId,
	)
}

func (db *PgRepository) ListPendingConsultationRequests(ctx context.Context, doctorId string) ([]ConsultationRequest, error) {
	return db.listConsultations(ctx,
		consultationSelect+"WHERE cr.target_doctor_id = $1 AND cr.status = 'pending' ORDER BY cr.updated_at DESC",
		doctorId,
	)
}

func (db *PgRepository) ConsultationRequestExists(ctx context.Context, lookup ConsultationLookup) (bool, error) {
	statuses := make([]string, 0, len(lookup.Statuses))
	for _, s := range lookup.Statuses {
		statuses = append(statuses, string(s))
	}

	var exists bool
	err := db.q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM consultation_requests "+
			"WHERE patient_id = $1 AND target_doctor_id = $2 AND status = ANY($3) AND id <> $4)",
		lookup.PatientId,
		lookup.DoctorId,
		pq.Array(statuses),
		lookup.ExcludeId,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("consultation request exists: %w", err)
	}

	return exists, nil
}

// MarkConsultationAccepted only transitions pending requests; ErrStale means
// another caller already responded.
func (db *PgRepository) MarkConsultationAccepted(ctx context.Context, params RespondConsultationParams) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE consultation_requests SET status = 'accepted', linked_room_id = $2, responded_at = $3, "+
			"responded_by_doctor_id = $4, updated_at = $3 "+
			"WHERE id = $1 AND status = 'pending' AND target_doctor_id = $4",
		params.Id,
		params.RoomId,
		params.At,
		params.DoctorId,
	)
	if err != nil {
		return fmt.Errorf("accept consultation request: %w", translate(err))
	}

	return expectOne(res)
}

func (db *PgRepository) MarkConsultationRejected(ctx context.Context, params RespondConsultationParams) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE consultation_requests SET status = 'rejected', responded_at = $2, "+
			"responded_by_doctor_id = $3, updated_at = $2 "+
			"WHERE id = $1 AND status = 'pending' AND target_doctor_id = $3",
		params.Id,
		params.At,
		params.DoctorId,
	)
	if err != nil {
		return fmt.Errorf("reject consultation request: %w", err)
	}

	return expectOne(res)
}

func (db *PgRepository) TransferConsultationRequest(ctx context.Context, params TransferConsultationParams) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE consultation_requests SET target_doctor_id = $3, transferred_by_doctor_id = $2, updated_at = $4 "+
			"WHERE id = $1 AND status = 'pending' AND target_doctor_id = $2",
		params.Id,
		params.FromDoctorId,
		params.ToDoctorId,
		params.At,
	)
	if err != nil {
		return fmt.Errorf("transfer consultation request: %w", translate(err))
	}

	return expectOne(res)
}

func (db *PgRepository) UpdateConsultationDetails(ctx context.Context, req ConsultationRequest) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE consultation_requests SET subject_type = $2, subject_name = $3, age_years = $4, gender = $5, "+
			"weight_kg = $6, state_code = $7, spoken_language = $8, symptoms = $9, updated_at = $10 "+
			"WHERE id = $1 AND status <> 'rejected'",
		req.Id,
		req.SubjectType,
		req.SubjectName,
		req.AgeYears,
		req.Gender,
		req.WeightKg,
		req.StateCode,
		req.SpokenLanguage,
		req.Symptoms,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update consultation request: %w", err)
	}

	return expectOne(res)
}
