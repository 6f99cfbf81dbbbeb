package database

import (
	"context"
	"fmt"
)

func (db *PgRepository) GetMedicalRecord(ctx context.Context, patientId string) (MedicalRecord, error) {
	var rec MedicalRecord
	err := db.q.QueryRowContext(ctx,
		"SELECT patient_id, allergies, chronic_diseases, created_at, updated_at "+
			"FROM patient_medical_records WHERE patient_id = $1",
		patientId,
	).Scan(&rec.PatientId, &rec.Allergies, &rec.ChronicDiseases, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return MedicalRecord{}, translate(err)
	}

	return rec, nil
}

func (db *PgRepository) UpsertMedicalRecord(ctx context.Context, rec MedicalRecord) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO patient_medical_records (patient_id, allergies, chronic_diseases, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (patient_id) DO UPDATE SET allergies = EXCLUDED.allergies, "+
			"chronic_diseases = EXCLUDED.chronic_diseases, updated_at = EXCLUDED.updated_at",
		rec.PatientId,
		rec.Allergies,
		rec.ChronicDiseases,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}

	return nil
}

const entryColumns = "e.id, e.patient_id, e.room_id, e.doctor_id, d.name, e.diagnosis, e.prescribed_medications, " +
	"e.secret_notes, e.prescription_pdf_url, e.created_at, e.updated_at " +
	"FROM medical_record_entries e JOIN users d ON d.id = e.doctor_id "

func scanEntry(row rowScanner) (MedicalRecordEntry, error) {
	var e MedicalRecordEntry
	err := row.Scan(
		&e.Id,
		&e.PatientId,
		&e.RoomId,
		&e.DoctorId,
		&e.DoctorName,
		&e.Diagnosis,
		&e.PrescribedMedications,
		&e.SecretNotes,
		&e.PrescriptionPdfURL,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	return e, err
}

func (db *PgRepository) GetMedicalRecordEntry(ctx context.Context, roomId, doctorId string) (MedicalRecordEntry, error) {
	e, err := scanEntry(db.q.QueryRowContext(ctx,
		"SELECT "+entryColumns+"WHERE e.room_id = $1 AND e.doctor_id = $2 LIMIT 1",
		roomId,
		doctorId,
	))
	if err != nil {
		return MedicalRecordEntry{}, translate(err)
	}

	return e, nil
}

func (db *PgRepository) UpsertMedicalRecordEntry(ctx context.Context, entry MedicalRecordEntry) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO medical_record_entries (id, patient_id, room_id, doctor_id, diagnosis, prescribed_medications, "+
			"secret_notes, prescription_pdf_url, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) "+
			"ON CONFLICT (room_id, doctor_id) DO UPDATE SET diagnosis = EXCLUDED.diagnosis, "+
			"prescribed_medications = EXCLUDED.prescribed_medications, secret_notes = EXCLUDED.secret_notes, "+
			"prescription_pdf_url = EXCLUDED.prescription_pdf_url, updated_at = EXCLUDED.updated_at",
		entry.Id,
		entry.PatientId,
		entry.RoomId,
		entry.DoctorId,
		entry.Diagnosis,
		entry.PrescribedMedications,
		entry.SecretNotes,
		entry.PrescriptionPdfURL,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert medical record entry: %w", err)
	}

	return nil
}

func (db *PgRepository) ListMedicalRecordEntries(ctx context.Context, patientId string) ([]MedicalRecordEntry, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT "+entryColumns+"WHERE e.patient_id = $1 ORDER BY e.updated_at DESC",
		patientId,
	)
	if err != nil {
		return nil, fmt.Errorf("list medical record entries: %w", err)
	}
	defer rows.Close()

	var entries []MedicalRecordEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
