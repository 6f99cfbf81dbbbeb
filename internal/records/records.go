// Package records aggregates a patient's medical record: the profile shared
// across doctors plus one entry per room and doctor.
package records

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/rooms"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyUpdate   = apperr.Validation("medical-record-empty-update", "at least one field is required")
	ErrInvalidPdfURL = apperr.Validation("medical-record-invalid-pdf-url", "prescriptionPdfUrl must be a valid URL")
	ErrNotRoomDoctor = apperr.Authorization("forbidden", "only the room doctor can update the medical record")

	httpURL = regexp.MustCompile(`(?i)^https?://`)
)

// Patch is a partial update. A nil field is left untouched, a present field
// replaces the stored value after trimming.
type Patch struct {
	Allergies             *string `json:"allergies"`
	ChronicDiseases       *string `json:"chronicDiseases"`
	Diagnosis             *string `json:"diagnosis"`
	PrescribedMedications *string `json:"prescribedMedications"`
	SecretNotes           *string `json:"secretNotes"`
	PrescriptionPdfURL    *string `json:"prescriptionPdfUrl"`
}

func (p Patch) touchesProfile() bool {
	return p.Allergies != nil || p.ChronicDiseases != nil
}

func (p Patch) touchesEntry() bool {
	return p.Diagnosis != nil || p.PrescribedMedications != nil || p.SecretNotes != nil || p.PrescriptionPdfURL != nil
}

type field struct {
	key   string
	value *string
	limit int
}

func (p *Patch) normalize() error {
	if !p.touchesProfile() && !p.touchesEntry() {
		return ErrEmptyUpdate
	}

	fields := []field{
		{"allergies", p.Allergies, 3000},
		{"chronicDiseases", p.ChronicDiseases, 3000},
		{"diagnosis", p.Diagnosis, 4000},
		{"prescribedMedications", p.PrescribedMedications, 4000},
		{"secretNotes", p.SecretNotes, 4000},
		{"prescriptionPdfUrl", p.PrescriptionPdfURL, 2000},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		*f.value = strings.TrimSpace(*f.value)
		if utf8.RuneCountInString(*f.value) > f.limit {
			return apperr.Validation("medical-record-invalid-field", f.key+" is too long.")
		}
	}

	if p.PrescriptionPdfURL != nil && *p.PrescriptionPdfURL != "" && !httpURL.MatchString(*p.PrescriptionPdfURL) {
		return ErrInvalidPdfURL
	}

	return nil
}

// Record is the aggregated view served to room participants.
type Record struct {
	PatientId                string
	Allergies                string
	ChronicDiseases          string
	History                  []database.Room
	PreviousDiagnoses        []string
	PrescribedMedications    []string
	LatestPrescriptionPdfURL *string
	UpdatedAt                *time.Time
	Entries                  []database.MedicalRecordEntry
}

type Service struct {
	repo     database.Repository
	registry *rooms.Registry
	now      func() time.Time
	log      *zap.Logger
}

func NewService(repo database.Repository, registry *rooms.Registry, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{repo: repo, registry: registry, now: now, log: logger}
}

// Get returns the record of the room's patient as seen by viewer.
func (s *Service) Get(ctx context.Context, viewer database.User, roomId string) (Record, error) {
	room, err := s.registry.Get(ctx, viewer.Id, roomId)
	if err != nil {
		return Record{}, err
	}
	if err := policy.Check(policy.RecordRead, viewer.Role); err != nil {
		return Record{}, err
	}

	return s.build(ctx, room.PatientId, viewer)
}

// Update merges p into the patient profile and into the caller's entry for
// the room. Only the room's doctor may write.
func (s *Service) Update(ctx context.Context, doctor database.User, roomId string, p Patch) (Record, error) {
	room, err := s.registry.Get(ctx, doctor.Id, roomId)
	if err != nil {
		return Record{}, err
	}
	if err := policy.Check(policy.RecordUpdate, doctor.Role); err != nil {
		return Record{}, ErrNotRoomDoctor
	}
	if room.DoctorId != doctor.Id {
		return Record{}, ErrNotRoomDoctor
	}

	if err := p.normalize(); err != nil {
		return Record{}, err
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(tx database.Repository) error {
		if err := s.mergeProfile(ctx, tx, room.PatientId, p, now); err != nil {
			return err
		}
		if p.touchesEntry() {
			return s.mergeEntry(ctx, tx, room, doctor.Id, p, now)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	s.log.Info("medical record updated",
		zap.String("room_id", room.Id),
		zap.String("doctor_id", doctor.Id),
		zap.Bool("entry", p.touchesEntry()),
	)

	return s.build(ctx, room.PatientId, doctor)
}

func (s *Service) mergeProfile(ctx context.Context, tx database.Repository, patientId string, p Patch, now time.Time) error {
	rec, err := tx.GetMedicalRecord(ctx, patientId)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		rec = database.MedicalRecord{PatientId: patientId, CreatedAt: now}
	}

	if p.Allergies != nil {
		rec.Allergies = *p.Allergies
	}
	if p.ChronicDiseases != nil {
		rec.ChronicDiseases = *p.ChronicDiseases
	}
	rec.UpdatedAt = now

	return tx.UpsertMedicalRecord(ctx, rec)
}

func (s *Service) mergeEntry(ctx context.Context, tx database.Repository, room database.Room, doctorId string, p Patch, now time.Time) error {
	entry, err := tx.GetMedicalRecordEntry(ctx, room.Id, doctorId)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		entry = database.MedicalRecordEntry{
			Id:        uuid.NewString(),
			PatientId: room.PatientId,
			RoomId:    room.Id,
			DoctorId:  doctorId,
			CreatedAt: now,
		}
	}

	if p.Diagnosis != nil {
		entry.Diagnosis = *p.Diagnosis
	}
	if p.PrescribedMedications != nil {
		entry.PrescribedMedications = *p.PrescribedMedications
	}
	if p.SecretNotes != nil {
		entry.SecretNotes = *p.SecretNotes
	}
	if p.PrescriptionPdfURL != nil {
		entry.PrescriptionPdfURL = *p.PrescriptionPdfURL
	}
	entry.UpdatedAt = now

	return tx.UpsertMedicalRecordEntry(ctx, entry)
}

func (s *Service) build(ctx context.Context, patientId string, viewer database.User) (Record, error) {
	var (
		profile database.MedicalRecord
		found   bool
		entries []database.MedicalRecordEntry
		history []database.Room
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.repo.GetMedicalRecord(gctx, patientId)
		switch {
		case err == nil:
			profile, found = rec, true
		case errors.Is(err, database.ErrNotFound):
		default:
			return fmt.Errorf("load profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = s.repo.ListMedicalRecordEntries(gctx, patientId)
		return err
	})
	g.Go(func() error {
		all, err := s.repo.ListRoomsForUser(gctx, patientId)
		if err != nil {
			return err
		}
		for _, r := range all {
			if r.PatientId == patientId {
				history = append(history, r)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Record{}, err
	}

	rec := Record{
		PatientId:             patientId,
		Allergies:             profile.Allergies,
		ChronicDiseases:       profile.ChronicDiseases,
		History:               history,
		PreviousDiagnoses:     uniqueNonEmpty(entries, func(e database.MedicalRecordEntry) string { return e.Diagnosis }),
		PrescribedMedications: uniqueNonEmpty(entries, func(e database.MedicalRecordEntry) string { return e.PrescribedMedications }),
		Entries:               make([]database.MedicalRecordEntry, 0, len(entries)),
	}

	// entries arrive newest first
	for _, e := range entries {
		if rec.LatestPrescriptionPdfURL == nil && strings.TrimSpace(e.PrescriptionPdfURL) != "" {
			u := strings.TrimSpace(e.PrescriptionPdfURL)
			rec.LatestPrescriptionPdfURL = &u
		}
		if viewer.Role != database.RoleDoctor || e.DoctorId != viewer.Id {
			e.SecretNotes = ""
		}
		rec.Entries = append(rec.Entries, e)
	}

	switch {
	case found:
		rec.UpdatedAt = &profile.UpdatedAt
	case len(entries) > 0:
		rec.UpdatedAt = &entries[0].UpdatedAt
	}

	return rec, nil
}

func uniqueNonEmpty(entries []database.MedicalRecordEntry, pick func(database.MedicalRecordEntry) string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := []string{}
	for _, e := range entries {
		v := strings.TrimSpace(pick(e))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
