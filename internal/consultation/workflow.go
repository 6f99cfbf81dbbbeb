// Package consultation implements the patient to doctor request workflow:
// pending requests are accepted, rejected or transferred by their target
// doctor, and acceptance opens the pair's room.
package consultation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/rooms"
	"go.uber.org/zap"
)

var (
	ErrDoctorRequired  = apperr.Validation("doctor-required", "doctorId is required")
	ErrDoctorNotFound  = apperr.NotFound("doctor-not-found", "doctor not found")
	ErrUserNotFound    = apperr.NotFound("consultation-user-not-found", "related user not found")
	ErrRequestNotFound = apperr.NotFound("consultation-request-not-found", "consultation request not found")
	ErrNoAccess        = apperr.Authorization("forbidden", "no access to this consultation request")
	ErrRoomExists      = apperr.Conflict("consultation-room-exists", "a consultation room already exists for this doctor")
	ErrRequestPending  = apperr.Conflict("consultation-request-pending", "a pending request already exists for this doctor")
	ErrRequestExists   = apperr.Conflict("consultation-request-exists", "an existing consultation with this doctor already exists")
	ErrNotPending      = apperr.Conflict("consultation-request-not-pending", "consultation request is not pending")
	ErrRequestRejected = apperr.Conflict("consultation-request-rejected", "cannot update a rejected request")
	ErrTransferToSelf  = apperr.Validation("consultation-transfer-same-doctor", "cannot transfer to the same doctor")
)

type Workflow struct {
	repo     database.Repository
	registry *rooms.Registry
	now      func() time.Time
	log      *zap.Logger
}

func NewWorkflow(repo database.Repository, registry *rooms.Registry, logger *zap.Logger, now func() time.Time) *Workflow {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Workflow{
		repo:     repo,
		registry: registry,
		now:      now,
		log:      logger,
	}
}

// Create files a pending request from patient to doctorId.
func (w *Workflow) Create(ctx context.Context, patient database.User, doctorId string, in Input) (database.ConsultationRequest, error) {
	if err := policy.Check(policy.ConsultationCreate, patient.Role); err != nil {
		return database.ConsultationRequest{}, err
	}

	doctorId = strings.TrimSpace(doctorId)
	if doctorId == "" {
		return database.ConsultationRequest{}, ErrDoctorRequired
	}

	req, err := Normalize(in, patient.Name)
	if err != nil {
		return database.ConsultationRequest{}, err
	}

	doctor, err := w.doctor(ctx, doctorId)
	if err != nil {
		return database.ConsultationRequest{}, err
	}

	room, err := w.repo.GetRoom(ctx, rooms.RoomID(patient.Id, doctor.Id))
	switch {
	case err == nil && !room.Closed:
		return database.ConsultationRequest{}, ErrRoomExists
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return database.ConsultationRequest{}, err
	}

	pending, err := w.repo.ConsultationRequestExists(ctx, database.ConsultationLookup{
		PatientId: patient.Id,
		DoctorId:  doctor.Id,
		Statuses:  []database.ConsultationStatus{database.ConsultationPending},
	})
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if pending {
		return database.ConsultationRequest{}, ErrRequestPending
	}

	open, err := w.repo.ConsultationRequestExists(ctx, database.ConsultationLookup{
		PatientId: patient.Id,
		DoctorId:  doctor.Id,
		Statuses:  []database.ConsultationStatus{database.ConsultationPending, database.ConsultationAccepted},
	})
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if open {
		return database.ConsultationRequest{}, ErrRequestExists
	}

	now := w.now()
	req.Id = uuid.NewString()
	req.PatientId = patient.Id
	req.TargetDoctorId = doctor.Id
	req.Status = database.ConsultationPending
	req.CreatedAt = now
	req.UpdatedAt = now

	if err := w.repo.CreateConsultationRequest(ctx, req); err != nil {
		// the partial unique index closes the window left by the checks above
		if errors.Is(err, database.ErrDuplicate) {
			return database.ConsultationRequest{}, ErrRequestExists
		}
		return database.ConsultationRequest{}, err
	}

	w.log.Info("consultation request created",
		zap.String("request_id", req.Id),
		zap.String("patient_id", patient.Id),
		zap.String("doctor_id", doctor.Id),
	)

	return w.reload(ctx, req)
}

// Accept moves a pending request to accepted and creates or reopens the pair's
// room in the same transaction.
func (w *Workflow) Accept(ctx context.Context, doctor database.User, requestId string) (database.ConsultationRequest, database.Room, error) {
	req, err := w.targeted(ctx, policy.ConsultationAccept, doctor, requestId)
	if err != nil {
		return database.ConsultationRequest{}, database.Room{}, err
	}
	if req.Status != database.ConsultationPending {
		return database.ConsultationRequest{}, database.Room{}, ErrNotPending
	}

	patient, err := w.repo.GetUserById(ctx, req.PatientId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.ConsultationRequest{}, database.Room{}, ErrUserNotFound
		}
		return database.ConsultationRequest{}, database.Room{}, err
	}

	var room database.Room
	err = w.repo.WithTx(ctx, func(tx database.Repository) error {
		var err error
		room, err = w.registry.WithStore(tx).CreateOrGet(ctx, patient, doctor)
		if err != nil {
			return err
		}

		return tx.MarkConsultationAccepted(ctx, database.RespondConsultationParams{
			Id:       req.Id,
			DoctorId: doctor.Id,
			RoomId:   room.Id,
			At:       w.now(),
		})
	})
	if err != nil {
		if errors.Is(err, database.ErrStale) {
			return database.ConsultationRequest{}, database.Room{}, ErrNotPending
		}
		return database.ConsultationRequest{}, database.Room{}, err
	}

	w.log.Info("consultation request accepted",
		zap.String("request_id", req.Id),
		zap.String("room_id", room.Id),
	)

	req, err = w.reload(ctx, req)
	return req, room, err
}

func (w *Workflow) Reject(ctx context.Context, doctor database.User, requestId string) (database.ConsultationRequest, error) {
	req, err := w.targeted(ctx, policy.ConsultationReject, doctor, requestId)
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if req.Status != database.ConsultationPending {
		return database.ConsultationRequest{}, ErrNotPending
	}

	err = w.repo.MarkConsultationRejected(ctx, database.RespondConsultationParams{
		Id:       req.Id,
		DoctorId: doctor.Id,
		At:       w.now(),
	})
	if err != nil {
		if errors.Is(err, database.ErrStale) {
			return database.ConsultationRequest{}, ErrNotPending
		}
		return database.ConsultationRequest{}, err
	}

	return w.reload(ctx, req)
}

// Transfer hands a pending request to another doctor. The request stays
// pending and remembers who transferred it.
func (w *Workflow) Transfer(ctx context.Context, doctor database.User, requestId, newDoctorId string) (database.ConsultationRequest, error) {
	req, err := w.targeted(ctx, policy.ConsultationTransfer, doctor, requestId)
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if req.Status != database.ConsultationPending {
		return database.ConsultationRequest{}, ErrNotPending
	}

	newDoctorId = strings.TrimSpace(newDoctorId)
	if newDoctorId == "" {
		return database.ConsultationRequest{}, ErrDoctorRequired
	}
	if newDoctorId == doctor.Id {
		return database.ConsultationRequest{}, ErrTransferToSelf
	}
	if _, err := w.doctor(ctx, newDoctorId); err != nil {
		return database.ConsultationRequest{}, err
	}

	pending, err := w.repo.ConsultationRequestExists(ctx, database.ConsultationLookup{
		PatientId: req.PatientId,
		DoctorId:  newDoctorId,
		Statuses:  []database.ConsultationStatus{database.ConsultationPending},
		ExcludeId: req.Id,
	})
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if pending {
		return database.ConsultationRequest{}, ErrRequestPending
	}

	err = w.repo.TransferConsultationRequest(ctx, database.TransferConsultationParams{
		Id:           req.Id,
		FromDoctorId: doctor.Id,
		ToDoctorId:   newDoctorId,
		At:           w.now(),
	})
	switch {
	case errors.Is(err, database.ErrStale):
		return database.ConsultationRequest{}, ErrNotPending
	case errors.Is(err, database.ErrDuplicate):
		return database.ConsultationRequest{}, ErrRequestExists
	case err != nil:
		return database.ConsultationRequest{}, err
	}

	w.log.Info("consultation request transferred",
		zap.String("request_id", req.Id),
		zap.String("from_doctor_id", doctor.Id),
		zap.String("to_doctor_id", newDoctorId),
	)

	return w.reload(ctx, req)
}

// Edit re-validates the request with in merged over the stored details.
func (w *Workflow) Edit(ctx context.Context, doctor database.User, requestId string, in Input) (database.ConsultationRequest, error) {
	req, err := w.targeted(ctx, policy.ConsultationEdit, doctor, requestId)
	if err != nil {
		return database.ConsultationRequest{}, err
	}
	if req.Status == database.ConsultationRejected {
		return database.ConsultationRequest{}, ErrRequestRejected
	}

	details, err := Normalize(in.merge(req), req.PatientName)
	if err != nil {
		return database.ConsultationRequest{}, err
	}

	updated := req
	updated.SubjectType = details.SubjectType
	updated.SubjectName = details.SubjectName
	updated.AgeYears = details.AgeYears
	updated.Gender = details.Gender
	updated.WeightKg = details.WeightKg
	updated.StateCode = details.StateCode
	updated.SpokenLanguage = details.SpokenLanguage
	updated.Symptoms = details.Symptoms
	updated.UpdatedAt = w.now()

	if err := w.repo.UpdateConsultationDetails(ctx, updated); err != nil {
		if errors.Is(err, database.ErrStale) {
			return database.ConsultationRequest{}, ErrRequestRejected
		}
		return database.ConsultationRequest{}, err
	}

	return w.reload(ctx, updated)
}

// Mine lists the patient's requests, most recently updated first.
func (w *Workflow) Mine(ctx context.Context, patient database.User) ([]database.ConsultationRequest, error) {
	if err := policy.Check(policy.ConsultationListMine, patient.Role); err != nil {
		return nil, err
	}

	return w.repo.ListConsultationRequestsByPatient(ctx, patient.Id)
}

// Inbox lists the requests pending on doctor.
func (w *Workflow) Inbox(ctx context.Context, doctor database.User) ([]database.ConsultationRequest, error) {
	if err := policy.Check(policy.ConsultationInbox, doctor.Role); err != nil {
		return nil, err
	}

	return w.repo.ListPendingConsultationRequests(ctx, doctor.Id)
}

// ForRoom finds the request behind a room: the one linked at acceptance, or
// else the latest request for the pair. Nil means none exists.
func (w *Workflow) ForRoom(ctx context.Context, room database.Room) (*database.ConsultationRequest, error) {
	req, err := w.repo.GetConsultationRequestByRoom(ctx, room.Id)
	if err == nil {
		return &req, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	req, err = w.repo.GetLatestConsultationRequestForPair(ctx, room.PatientId, room.DoctorId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &req, nil
}

// DirectRoom opens (or reuses) the patient's room with doctorId without going
// through a request.
func (w *Workflow) DirectRoom(ctx context.Context, patient database.User, doctorId string) (database.Room, error) {
	if err := policy.Check(policy.RoomCreateDirect, patient.Role); err != nil {
		return database.Room{}, err
	}

	doctorId = strings.TrimSpace(doctorId)
	if doctorId == "" {
		return database.Room{}, ErrDoctorRequired
	}

	doctor, err := w.doctor(ctx, doctorId)
	if err != nil {
		return database.Room{}, err
	}

	return w.registry.CreateOrGet(ctx, patient, doctor)
}

// RoomWithDoctor is the patient's lookup of an existing pair room.
func (w *Workflow) RoomWithDoctor(ctx context.Context, patient database.User, doctorId string) (*database.Room, error) {
	if err := policy.Check(policy.RoomWithDoctor, patient.Role); err != nil {
		return nil, err
	}

	return w.registry.WithDoctor(ctx, patient.Id, strings.TrimSpace(doctorId))
}

// targeted loads a request and checks caller is its current target doctor.
func (w *Workflow) targeted(ctx context.Context, op policy.Operation, caller database.User, requestId string) (database.ConsultationRequest, error) {
	if err := policy.Check(op, caller.Role); err != nil {
		return database.ConsultationRequest{}, err
	}

	req, err := w.repo.GetConsultationRequest(ctx, requestId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.ConsultationRequest{}, ErrRequestNotFound
		}
		return database.ConsultationRequest{}, err
	}

	if req.TargetDoctorId != caller.Id {
		return database.ConsultationRequest{}, ErrNoAccess
	}

	return req, nil
}

func (w *Workflow) doctor(ctx context.Context, id string) (database.User, error) {
	doctor, err := w.repo.GetUserById(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.User{}, ErrDoctorNotFound
		}
		return database.User{}, err
	}
	if doctor.Role != database.RoleDoctor {
		return database.User{}, ErrDoctorNotFound
	}

	return doctor, nil
}

// reload re-reads req so joined display names are current.
func (w *Workflow) reload(ctx context.Context, req database.ConsultationRequest) (database.ConsultationRequest, error) {
	fresh, err := w.repo.GetConsultationRequest(ctx, req.Id)
	if err != nil {
		return database.ConsultationRequest{}, err
	}

	return fresh, nil
}
