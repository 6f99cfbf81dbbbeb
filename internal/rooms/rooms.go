// Package rooms owns the patient/doctor chat room: its derived identity,
// creation-or-reuse and open/closed state.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
)

const ClosedPreview = "[consultation closed]"

var (
	ErrRoomNotFound  = apperr.NotFound("room-not-found", "room not found")
	ErrForbidden     = apperr.Authorization("forbidden", "no access to this room")
	ErrNotRoomDoctor = apperr.Authorization("forbidden", "only the doctor can close this room")
	ErrRoomClosed    = apperr.Authorization("room-closed", "room is closed, please request a new consultation")
)

// RoomID derives the room identity from the unordered pair of participants.
func RoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

type Registry struct {
	store database.RoomStore
	now   func() time.Time
}

func NewRegistry(store database.RoomStore, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Registry{store: store, now: now}
}

// WithStore returns a registry bound to store, typically a transaction.
func (r *Registry) WithStore(store database.RoomStore) *Registry {
	return &Registry{store: store, now: r.now}
}

// CreateOrGet returns the room for the pair, creating it when absent and
// reopening it when closed. An open room is returned unchanged.
func (r *Registry) CreateOrGet(ctx context.Context, patient, doctor database.User) (database.Room, error) {
	id := RoomID(patient.Id, doctor.Id)

	room, err := r.store.GetRoom(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrNotFound):
		now := r.now()
		// a concurrent creator may win the insert; the re-read below picks
		// up its row, which is equivalent since the id is derived
		if _, err := r.store.InsertRoom(ctx, database.Room{
			Id:             id,
			PatientId:      patient.Id,
			PatientName:    patient.Name,
			DoctorId:       doctor.Id,
			DoctorName:     doctor.Name,
			ParticipantIds: []string{patient.Id, doctor.Id},
			CreatedAt:      now,
			LastUpdatedAt:  now,
		}); err != nil {
			return database.Room{}, err
		}

		room, err = r.store.GetRoom(ctx, id)
		if err != nil {
			return database.Room{}, fmt.Errorf("reload room: %w", err)
		}
	default:
		return database.Room{}, err
	}

	if room.Closed {
		if err := r.Reopen(ctx, &room); err != nil {
			return database.Room{}, err
		}
	}

	return room, nil
}

// Reopen clears the closed flag and bumps the activity timestamp.
func (r *Registry) Reopen(ctx context.Context, room *database.Room) error {
	now := r.now()
	if err := r.store.ReopenRoom(ctx, room.Id, now); err != nil {
		return err
	}
	room.Closed = false
	room.LastUpdatedAt = now

	return nil
}

// Get loads a room the caller participates in.
func (r *Registry) Get(ctx context.Context, userId, roomId string) (database.Room, error) {
	room, err := r.store.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Room{}, ErrRoomNotFound
		}
		return database.Room{}, err
	}

	if !room.HasParticipant(userId) {
		return database.Room{}, ErrForbidden
	}

	return room, nil
}

// WithDoctor resolves the pair room between a patient and a doctor. A nil
// room means the pair has never talked.
func (r *Registry) WithDoctor(ctx context.Context, patientId, doctorId string) (*database.Room, error) {
	if doctorId == "" {
		return nil, apperr.Validation("doctor-required", "doctorId is required")
	}

	room, err := r.store.GetRoom(ctx, RoomID(patientId, doctorId))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &room, nil
}

func (r *Registry) List(ctx context.Context, userId string) ([]database.Room, error) {
	return r.store.ListRoomsForUser(ctx, userId)
}

// Close marks the room closed. Only the room's doctor may close it.
func (r *Registry) Close(ctx context.Context, userId, roomId string) (database.Room, error) {
	room, err := r.Get(ctx, userId, roomId)
	if err != nil {
		return database.Room{}, err
	}

	if room.DoctorId != userId {
		return database.Room{}, ErrNotRoomDoctor
	}

	now := r.now()
	if err := r.store.CloseRoom(ctx, room.Id, ClosedPreview, now); err != nil {
		return database.Room{}, err
	}
	room.Closed = true
	room.LastMessage = ClosedPreview
	room.LastUpdatedAt = now

	return room, nil
}

// EnsureWritable refuses patient writes into a closed room. Doctors keep
// write access.
func EnsureWritable(room database.Room, userId string) error {
	if room.Closed && room.PatientId == userId {
		return ErrRoomClosed
	}

	return nil
}
