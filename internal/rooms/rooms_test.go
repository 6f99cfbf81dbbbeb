package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	patient = database.User{Id: "p-1", Name: "Amina", Role: database.RolePatient}
	doctor  = database.User{Id: "d-1", Name: "Dr. Idriss", Role: database.RoleDoctor}
)

func TestRoomID(t *testing.T) {
	assert.Equal(t, "d-1_p-1", RoomID("p-1", "d-1"))
	assert.Equal(t, RoomID("p-1", "d-1"), RoomID("d-1", "p-1"))
	assert.Equal(t, "a_a", RoomID("a", "a"))
}

func TestCreateOrGet(t *testing.T) {
	roomId := RoomID(patient.Id, doctor.Id)
	open := database.Room{Id: roomId, PatientId: patient.Id, DoctorId: doctor.Id}
	closed := open
	closed.Closed = true

	t.Run("returns an open room unchanged", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, roomId).Return(open, nil).Once()

		r := NewRegistry(repo, testutil.FixedClock(now))
		room, err := r.CreateOrGet(context.Background(), patient, doctor)

		require.NoError(t, err)
		assert.Equal(t, open, room)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "InsertRoom", mock.Anything, mock.Anything)
	})

	t.Run("reopens a closed room", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, roomId).Return(closed, nil).Once()
		repo.On("ReopenRoom", mock.Anything, roomId, now).Return(nil).Once()

		r := NewRegistry(repo, testutil.FixedClock(now))
		room, err := r.CreateOrGet(context.Background(), patient, doctor)

		require.NoError(t, err)
		assert.False(t, room.Closed)
		assert.Equal(t, now, room.LastUpdatedAt)
		assert.Equal(t, roomId, room.Id)
		repo.AssertExpectations(t)
	})

	t.Run("inserts a missing room", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, roomId).Return(database.Room{}, database.ErrNotFound).Once()
		repo.On("InsertRoom", mock.Anything, mock.MatchedBy(func(r database.Room) bool {
			return r.Id == roomId &&
				r.PatientId == patient.Id &&
				r.DoctorId == doctor.Id &&
				!r.Closed &&
				r.LastMessage == "" &&
				r.CreatedAt.Equal(now)
		})).Return(true, nil).Once()
		repo.On("GetRoom", mock.Anything, roomId).Return(open, nil).Once()

		r := NewRegistry(repo, testutil.FixedClock(now))
		room, err := r.CreateOrGet(context.Background(), patient, doctor)

		require.NoError(t, err)
		assert.Equal(t, roomId, room.Id)
		repo.AssertExpectations(t)
	})

	t.Run("losing the insert race re-reads the winner", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, roomId).Return(database.Room{}, database.ErrNotFound).Once()
		repo.On("InsertRoom", mock.Anything, mock.Anything).Return(false, nil).Once()
		repo.On("GetRoom", mock.Anything, roomId).Return(open, nil).Once()

		r := NewRegistry(repo, testutil.FixedClock(now))
		room, err := r.CreateOrGet(context.Background(), patient, doctor)

		require.NoError(t, err)
		assert.Equal(t, open, room)
		repo.AssertExpectations(t)
	})

	t.Run("propagates store failures", func(t *testing.T) {
		boom := errors.New("connection refused")
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, roomId).Return(database.Room{}, boom).Once()

		r := NewRegistry(repo, testutil.FixedClock(now))
		_, err := r.CreateOrGet(context.Background(), patient, doctor)

		assert.ErrorIs(t, err, boom)
	})
}

func TestGet(t *testing.T) {
	room := database.Room{Id: "d-1_p-1", PatientId: "p-1", DoctorId: "d-1"}

	tcases := []struct {
		name     string
		userId   string
		storeErr error
		wantErr  error
	}{
		{name: "patient", userId: "p-1"},
		{name: "doctor", userId: "d-1"},
		{name: "outsider", userId: "p-2", wantErr: ErrForbidden},
		{name: "missing", userId: "p-1", storeErr: database.ErrNotFound, wantErr: ErrRoomNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			repo.On("GetRoom", mock.Anything, room.Id).Return(room, tc.storeErr).Once()

			got, err := NewRegistry(repo, nil).Get(context.Background(), tc.userId, room.Id)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, room, got)
		})
	}
}

func TestWithDoctor(t *testing.T) {
	repo := new(database.MockRepository)
	repo.On("GetRoom", mock.Anything, "d-1_p-1").Return(database.Room{}, database.ErrNotFound).Once()

	r := NewRegistry(repo, nil)
	room, err := r.WithDoctor(context.Background(), "p-1", "d-1")
	require.NoError(t, err)
	assert.Nil(t, room)

	_, err = r.WithDoctor(context.Background(), "p-1", "")
	assert.Equal(t, "doctor-required", apperr.CodeOf(err))
}

func TestClose(t *testing.T) {
	room := database.Room{Id: "d-1_p-1", PatientId: "p-1", DoctorId: "d-1"}

	t.Run("doctor closes", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, room.Id).Return(room, nil).Once()
		repo.On("CloseRoom", mock.Anything, room.Id, ClosedPreview, now).Return(nil).Once()

		got, err := NewRegistry(repo, testutil.FixedClock(now)).Close(context.Background(), "d-1", room.Id)

		require.NoError(t, err)
		assert.True(t, got.Closed)
		assert.Equal(t, ClosedPreview, got.LastMessage)
		repo.AssertExpectations(t)
	})

	t.Run("patient cannot close", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetRoom", mock.Anything, room.Id).Return(room, nil).Once()

		_, err := NewRegistry(repo, testutil.FixedClock(now)).Close(context.Background(), "p-1", room.Id)

		assert.ErrorIs(t, err, ErrNotRoomDoctor)
		assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
		repo.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEnsureWritable(t *testing.T) {
	room := database.Room{Id: "d-1_p-1", PatientId: "p-1", DoctorId: "d-1", Closed: true}

	assert.ErrorIs(t, EnsureWritable(room, "p-1"), ErrRoomClosed)
	assert.NoError(t, EnsureWritable(room, "d-1"))

	room.Closed = false
	assert.NoError(t, EnsureWritable(room, "p-1"))
}
