package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PgRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPgRepositoryFromDB(db)
}

func TestInsertRoom(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	room := Room{
		Id:             "d1_p1",
		PatientId:      "p1",
		PatientName:    "Amina",
		DoctorId:       "d1",
		DoctorName:     "Dr. Haroun",
		ParticipantIds: []string{"p1", "d1"},
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}

	tcases := []struct {
		name     string
		affected int64
		created  bool
	}{
		{name: "new room", affected: 1, created: true},
		{name: "lost creation race", affected: 0, created: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, repo := setupMockDB(t)
			defer db.Close()

			mock.ExpectExec(`INSERT INTO rooms .* ON CONFLICT \(id\) DO NOTHING`).
				WithArgs(room.Id, room.PatientId, room.PatientName, room.DoctorId, room.DoctorName,
					sqlmock.AnyArg(), "", now, now).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			created, err := repo.InsertRoom(context.Background(), room)
			require.NoError(t, err)
			assert.Equal(t, tc.created, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetRoom(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "patient_name", "doctor_id", "doctor_name",
		"participant_ids", "patient_photo", "doctor_photo", "last_message", "is_closed", "created_at", "last_updated_at"}).
		AddRow("d1_p1", "p1", "Amina", "d1", "Dr. Haroun", "{p1,d1}", "", "/photos/d1.png", "hello", true, now, now)

	mock.ExpectQuery(`SELECT r.id, .* FROM rooms r .* WHERE r.id = \$1`).
		WithArgs("d1_p1").
		WillReturnRows(rows)

	room, err := repo.GetRoom(context.Background(), "d1_p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "d1"}, room.ParticipantIds)
	assert.Equal(t, "/photos/d1.png", room.DoctorPhotoURL)
	assert.True(t, room.Closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoom_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT r.id`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConsultationRequest_UniqueViolation(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO consultation_requests`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_consult_req_open_pair"})

	err := repo.CreateConsultationRequest(context.Background(), ConsultationRequest{Id: "c1", Status: ConsultationPending})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkConsultationAccepted(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	params := RespondConsultationParams{Id: "c1", DoctorId: "d1", RoomId: "d1_p1", At: at}

	tcases := []struct {
		name     string
		affected int64
		err      error
	}{
		{name: "pending request", affected: 1, err: nil},
		{name: "already responded", affected: 0, err: ErrStale},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, repo := setupMockDB(t)
			defer db.Close()

			mock.ExpectExec(`UPDATE consultation_requests SET status = 'accepted'.* WHERE id = \$1 AND status = 'pending'`).
				WithArgs("c1", "d1_p1", at, "d1").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			err := repo.MarkConsultationAccepted(context.Background(), params)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConsultationRequestExists(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("p1", "d2", sqlmock.AnyArg(), "c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ConsultationRequestExists(context.Background(), ConsultationLookup{
		PatientId: "p1",
		DoctorId:  "d2",
		Statuses:  []ConsultationStatus{ConsultationPending},
		ExcludeId: "c1",
	})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	t.Run("commits and locks live session row", func(t *testing.T) {
		db, mock, repo := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM live_sessions WHERE room_id = \$1 FOR UPDATE`).
			WithArgs("d1_p1").
			WillReturnRows(sqlmock.NewRows([]string{"room_id", "status", "requested_by", "requested_at", "responded_at"}).
				AddRow("d1_p1", "pending", "p1", time.Now(), nil))
		mock.ExpectExec(`INSERT INTO live_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithTx(context.Background(), func(tx Repository) error {
			s, err := tx.GetLiveSession(context.Background(), "d1_p1")
			if err != nil {
				return err
			}
			assert.Equal(t, LivePending, s.Status)
			require.NotNil(t, s.RequestedBy)
			assert.Equal(t, "p1", *s.RequestedBy)
			assert.Nil(t, s.RespondedAt)

			s.Status = LiveActive
			return tx.UpsertLiveSession(context.Background(), s)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, repo := setupMockDB(t)
		defer db.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := repo.WithTx(context.Background(), func(tx Repository) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInsertLiveSession(t *testing.T) {
	tcases := []struct {
		name     string
		affected int64
		err      error
	}{
		{name: "first session of the room", affected: 1},
		{name: "row created concurrently", affected: 0, err: ErrStale},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, repo := setupMockDB(t)
			defer db.Close()

			mock.ExpectExec(`INSERT INTO live_sessions .* ON CONFLICT \(room_id\) DO NOTHING`).
				WithArgs("d1_p1", LivePending, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			by := "p1"
			at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			err := repo.InsertLiveSession(context.Background(), LiveSession{RoomId: "d1_p1", Status: LivePending, RequestedBy: &by, RequestedAt: &at})
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetLiveSession_NoTxNoLock(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT room_id, status, requested_by, requested_at, responded_at FROM live_sessions WHERE room_id = \$1$`).
		WithArgs("d1_p1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLiveSession(context.Background(), "d1_p1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMessagesDelivered(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE messages SET delivered_at = COALESCE\(delivered_at, \$3\)`).
		WithArgs("d1_p1", "p1", at).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkMessagesDelivered(context.Background(), "d1_p1", "p1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRoomMessages(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	sent := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "room_id", "sender_id", "sender_name", "type", "event_kind", "content",
		"duration_seconds", "delivered_at", "read_at", "sent_at"}).
		AddRow("m1", "d1_p1", "p1", "Amina", "text", "none", "hello", 0, sent, sent, sent).
		AddRow("m2", "d1_p1", "d1", "Dr. Haroun", "live", "request", "Dr. Haroun", 0, nil, nil, sent.Add(time.Second))

	mock.ExpectQuery(`FROM messages WHERE room_id = \$1 ORDER BY sent_at ASC`).
		WithArgs("d1_p1").
		WillReturnRows(rows)

	msgs, err := repo.ListRoomMessages(context.Background(), "d1_p1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, MessageText, msgs[0].Type)
	assert.NotNil(t, msgs[0].ReadAt)
	assert.Equal(t, EventRequest, msgs[1].EventKind)
	assert.Nil(t, msgs[1].DeliveredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	for _, table := range []string{"messages", "room_presence", "consultation_requests", "rooms", "blogs"} {
		mock.ExpectExec(`DELETE FROM ` + table).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteUser(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
