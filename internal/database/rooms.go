package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const roomColumns = "r.id, r.patient_id, r.patient_name, r.doctor_id, r.doctor_name, r.participant_ids, " +
	"COALESCE(pu.photo_url, ''), COALESCE(du.photo_url, ''), r.last_message, r.is_closed, r.created_at, r.last_updated_at"

const roomJoins = " FROM rooms r " +
	"LEFT JOIN users pu ON pu.id = r.patient_id " +
	"LEFT JOIN users du ON du.id = r.doctor_id "

func scanRoom(row rowScanner, extra ...any) (Room, error) {
	var r Room
	dest := []any{
		&r.Id,
		&r.PatientId,
		&r.PatientName,
		&r.DoctorId,
		&r.DoctorName,
		pq.Array(&r.ParticipantIds),
		&r.PatientPhotoURL,
		&r.DoctorPhotoURL,
		&r.LastMessage,
		&r.Closed,
		&r.CreatedAt,
		&r.LastUpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Room{}, err
	}

	return r, nil
}

func (db *PgRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	row := db.q.QueryRowContext(ctx, "SELECT "+roomColumns+roomJoins+"WHERE r.id = $1", roomId)

	r, err := scanRoom(row)
	if err != nil {
		return Room{}, translate(err)
	}

	return r, nil
}

// InsertRoom creates the room if no row with the same id exists. It reports
// whether this call created it.
func (db *PgRepository) InsertRoom(ctx context.Context, room Room) (bool, error) {
	res, err := db.q.ExecContext(ctx,
		"INSERT INTO rooms (id, patient_id, patient_name, doctor_id, doctor_name, participant_ids, "+
			"last_message, is_closed, created_at, last_updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9) "+
			"ON CONFLICT (id) DO NOTHING",
		room.Id,
		room.PatientId,
		room.PatientName,
		room.DoctorId,
		room.DoctorName,
		pq.Array(room.ParticipantIds),
		room.LastMessage,
		room.CreatedAt,
		room.LastUpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert room: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (db *PgRepository) ReopenRoom(ctx context.Context, roomId string, at time.Time) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE rooms SET is_closed = FALSE, last_updated_at = $2 WHERE id = $1",
		roomId,
		at,
	)
	if err != nil {
		return fmt.Errorf("reopen room: %w", err)
	}

	if err := expectOne(res); err != nil {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) CloseRoom(ctx context.Context, roomId, preview string, at time.Time) error {
	res, err := db.q.ExecContext(ctx,
		"UPDATE rooms SET is_closed = TRUE, last_message = $2, last_updated_at = $3 WHERE id = $1",
		roomId,
		preview,
		at,
	)
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}

	if err := expectOne(res); err != nil {
		return ErrNotFound
	}

	return nil
}

// ListRoomsForUser returns the user's rooms, most recently active first, with
// the number of messages from the other participant not yet read.
func (db *PgRepository) ListRoomsForUser(ctx context.Context, userId string) ([]Room, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT "+roomColumns+", "+
			"(SELECT COUNT(*) FROM messages m WHERE m.room_id = r.id AND m.sender_id <> $1 AND m.read_at IS NULL)"+
			roomJoins+
			"WHERE r.patient_id = $1 OR r.doctor_id = $1 "+
			"ORDER BY r.last_updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var unread int
		r, err := scanRoom(rows, &unread)
		if err != nil {
			return nil, err
		}
		r.UnreadCount = unread
		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}
