package database

import (
	"context"
	"database/sql"
	"fmt"
)

// GetLiveSession returns ErrNotFound when the room never had a session. Inside
// a transaction the row is locked until commit.
func (db *PgRepository) GetLiveSession(ctx context.Context, roomId string) (LiveSession, error) {
	query := "SELECT room_id, status, requested_by, requested_at, responded_at FROM live_sessions WHERE room_id = $1"
	if db.inTx {
		query += " FOR UPDATE"
	}

	var (
		s                        LiveSession
		requestedBy              sql.NullString
		requestedAt, respondedAt sql.NullTime
	)
	err := db.q.QueryRowContext(ctx, query, roomId).Scan(
		&s.RoomId,
		&s.Status,
		&requestedBy,
		&requestedAt,
		&respondedAt,
	)
	if err != nil {
		return LiveSession{}, translate(err)
	}
	s.RequestedBy = stringPtr(requestedBy)
	s.RequestedAt = timePtr(requestedAt)
	s.RespondedAt = timePtr(respondedAt)

	return s, nil
}

func (db *PgRepository) UpsertLiveSession(ctx context.Context, s LiveSession) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO live_sessions (room_id, status, requested_by, requested_at, responded_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (room_id) DO UPDATE SET "+
			"status = EXCLUDED.status, requested_by = EXCLUDED.requested_by, "+
			"requested_at = EXCLUDED.requested_at, responded_at = EXCLUDED.responded_at",
		s.RoomId,
		s.Status,
		s.RequestedBy,
		s.RequestedAt,
		s.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert live session: %w", err)
	}

	return nil
}

// InsertLiveSession creates the first session row of a room. ErrStale means a
// concurrent transaction created it first; the caller should re-read the row.
func (db *PgRepository) InsertLiveSession(ctx context.Context, s LiveSession) error {
	res, err := db.q.ExecContext(ctx,
		"INSERT INTO live_sessions (room_id, status, requested_by, requested_at, responded_at) "+
			"VALUES ($1, $2, $3, $4, $5) ON CONFLICT (room_id) DO NOTHING",
		s.RoomId,
		s.Status,
		s.RequestedBy,
		s.RequestedAt,
		s.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("insert live session: %w", err)
	}

	return expectOne(res)
}
