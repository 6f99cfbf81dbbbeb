package database

import (
	"context"
	"fmt"
	"time"
)

func (db *PgRepository) UpsertRoomPresence(ctx context.Context, p Presence) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO room_presence (room_id, user_id, last_seen_at, is_active) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (room_id, user_id) DO UPDATE SET "+
			"last_seen_at = EXCLUDED.last_seen_at, is_active = EXCLUDED.is_active",
		p.RoomId,
		p.UserId,
		p.LastSeenAt,
		p.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert room presence: %w", err)
	}

	return nil
}

func (db *PgRepository) GetRoomPresence(ctx context.Context, roomId, userId string) (Presence, error) {
	row := db.q.QueryRowContext(ctx,
		"SELECT room_id, user_id, last_seen_at, is_active FROM room_presence WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
	)

	var p Presence
	if err := row.Scan(&p.RoomId, &p.UserId, &p.LastSeenAt, &p.Active); err != nil {
		return Presence{}, translate(err)
	}

	return p, nil
}

// TouchAppPresence records global activity for the user and rolls the
// per-day activity row forward.
func (db *PgRepository) TouchAppPresence(ctx context.Context, userId string, at time.Time) error {
	at = at.UTC()
	if _, err := db.q.ExecContext(ctx,
		"INSERT INTO app_presence (user_id, last_seen_at) VALUES ($1, $2) "+
			"ON CONFLICT (user_id) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at",
		userId,
		at,
	); err != nil {
		return fmt.Errorf("touch app presence: %w", err)
	}

	if _, err := db.q.ExecContext(ctx,
		"INSERT INTO user_daily_activity (user_id, activity_date, first_seen_at, last_seen_at) VALUES ($1, $2, $3, $3) "+
			"ON CONFLICT (user_id, activity_date) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at",
		userId,
		at.Format(time.DateOnly),
		at,
	); err != nil {
		return fmt.Errorf("touch daily activity: %w", err)
	}

	return nil
}
