package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (db *PgRepository) InsertMessage(ctx context.Context, msg Message) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO messages (id, room_id, sender_id, sender_name, type, event_kind, content, duration_seconds, sent_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.SenderName,
		msg.Type,
		msg.EventKind,
		msg.Content,
		msg.DurationSeconds,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

func (db *PgRepository) UpdateRoomPreview(ctx context.Context, roomId, preview string, at time.Time) error {
	_, err := db.q.ExecContext(ctx,
		"UPDATE rooms SET last_message = $2, last_updated_at = $3 WHERE id = $1",
		roomId,
		preview,
		at,
	)
	if err != nil {
		return fmt.Errorf("update room preview: %w", err)
	}

	return nil
}

// MarkMessagesDelivered stamps delivered_at and read_at on messages in the room
// that were not sent by readerId. Timestamps already set are left untouched.
func (db *PgRepository) MarkMessagesDelivered(ctx context.Context, roomId, readerId string, at time.Time) (int64, error) {
	res, err := db.q.ExecContext(ctx,
		"UPDATE messages SET delivered_at = COALESCE(delivered_at, $3), read_at = COALESCE(read_at, $3) "+
			"WHERE room_id = $1 AND sender_id <> $2 AND (delivered_at IS NULL OR read_at IS NULL)",
		roomId,
		readerId,
		at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}

	return res.RowsAffected()
}

func (db *PgRepository) ListRoomMessages(ctx context.Context, roomId string) ([]Message, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT id, room_id, sender_id, sender_name, type, event_kind, content, duration_seconds, "+
			"delivered_at, read_at, sent_at FROM messages WHERE room_id = $1 ORDER BY sent_at ASC",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m                   Message
			deliveredAt, readAt sql.NullTime
		)
		if err := rows.Scan(
			&m.Id,
			&m.RoomId,
			&m.SenderId,
			&m.SenderName,
			&m.Type,
			&m.EventKind,
			&m.Content,
			&m.DurationSeconds,
			&deliveredAt,
			&readAt,
			&m.SentAt,
		); err != nil {
			return nil, err
		}
		m.DeliveredAt = timePtr(deliveredAt)
		m.ReadAt = timePtr(readAt)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
