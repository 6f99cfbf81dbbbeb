// Package ledger appends to and reads a room's message history.
package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/presence"
	"github.com/sihhaapp/sihha/internal/rooms"
)

var (
	ErrEmptyMessage     = apperr.Validation("empty-message", "message cannot be empty")
	ErrAudioURLRequired = apperr.Validation("audio-url-required", "audioUrl is required")
	ErrImageURLRequired = apperr.Validation("image-url-required", "imageUrl is required")
)

type Ledger struct {
	store    database.MessageStore
	presence *presence.Tracker
	now      func() time.Time
}

func NewLedger(store database.MessageStore, tracker *presence.Tracker, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Ledger{store: store, presence: tracker, now: now}
}

// WithStore returns a ledger writing through store, typically a transaction.
func (l *Ledger) WithStore(store database.MessageStore) *Ledger {
	cp := *l
	cp.store = store
	return &cp
}

// Append persists m and, when updatePreview is set, refreshes the owning
// room's summary line and activity timestamp.
func (l *Ledger) Append(ctx context.Context, m database.Message, updatePreview bool) (database.Message, error) {
	if m.Id == "" {
		m.Id = uuid.NewString()
	}
	if m.EventKind == "" {
		m.EventKind = database.EventNone
	}
	m.SentAt = l.now()

	if err := l.store.InsertMessage(ctx, m); err != nil {
		return database.Message{}, err
	}

	if updatePreview {
		if err := l.store.UpdateRoomPreview(ctx, m.RoomId, Preview(m), m.SentAt); err != nil {
			return database.Message{}, err
		}
	}

	return m, nil
}

func (l *Ledger) PostText(ctx context.Context, room database.Room, sender database.User, content string) (database.Message, error) {
	if err := rooms.EnsureWritable(room, sender.Id); err != nil {
		return database.Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return database.Message{}, ErrEmptyMessage
	}
	if err := l.touch(ctx, room.Id, sender.Id); err != nil {
		return database.Message{}, err
	}

	return l.Append(ctx, newMessage(room, sender, database.MessageText, content), true)
}

// PostAudio stores a voice note. Durations are whole seconds, at least one.
func (l *Ledger) PostAudio(ctx context.Context, room database.Room, sender database.User, audioURL string, duration float64) (database.Message, error) {
	if err := rooms.EnsureWritable(room, sender.Id); err != nil {
		return database.Message{}, err
	}

	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return database.Message{}, ErrAudioURLRequired
	}
	if err := l.touch(ctx, room.Id, sender.Id); err != nil {
		return database.Message{}, err
	}

	m := newMessage(room, sender, database.MessageAudio, audioURL)
	m.DurationSeconds = wholeSeconds(duration)

	return l.Append(ctx, m, true)
}

func (l *Ledger) PostImage(ctx context.Context, room database.Room, sender database.User, imageURL string) (database.Message, error) {
	if err := rooms.EnsureWritable(room, sender.Id); err != nil {
		return database.Message{}, err
	}

	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return database.Message{}, ErrImageURLRequired
	}
	if err := l.touch(ctx, room.Id, sender.Id); err != nil {
		return database.Message{}, err
	}

	return l.Append(ctx, newMessage(room, sender, database.MessageImage, imageURL), true)
}

// Transcript records a live-session event. Signals stay out of the room
// preview.
func (l *Ledger) Transcript(ctx context.Context, roomId string, sender database.User, kind database.EventKind, content string) (database.Message, error) {
	m := database.Message{
		RoomId:     roomId,
		SenderId:   sender.Id,
		SenderName: sender.Name,
		Type:       database.MessageLive,
		EventKind:  kind,
		Content:    content,
	}

	return l.Append(ctx, m, kind != database.EventSignal)
}

// ListAndMarkDelivered refreshes the reader's presence, stamps the peer's
// messages delivered and read, and returns the full history oldest first.
func (l *Ledger) ListAndMarkDelivered(ctx context.Context, room database.Room, readerId string) ([]database.Message, error) {
	if err := l.touch(ctx, room.Id, readerId); err != nil {
		return nil, err
	}

	if _, err := l.store.MarkMessagesDelivered(ctx, room.Id, readerId, l.now()); err != nil {
		return nil, err
	}

	return l.store.ListRoomMessages(ctx, room.Id)
}

// touch refreshes userId's room presence; a ledger built without a tracker
// skips it.
func (l *Ledger) touch(ctx context.Context, roomId, userId string) error {
	if l.presence == nil {
		return nil
	}

	return l.presence.Touch(ctx, roomId, userId)
}

func newMessage(room database.Room, sender database.User, typ database.MessageType, content string) database.Message {
	return database.Message{
		RoomId:     room.Id,
		SenderId:   sender.Id,
		SenderName: sender.Name,
		Type:       typ,
		EventKind:  database.EventNone,
		Content:    content,
	}
}

func wholeSeconds(d float64) int {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 1 {
		return 1
	}

	return int(math.Floor(d))
}
