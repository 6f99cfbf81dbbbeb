// Package presence tracks heartbeat-style liveness of users, both inside a
// room (used to gate live sessions) and across the app (used for analytics).
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/sihhaapp/sihha/internal/database"
)

const (
	LiveOnlineWindow = 15 * time.Second
	AppOnlineWindow  = 5 * time.Minute
)

// IsFresh reports whether lastSeen is within window of now. The boundary is
// inclusive.
func IsFresh(lastSeen, now time.Time, window time.Duration) bool {
	if lastSeen.IsZero() {
		return false
	}

	return now.Sub(lastSeen) <= window
}

type Tracker struct {
	store  database.PresenceStore
	now    func() time.Time
	window time.Duration
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store database.PresenceStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		window: LiveOnlineWindow,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Tracker) Now() time.Time {
	return t.now()
}

// Touch marks userId active in the room as of now.
func (t *Tracker) Touch(ctx context.Context, roomId, userId string) error {
	return t.Set(ctx, roomId, userId, true)
}

// Leave marks userId inactive in the room.
func (t *Tracker) Leave(ctx context.Context, roomId, userId string) error {
	return t.Set(ctx, roomId, userId, false)
}

func (t *Tracker) Set(ctx context.Context, roomId, userId string, active bool) error {
	return t.store.UpsertRoomPresence(ctx, database.Presence{
		RoomId:     roomId,
		UserId:     userId,
		LastSeenAt: t.now(),
		Active:     active,
	})
}

// Peer loads userId's presence in the room and reports whether it is fresh.
// A user that never showed up yields a zero Presence and false.
func (t *Tracker) Peer(ctx context.Context, roomId, userId string) (database.Presence, bool, error) {
	p, err := t.store.GetRoomPresence(ctx, roomId, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Presence{}, false, nil
		}
		return database.Presence{}, false, err
	}

	return p, t.Fresh(p), nil
}

func (t *Tracker) Fresh(p database.Presence) bool {
	return p.Active && IsFresh(p.LastSeenAt, t.now(), t.window)
}
