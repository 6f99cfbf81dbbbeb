package presence

import (
	"context"
	"time"

	"github.com/sihhaapp/sihha/internal/cache"
	"github.com/sihhaapp/sihha/internal/database"
	"go.uber.org/zap"
)

const defaultAppThrottle = 30 * time.Second

// AppTracker records that a user is using the app at all. With a cache
// configured, writes for the same user are collapsed to one per throttle
// interval.
type AppTracker struct {
	store    database.PresenceStore
	kv       cache.KV
	throttle time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewAppTracker(store database.PresenceStore, kv cache.KV, logger *zap.Logger) *AppTracker {
	return &AppTracker{
		store:    store,
		kv:       kv,
		throttle: defaultAppThrottle,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

func (a *AppTracker) Touch(ctx context.Context, userId string) error {
	if a.kv != nil {
		first, err := a.kv.SetNX(ctx, "presence:app:"+userId, "1", a.throttle)
		if err != nil {
			a.log.Warn("app presence throttle unavailable", zap.String("user_id", userId), zap.Error(err))
		} else if !first {
			return nil
		}
	}

	return a.store.TouchAppPresence(ctx, userId, a.now())
}
