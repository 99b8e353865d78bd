package ws

import (
	"context"

	"github.com/rs/zerolog"
)

// StatusWriter persists a user's online flag.
type StatusWriter interface {
	UpdateUserOnlineStatus(ctx context.Context, userID string, online bool) error
}

// PresenceCache is an optional fast mirror of the online flag
// (see redisstore.PresenceCache).
type PresenceCache interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

type PresenceTracker struct {
	store  StatusWriter
	cache  PresenceCache
	logger zerolog.Logger
}

// NewPresenceTracker returns a tracker writing to st. cache may be nil.
func NewPresenceTracker(st StatusWriter, cache PresenceCache, logger zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{store: st, cache: cache, logger: logger}
}

func (p *PresenceTracker) MarkOnline(ctx context.Context, userID string) error {
	return p.set(ctx, userID, true)
}

func (p *PresenceTracker) MarkOffline(ctx context.Context, userID string) error {
	return p.set(ctx, userID, false)
}

func (p *PresenceTracker) set(ctx context.Context, userID string, online bool) error {
	if err := p.store.UpdateUserOnlineStatus(ctx, userID, online); err != nil {
		return err
	}
	if p.cache != nil {
		// The cache is advisory; the store stays authoritative.
		if err := p.cache.SetOnline(ctx, userID, online); err != nil {
			p.logger.Warn().Err(err).Str("user_id", userID).Msg("presence cache update failed")
		}
	}
	return nil
}
