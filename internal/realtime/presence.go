package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const PresenceKey = "presence:online"

// SetStore is the part of *redis.Client the presence mirror uses.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Registry maps each online user to the connection that registered last.
// It lives for the process and is never persisted; the optional Redis set only
// mirrors it for other readers.
type Registry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]string
	mirror SetStore
	log    *zap.Logger
}

func NewRegistry(mirror SetStore, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{byUser: make(map[uuid.UUID]string), mirror: mirror, log: log.Named("presence")}
}

func (r *Registry) Register(userID uuid.UUID, connID string) {
	r.mu.Lock()
	r.byUser[userID] = connID
	r.mu.Unlock()
	r.mirrorDo(func(ctx context.Context) error {
		return r.mirror.SAdd(ctx, PresenceKey, userID.String()).Err()
	})
}

func (r *Registry) Lookup(userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// RemoveByEndpoint drops whichever user is registered on connID. A user who
// has since registered from another connection is left alone.
func (r *Registry) RemoveByEndpoint(connID string) (uuid.UUID, bool) {
	r.mu.Lock()
	var (
		removed uuid.UUID
		found   bool
	)
	for userID, c := range r.byUser {
		if c == connID {
			delete(r.byUser, userID)
			removed, found = userID, true
			break
		}
	}
	r.mu.Unlock()

	if found {
		r.mirrorDo(func(ctx context.Context) error {
			return r.mirror.SRem(ctx, PresenceKey, removed.String()).Err()
		})
	}
	return removed, found
}

// Online lists online user ids in sorted order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID.String())
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.byUser = make(map[uuid.UUID]string)
	r.mu.Unlock()
	r.mirrorDo(func(ctx context.Context) error {
		return r.mirror.Del(ctx, PresenceKey).Err()
	})
}

func (r *Registry) mirrorDo(fn func(ctx context.Context) error) {
	if r.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.log.Warn("presence mirror", zap.Error(err))
	}
}
