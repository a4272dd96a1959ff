package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const historyLimit = 50

// Publisher is the part of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisNotifier publishes to the per-user channel notifications:<userID> and keeps
// a short history list for clients that were offline.
type RedisNotifier struct {
	rdb Publisher
}

func NewRedisNotifier(rdb Publisher) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

type payload struct {
	Type      Kind              `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt int64             `json:"createdAt"`
}

func ChannelFor(n Notification) string { return "notifications:" + n.Recipient.String() }

func historyKey(n Notification) string { return "notifications:history:" + n.Recipient.String() }

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	msg, err := Render(n)
	if err != nil {
		return err
	}
	b, err := json.Marshal(payload{
		Type:      n.Kind,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      n.Data,
		CreatedAt: n.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := r.rdb.Publish(ctx, ChannelFor(n), b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	// history is best-effort
	if err := r.rdb.LPush(ctx, historyKey(n), b).Err(); err == nil {
		r.rdb.LTrim(ctx, historyKey(n), 0, historyLimit-1)
	}
	return nil
}
