package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgig/campusgig-backend/internal/apperr"
)

func TestDispatcher_SubmitDeliversInBackground(t *testing.T) {
	var got sync.Map
	var count atomic.Int32
	d := NewDispatcher(NotifierFunc(func(_ context.Context, n Notification) error {
		got.Store(n.Recipient, n.Kind)
		count.Add(1)
		return nil
	}), 2, 8, time.Second, nil)
	d.Start()

	recipients := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, r := range recipients {
		require.True(t, d.Submit(New(KindBidPlaced, r, nil)))
	}
	d.Stop()

	assert.EqualValues(t, 3, count.Load())
	for _, r := range recipients {
		k, ok := got.Load(r)
		require.True(t, ok)
		assert.Equal(t, KindBidPlaced, k)
	}
}

func TestDispatcher_SubmitDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(NotifierFunc(func(context.Context, Notification) error {
		<-release
		return nil
	}), 1, 1, time.Second, nil)
	// workers not started: the queue holds exactly one item
	assert.True(t, d.Submit(New(KindJobPosted, uuid.New(), nil)))
	assert.False(t, d.Submit(New(KindJobPosted, uuid.New(), nil)))

	close(release)
	d.Start()
	d.Stop()
	assert.False(t, d.Submit(New(KindJobPosted, uuid.New(), nil)), "stopped dispatcher refuses work")
}

func TestDispatcher_FailureIsSwallowedAsync(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(NotifierFunc(func(context.Context, Notification) error {
		calls.Add(1)
		return errors.New("smtp down")
	}), 1, 4, time.Second, nil)
	d.Start()
	assert.True(t, d.Submit(New(KindJobPosted, uuid.New(), nil)))
	d.Stop()
	assert.EqualValues(t, 1, calls.Load())
}

func TestDispatcher_DeliverReportsFailure(t *testing.T) {
	d := NewDispatcher(NotifierFunc(func(context.Context, Notification) error {
		return errors.New("smtp down")
	}), 1, 1, time.Second, nil)

	err := d.Deliver(context.Background(), New(KindJobCompleted, uuid.New(), nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotificationFailure)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestDispatcher_DeliverHonoursTimeout(t *testing.T) {
	d := NewDispatcher(NotifierFunc(func(ctx context.Context, _ Notification) error {
		<-ctx.Done()
		return ctx.Err()
	}), 1, 1, 20*time.Millisecond, nil)

	start := time.Now()
	err := d.Deliver(context.Background(), New(KindJobCompleted, uuid.New(), nil))
	assert.ErrorIs(t, err, apperr.ErrNotificationFailure)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRender(t *testing.T) {
	msg, err := Render(New(KindBidPlaced, uuid.New(), map[string]string{
		"studentName": "Asha",
		"bidAmount":   "80",
		"jobTitle":    "Logo design",
	}))
	require.NoError(t, err)
	assert.Equal(t, "New bid received", msg.Title)
	assert.Equal(t, `Asha bid 80 on "Logo design".`, msg.Body)

	_, err = Render(New(Kind("unknown"), uuid.New(), nil))
	assert.Error(t, err)
}

type fakeRedis struct {
	mu         sync.Mutex
	channel    string
	message    []byte
	history    int
	publishErr error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if f.publishErr != nil {
		cmd.SetErr(f.publishErr)
		return cmd
	}
	f.channel = channel
	f.message = message.([]byte)
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) LPush(ctx context.Context, _ string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history += len(values)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(f.history))
	return cmd
}

func (f *fakeRedis) LTrim(ctx context.Context, _ string, _, _ int64) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func TestRedisNotifier_PublishesToUserChannel(t *testing.T) {
	fr := &fakeRedis{}
	recipient := uuid.New()
	n := New(KindJobCompleted, recipient, map[string]string{"studentName": "Ravi", "jobTitle": "Essay"})

	require.NoError(t, NewRedisNotifier(fr).Notify(context.Background(), n))

	assert.Equal(t, "notifications:"+recipient.String(), fr.channel)
	assert.Equal(t, 1, fr.history)

	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(fr.message, &p))
	assert.Equal(t, "job_completed", p["type"])
	assert.Equal(t, "Job completed", p["title"])
	assert.Contains(t, p["body"], "Ravi")
}

func TestRedisNotifier_PublishError(t *testing.T) {
	fr := &fakeRedis{publishErr: errors.New("connection refused")}
	err := NewRedisNotifier(fr).Notify(context.Background(), New(KindJobPosted, uuid.New(), nil))
	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, fr.history)
}
