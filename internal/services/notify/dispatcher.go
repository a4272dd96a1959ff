package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
)

// Dispatcher runs a fixed pool of workers draining a bounded queue.
type Dispatcher struct {
	notifier Notifier
	queue    chan Notification
	workers  int
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier, workers, queueSize int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		notifier: n,
		queue:    make(chan Notification, queueSize),
		workers:  workers,
		timeout:  timeout,
		log:      log.Named("notify"),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		_ = d.send(ctx, n)
		cancel()
	}
}

// Submit queues n and returns immediately. It reports false when the queue is
// full or the dispatcher is stopped; the notification is dropped in that case.
func (d *Dispatcher) Submit(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		metrics.Notifications.WithLabelValues("dropped").Inc()
		d.log.Warn("queue full, notification dropped",
			zap.String("kind", string(n.Kind)), zap.Stringer("recipient", n.Recipient))
		return false
	}
}

// Deliver sends n on the caller's goroutine, bounded by the dispatcher timeout.
// Errors wrap apperr.ErrNotificationFailure.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.send(ctx, n)
}

func (d *Dispatcher) send(ctx context.Context, n Notification) error {
	err := d.notifier.Notify(ctx, n)
	if err == nil {
		metrics.Notifications.WithLabelValues("delivered").Inc()
		return nil
	}
	metrics.Notifications.WithLabelValues("failed").Inc()
	d.log.Error("notification failed",
		zap.String("kind", string(n.Kind)), zap.Stringer("recipient", n.Recipient), zap.Error(err))
	if errors.Is(err, apperr.ErrNotificationFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrNotificationFailure, err)
}

// Stop refuses new submissions and waits for queued notifications to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
