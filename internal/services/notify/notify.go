// Package notify delivers lifecycle notifications to users out of band.
//
// Services never call a Notifier directly. They hand a Notification to a Sink:
// Submit queues it for background delivery and never blocks or fails the caller,
// Deliver sends it synchronously and reports the outcome.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindJobPosted       Kind = "job_posted"
	KindBidPlaced       Kind = "bid_placed"
	KindBidAccepted     Kind = "bid_accepted"
	KindJobAccepted     Kind = "job_accepted"
	KindJobCompleted    Kind = "job_completed"
	KindJobRated        Kind = "job_rated"
	KindPaymentReleased Kind = "payment_released"
)

type Notification struct {
	Kind      Kind              `json:"type"`
	Recipient uuid.UUID         `json:"recipient"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}

func New(kind Kind, recipient uuid.UUID, data map[string]string) Notification {
	return Notification{Kind: kind, Recipient: recipient, Data: data, CreatedAt: time.Now()}
}

// Notifier is the transport a notification finally goes through.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Sink is what the services depend on.
type Sink interface {
	Submit(n Notification) bool
	Deliver(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
