package notify

import (
	"context"
	"sync"
)

// Recorder is an in-memory Sink. Submitted and delivered notifications are kept
// in order; DeliverErr, when set, is returned from Deliver.
type Recorder struct {
	mu         sync.Mutex
	submitted  []Notification
	delivered  []Notification
	DeliverErr error
}

func (r *Recorder) Submit(n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, n)
	return true
}

func (r *Recorder) Deliver(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeliverErr != nil {
		return r.DeliverErr
	}
	r.delivered = append(r.delivered, n)
	return nil
}

func (r *Recorder) Submitted() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.submitted...)
}

func (r *Recorder) Delivered() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.delivered...)
}

// Kinds lists the kinds of every submitted notification.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.submitted))
	for _, n := range r.submitted {
		out = append(out, n.Kind)
	}
	return out
}
