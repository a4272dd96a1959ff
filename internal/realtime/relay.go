package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/metrics"
)

const (
	EventCallIncoming = "callIncoming"
	EventCallAccepted = "callAccepted"
	EventCallRejected = "callRejected"
	EventIceCandidate = "iceCandidate"
	EventCallEnded    = "callEnded"
)

// Sender delivers an event to a single connection.
type Sender interface {
	SendTo(connID, event string, data interface{}) bool
}

// Relay forwards call signaling between two users. A target that is offline is
// skipped silently; the returned bool is informational only.
type Relay struct {
	presence *Registry
	out      Sender
	log      *zap.Logger
}

func NewRelay(presence *Registry, out Sender, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{presence: presence, out: out, log: log.Named("relay")}
}

func (r *Relay) forward(event string, to uuid.UUID, data interface{}) bool {
	connID, ok := r.presence.Lookup(to)
	if !ok {
		metrics.RelayEvents.WithLabelValues(event, "offline").Inc()
		r.log.Debug("relay target offline", zap.String("event", event), zap.Stringer("to", to))
		return false
	}
	delivered := r.out.SendTo(connID, event, data)
	result := "delivered"
	if !delivered {
		result = "offline"
	}
	metrics.RelayEvents.WithLabelValues(event, result).Inc()
	return delivered
}

type CallOffer struct {
	Signal json.RawMessage `json:"signal"`
	From   uuid.UUID       `json:"from"`
	Name   string          `json:"name"`
}

func (r *Relay) CallUser(from, to uuid.UUID, name string, signal json.RawMessage) bool {
	return r.forward(EventCallIncoming, to, CallOffer{Signal: signal, From: from, Name: name})
}

func (r *Relay) AnswerCall(to uuid.UUID, signal json.RawMessage) bool {
	return r.forward(EventCallAccepted, to, signal)
}

func (r *Relay) RejectCall(to uuid.UUID) bool {
	return r.forward(EventCallRejected, to, nil)
}

func (r *Relay) IceCandidate(to uuid.UUID, candidate json.RawMessage) bool {
	return r.forward(EventIceCandidate, to, candidate)
}

type CallEnded struct {
	By uuid.UUID `json:"by"`
}

// EndCall notifies both parties.
func (r *Relay) EndCall(from, to uuid.UUID) (toDelivered, fromDelivered bool) {
	msg := CallEnded{By: from}
	toDelivered = r.forward(EventCallEnded, to, msg)
	fromDelivered = r.forward(EventCallEnded, from, msg)
	return toDelivered, fromDelivered
}
