package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/chat"
)

// Client -> server events.
const (
	EventJoinRoom     = "joinRoom"
	EventLeaveRoom    = "leaveRoom"
	EventSendMessage  = "sendMessage"
	EventMessageSeen  = "messageSeen"
	EventRegisterUser = "registerUser"
	EventCallUser     = "callUser"
	EventAnswerCall   = "answerCall"
	EventRejectCall   = "rejectCall"
	EventEndCall      = "endCall"
	EventPing         = "ping"
)

// Server -> client events.
const (
	EventMe                = "me"
	EventNewMessage        = "newMessage"
	EventMessageSeenUpdate = "messageSeenUpdate"
	EventOnlineUsers       = "onlineUsers"
	EventError             = "error"
	EventPong              = "pong"
)

type ChatStore interface {
	PostMessage(ctx context.Context, in chat.PostInput) (*models.ChatMessage, []models.ChatMessage, error)
	MarkSeen(ctx context.Context, k chat.Key, viewerID uuid.UUID) ([]models.ChatMessage, error)
}

// Gateway interprets frames read from a client connection.
type Gateway struct {
	hub      *Hub
	presence *Registry
	relay    *Relay
	chat     ChatStore
	log      *zap.Logger
}

func NewGateway(hub *Hub, presence *Registry, chatStore ChatStore, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		hub:      hub,
		presence: presence,
		relay:    NewRelay(presence, hub, log),
		chat:     chatStore,
		log:      log.Named("gateway"),
	}
	hub.OnEvict(g.Disconnect)
	return g
}

// Connect registers the client with the hub and tells it its connection id.
func (g *Gateway) Connect(c *Client) {
	g.hub.RegisterClient(c)
	g.hub.SendTo(c.ID, EventMe, c.ID)
}

// Disconnect unregisters the client and, if it was the user's registered
// connection, announces the new online list. It is safe to call more than once.
func (g *Gateway) Disconnect(c *Client) {
	g.hub.UnregisterClient(c)
	if _, removed := g.presence.RemoveByEndpoint(c.ID); removed {
		g.hub.BroadcastAll(EventOnlineUsers, g.presence.Online())
	}
}

type targetPayload struct {
	To         uuid.UUID       `json:"to"`
	UserToCall uuid.UUID       `json:"userToCall"`
	Signal     json.RawMessage `json:"signal"`
	Candidate  json.RawMessage `json:"candidate"`
	Name       string          `json:"name"`
}

type messagePayload struct {
	chat.Key
	Text     string `json:"text"`
	File     string `json:"file"`
	FileType string `json:"fileType"`
}

type errorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handle dispatches one frame. The sender is always the authenticated user of
// the connection, whatever ids the payload carries.
func (g *Gateway) Handle(ctx context.Context, c *Client, f Frame) {
	switch f.Event {
	case EventPing:
		g.hub.SendTo(c.ID, EventPong, nil)

	case EventJoinRoom:
		var k chat.Key
		if err := json.Unmarshal(f.Data, &k); err != nil {
			g.reject(c, f.Event, apperr.Validation("malformed room request"))
			return
		}
		if err := k.Authorize(c.UserID); err != nil {
			g.reject(c, f.Event, err)
			return
		}
		g.hub.Join(c.ID, k.Room())

	case EventLeaveRoom:
		var k chat.Key
		if err := json.Unmarshal(f.Data, &k); err != nil {
			g.reject(c, f.Event, apperr.Validation("malformed room request"))
			return
		}
		g.hub.Leave(c.ID, k.Room())

	case EventRegisterUser:
		g.presence.Register(c.UserID, c.ID)
		g.hub.BroadcastAll(EventOnlineUsers, g.presence.Online())

	case EventSendMessage:
		var p messagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			g.reject(c, f.Event, apperr.Validation("malformed message"))
			return
		}
		msg, _, err := g.chat.PostMessage(ctx, chat.PostInput{
			Key:      p.Key,
			SenderID: c.UserID,
			Text:     p.Text,
			File:     p.File,
			FileType: p.FileType,
		})
		if err != nil {
			g.reject(c, f.Event, err)
			return
		}
		g.hub.BroadcastRoom(p.Key.Room(), EventNewMessage, msg)

	case EventMessageSeen:
		var k chat.Key
		if err := json.Unmarshal(f.Data, &k); err != nil {
			g.reject(c, f.Event, apperr.Validation("malformed request"))
			return
		}
		msgs, err := g.chat.MarkSeen(ctx, k, c.UserID)
		if err != nil {
			g.reject(c, f.Event, err)
			return
		}
		g.hub.BroadcastRoom(k.Room(), EventMessageSeenUpdate, msgs)

	case EventCallUser, EventAnswerCall, EventRejectCall, EventIceCandidate, EventEndCall:
		var p targetPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			g.reject(c, f.Event, apperr.Validation("malformed signaling payload"))
			return
		}
		g.signal(c, f.Event, p)

	default:
		g.log.Debug("unknown event", zap.String("event", f.Event), zap.String("client", c.ID))
	}
}

func (g *Gateway) signal(c *Client, event string, p targetPayload) {
	switch event {
	case EventCallUser:
		g.relay.CallUser(c.UserID, p.UserToCall, p.Name, p.Signal)
	case EventAnswerCall:
		g.relay.AnswerCall(p.To, p.Signal)
	case EventRejectCall:
		g.relay.RejectCall(p.To)
	case EventIceCandidate:
		g.relay.IceCandidate(p.To, p.Candidate)
	case EventEndCall:
		if p.To == uuid.Nil {
			return
		}
		g.relay.EndCall(c.UserID, p.To)
	}
}

func (g *Gateway) reject(c *Client, event string, err error) {
	msg := "internal error"
	if apperr.Public(err) {
		msg = err.Error()
	} else if !errors.Is(err, context.Canceled) {
		g.log.Error("socket event failed", zap.String("event", event), zap.Error(err))
	}
	g.hub.SendTo(c.ID, EventError, errorPayload{Event: event, Code: apperr.Code(err), Message: msg})
}
