package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/realtime"
	"github.com/campusgig/campusgig-backend/internal/services/chat"
)

const maxChatUpload = 10 * 1024 * 1024

var chatFileTypes = map[string]string{
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".webp": "image",
	".mp3":  "audio",
	".wav":  "audio",
	".ogg":  "audio",
	".m4a":  "audio",
	".webm": "audio",
	".mp4":  "video",
	".mov":  "video",
}

type ChatHandler struct {
	Chat          *chat.Service
	Hub           *realtime.Hub
	Gateway       *realtime.Gateway
	UploadDir     string
	PublicBaseURL string
	Log           *zap.Logger
}

func NewChatHandler(svc *chat.Service, hub *realtime.Hub, gw *realtime.Gateway, uploadDir, publicBaseURL string, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		Chat:          svc,
		Hub:           hub,
		Gateway:       gw,
		UploadDir:     uploadDir,
		PublicBaseURL: publicBaseURL,
		Log:           log.Named("chat"),
	}
}

func (h *ChatHandler) Register(r fiber.Router) {
	g := r.Group("/chat")

	g.Get("/user/:userId", h.GetThreads)
	g.Post("/", h.SendMessage)
	g.Post("/mark-seen", h.MarkSeen)
	g.Post("/upload", h.Upload)
	g.Get("/:posterId/:jobId/:acceptedUserId", h.GetMessages)
}

// GetThreads lists the caller's conversations. Users can only list their own.
func (h *ChatHandler) GetThreads(c *fiber.Ctx) error {
	uid, target, err := authAndParam(c, "userId")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if uid != target {
		return fail(c, h.Log, apperr.Forbidden("you can only list your own conversations"))
	}

	threads, err := h.Chat.ListThreads(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, threads)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	var k chat.Key
	if k.PosterID, err = uuidParam(c, "posterId"); err != nil {
		return fail(c, h.Log, err)
	}
	if k.JobID, err = uuidParam(c, "jobId"); err != nil {
		return fail(c, h.Log, err)
	}
	if k.AcceptedUserID, err = uuidParam(c, "acceptedUserId"); err != nil {
		return fail(c, h.Log, err)
	}

	thread, msgs, err := h.Chat.ListMessages(c.UserContext(), k, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, fiber.Map{
		"chat":     thread,
		"messages": msgs,
		"roomId":   k.Room(),
	})
}

// SendMessage is the REST twin of the sendMessage socket event; the new message
// is pushed to the room as well.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	var req chat.PostInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.SenderID = uid

	msg, msgs, err := h.Chat.PostMessage(c.UserContext(), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if h.Hub != nil {
		h.Hub.BroadcastRoom(req.Key.Room(), realtime.EventNewMessage, msg)
	}
	return created(c, "Message sent", fiber.Map{
		"message":  msg,
		"messages": msgs,
	})
}

func (h *ChatHandler) MarkSeen(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	var k chat.Key
	if err := c.BodyParser(&k); err != nil {
		return badRequest(c, "invalid body")
	}

	msgs, err := h.Chat.MarkSeen(c.UserContext(), k, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if h.Hub != nil {
		h.Hub.BroadcastRoom(k.Room(), realtime.EventMessageSeenUpdate, msgs)
	}
	return ok(c, msgs)
}

// Upload stores a chat attachment and returns its public url and file type.
// The message itself is sent separately with that url.
func (h *ChatHandler) Upload(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required (multipart field: file)")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	fileType, allowed := chatFileTypes[ext]
	if !allowed {
		return badRequest(c, "file must be an image, audio or video")
	}
	if file.Size > maxChatUpload {
		return badRequest(c, "file max size is 10MB")
	}

	dir := filepath.Join(h.UploadDir, "chat", uid.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(c, h.Log, fmt.Errorf("create upload dir: %w", err))
	}

	filename := uuid.NewString() + ext
	if err := c.SaveFile(file, filepath.Join(dir, filename)); err != nil {
		return fail(c, h.Log, fmt.Errorf("save upload: %w", err))
	}

	publicURL := fmt.Sprintf("%s/uploads/chat/%s/%s", strings.TrimRight(h.PublicBaseURL, "/"), uid, filename)
	return created(c, "File uploaded", fiber.Map{
		"url":      publicURL,
		"fileType": fileType,
	})
}

// WebSocketHandler runs one realtime connection. The JWT middleware in front
// of the upgrade has already put the caller's id into the locals.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	uid, ok := c.Locals("userId").(uuid.UUID)
	if !ok {
		h.Log.Warn("websocket without user")
		_ = c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := realtime.NewClient(uid, realtime.NewWebSocketConn(c))
	h.Gateway.Connect(client)

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		if err := client.Pump(); err != nil {
			h.Log.Debug("websocket write", zap.String("client", client.ID), zap.Error(err))
		}
	}()
	// the conn goes back to fiber's pool when this handler returns
	defer func() {
		h.Gateway.Disconnect(client)
		<-pumped
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("websocket read", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}

		var f realtime.Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			h.Hub.SendTo(client.ID, realtime.EventError, fiber.Map{"message": "malformed frame"})
			continue
		}
		h.Gateway.Handle(ctx, client, f)
	}
}

// UpgradeOnly rejects plain HTTP requests on the websocket route.
func UpgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
