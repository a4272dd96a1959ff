package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/chat"
	"github.com/campusgig/campusgig-backend/internal/testutil"
)

func recv(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
	return Frame{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame %s", raw)
	default:
	}
}

func TestHub_Rooms(t *testing.T) {
	h := NewHub(nil)
	a := NewClient(uuid.New(), nil)
	b := NewClient(uuid.New(), nil)
	h.RegisterClient(a)
	h.RegisterClient(b)

	h.Join(a.ID, "room-1")
	h.Join(b.ID, "room-1")
	h.Join(b.ID, "room-2")
	h.Join("ghost", "room-1")
	assert.Equal(t, 2, h.RoomSize("room-1"))

	assert.Equal(t, 2, h.BroadcastRoom("room-1", "newMessage", map[string]string{"text": "hi"}))
	f := recv(t, a)
	assert.Equal(t, "newMessage", f.Event)
	assert.JSONEq(t, `{"text":"hi"}`, string(f.Data))
	recv(t, b)

	h.Leave(a.ID, "room-1")
	assert.Equal(t, 1, h.BroadcastRoom("room-1", "x", nil))
	assertSilent(t, a)
	recv(t, b)

	h.UnregisterClient(b)
	assert.Equal(t, 0, h.RoomSize("room-1"))
	assert.Equal(t, 0, h.RoomSize("room-2"))
	_, open := <-b.Send
	assert.False(t, open)

	// second unregister is a no-op
	h.UnregisterClient(b)
}

func TestHub_SendTo(t *testing.T) {
	h := NewHub(nil)
	a := NewClient(uuid.New(), nil)
	h.RegisterClient(a)

	assert.True(t, h.SendTo(a.ID, "me", a.ID))
	f := recv(t, a)
	var id string
	require.NoError(t, json.Unmarshal(f.Data, &id))
	assert.Equal(t, a.ID, id)

	assert.False(t, h.SendTo("unknown", "me", nil))
}

func TestHub_BroadcastAll(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	a := NewClient(uuid.New(), nil)
	b := NewClient(uuid.New(), nil)
	h.RegisterClient(a)
	h.RegisterClient(b)

	h.BroadcastAll("onlineUsers", []string{"u1"})
	assert.Equal(t, "onlineUsers", recv(t, a).Event)
	assert.Equal(t, "onlineUsers", recv(t, b).Event)
}

func TestHub_StopTwice(t *testing.T) {
	h := NewHub(nil)
	a := NewClient(uuid.New(), nil)
	h.RegisterClient(a)
	h.Stop()
	h.Stop()
	_, open := <-a.Send
	assert.False(t, open)
	// queued after stop: must not block
	h.BroadcastAll("x", nil)
}

type fakeSet struct {
	members map[string]bool
	fail    bool
}

func newFakeSet() *fakeSet { return &fakeSet{members: map[string]bool{}} }

func (f *fakeSet) result(ctx context.Context, n int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.fail {
		cmd.SetErr(errors.New("redis down"))
		return cmd
	}
	cmd.SetVal(n)
	return cmd
}

func (f *fakeSet) SAdd(ctx context.Context, _ string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		f.members[m.(string)] = true
	}
	return f.result(ctx, int64(len(members)))
}

func (f *fakeSet) SRem(ctx context.Context, _ string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		delete(f.members, m.(string))
	}
	return f.result(ctx, int64(len(members)))
}

func (f *fakeSet) Del(ctx context.Context, _ ...string) *redis.IntCmd {
	f.members = map[string]bool{}
	return f.result(ctx, 1)
}

func TestRegistry(t *testing.T) {
	set := newFakeSet()
	r := NewRegistry(set, nil)
	u1, u2 := uuid.New(), uuid.New()

	r.Register(u1, "c1")
	r.Register(u2, "c2")
	conn, ok := r.Lookup(u1)
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
	assert.Len(t, set.members, 2)

	online := r.Online()
	assert.Len(t, online, 2)
	assert.IsNonDecreasing(t, online)

	// re-registering from another tab replaces the endpoint
	r.Register(u1, "c3")
	_, removed := r.RemoveByEndpoint("c1")
	assert.False(t, removed, "stale endpoint must not evict the user")
	conn, _ = r.Lookup(u1)
	assert.Equal(t, "c3", conn)

	user, removed := r.RemoveByEndpoint("c3")
	assert.True(t, removed)
	assert.Equal(t, u1, user)
	_, ok = r.Lookup(u1)
	assert.False(t, ok)
	assert.Equal(t, []string{u2.String()}, r.Online())
	assert.False(t, set.members[u1.String()])

	r.Clear()
	assert.Empty(t, r.Online())
	assert.Empty(t, set.members)
}

func TestRegistry_MirrorFailureIsIgnored(t *testing.T) {
	set := newFakeSet()
	set.fail = true
	r := NewRegistry(set, nil)
	u := uuid.New()
	r.Register(u, "c1")
	_, ok := r.Lookup(u)
	assert.True(t, ok)

	withoutMirror := NewRegistry(nil, nil)
	withoutMirror.Register(u, "c1")
	withoutMirror.Clear()
}

type sent struct {
	conn  string
	event string
	data  interface{}
}

type fakeSender struct {
	out  []sent
	dead map[string]bool
}

func (f *fakeSender) SendTo(connID, event string, data interface{}) bool {
	if f.dead[connID] {
		return false
	}
	f.out = append(f.out, sent{connID, event, data})
	return true
}

func TestRelay(t *testing.T) {
	reg := NewRegistry(nil, nil)
	out := &fakeSender{dead: map[string]bool{}}
	relay := NewRelay(reg, out, nil)
	alice, bob := uuid.New(), uuid.New()
	reg.Register(alice, "ca")

	assert.False(t, relay.CallUser(alice, bob, "Alice", json.RawMessage(`{"sdp":"x"}`)), "offline target is dropped")
	assert.Empty(t, out.out)

	reg.Register(bob, "cb")
	assert.True(t, relay.CallUser(alice, bob, "Alice", json.RawMessage(`{"sdp":"x"}`)))
	require.Len(t, out.out, 1)
	assert.Equal(t, "cb", out.out[0].conn)
	assert.Equal(t, EventCallIncoming, out.out[0].event)
	offer := out.out[0].data.(CallOffer)
	assert.Equal(t, alice, offer.From)
	assert.Equal(t, "Alice", offer.Name)

	assert.True(t, relay.AnswerCall(alice, json.RawMessage(`{"sdp":"y"}`)))
	assert.Equal(t, EventCallAccepted, out.out[1].event)
	assert.True(t, relay.IceCandidate(bob, json.RawMessage(`{}`)))
	assert.Equal(t, EventIceCandidate, out.out[2].event)
	assert.True(t, relay.RejectCall(alice))
	assert.Equal(t, EventCallRejected, out.out[3].event)

	out.out = nil
	toOK, fromOK := relay.EndCall(alice, bob)
	assert.True(t, toOK)
	assert.True(t, fromOK)
	require.Len(t, out.out, 2)
	assert.ElementsMatch(t, []string{"ca", "cb"}, []string{out.out[0].conn, out.out[1].conn})
	for _, s := range out.out {
		assert.Equal(t, EventCallEnded, s.event)
		assert.Equal(t, CallEnded{By: alice}, s.data)
	}

	out.dead["cb"] = true
	toOK, fromOK = relay.EndCall(alice, bob)
	assert.False(t, toOK)
	assert.True(t, fromOK)
}

type gatewayFixture struct {
	db      *gorm.DB
	hub     *Hub
	reg     *Registry
	gw      *Gateway
	poster  *models.User
	student *models.User
	job     *models.Job
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	poster := testutil.CreateUser(t, gdb, "Poster", models.RoleEmployer)
	student := testutil.CreateUser(t, gdb, "Student", models.RoleFreelancer)
	job := testutil.CreateJob(t, gdb, poster, "Fix my laptop", 300)

	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	reg := NewRegistry(nil, nil)
	return &gatewayFixture{
		db:      gdb,
		hub:     hub,
		reg:     reg,
		gw:      NewGateway(hub, reg, chat.NewService(gdb, nil), nil),
		poster:  poster,
		student: student,
		job:     job,
	}
}

func frame(t *testing.T, event string, data interface{}) Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Frame{Event: event, Data: raw}
}

func TestGateway_ChatRoomFlow(t *testing.T) {
	fx := newGatewayFixture(t)
	ctx := context.Background()

	pc := NewClient(fx.poster.ID, nil)
	sc := NewClient(fx.student.ID, nil)
	fx.gw.Connect(pc)
	fx.gw.Connect(sc)
	assert.Equal(t, EventMe, recv(t, pc).Event)
	assert.Equal(t, EventMe, recv(t, sc).Event)

	key := chat.Key{PosterID: fx.poster.ID, AcceptedUserID: fx.student.ID, JobID: fx.job.ID}
	room := chat.RoomID(fx.job.ID.String(), fx.student.ID.String(), fx.poster.ID.String())
	fx.gw.Handle(ctx, pc, frame(t, EventJoinRoom, key))
	fx.gw.Handle(ctx, sc, frame(t, EventJoinRoom, key))
	assert.Equal(t, 2, fx.hub.RoomSize(room))

	fx.gw.Handle(ctx, sc, frame(t, EventSendMessage, map[string]interface{}{
		"posterId":       key.PosterID,
		"acceptedUserId": key.AcceptedUserID,
		"jobId":          key.JobID,
		"senderId":       fx.poster.ID, // ignored, the connection's user is the sender
		"text":           "on my way",
	}))
	for _, c := range []*Client{pc, sc} {
		f := recv(t, c)
		require.Equal(t, EventNewMessage, f.Event)
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, "on my way", msg.Text)
		assert.Equal(t, fx.student.ID, msg.SenderID)
	}

	fx.gw.Handle(ctx, pc, frame(t, EventMessageSeen, key))
	for _, c := range []*Client{pc, sc} {
		f := recv(t, c)
		require.Equal(t, EventMessageSeenUpdate, f.Event)
		var msgs []models.ChatMessage
		require.NoError(t, json.Unmarshal(f.Data, &msgs))
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Seen)
	}
}

func TestGateway_JoinRoomRequiresParty(t *testing.T) {
	fx := newGatewayFixture(t)
	ctx := context.Background()

	outsider := testutil.CreateUser(t, fx.db, "Eve", models.RoleFreelancer)
	ec := NewClient(outsider.ID, nil)
	sc := NewClient(fx.student.ID, nil)
	fx.gw.Connect(ec)
	fx.gw.Connect(sc)
	recv(t, ec)
	recv(t, sc)

	key := chat.Key{PosterID: fx.poster.ID, AcceptedUserID: fx.student.ID, JobID: fx.job.ID}
	fx.gw.Handle(ctx, ec, frame(t, EventJoinRoom, key))
	f := recv(t, ec)
	require.Equal(t, EventError, f.Event)
	var p errorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, EventJoinRoom, p.Event)
	assert.Equal(t, "FORBIDDEN", p.Code)
	assert.Equal(t, 0, fx.hub.RoomSize(key.Room()))

	fx.gw.Handle(ctx, sc, frame(t, EventJoinRoom, key))
	fx.gw.Handle(ctx, sc, frame(t, EventSendMessage, map[string]interface{}{
		"posterId":       key.PosterID,
		"acceptedUserId": key.AcceptedUserID,
		"jobId":          key.JobID,
		"text":           "private address: 12 Elm St",
	}))
	assert.Equal(t, EventNewMessage, recv(t, sc).Event)
	assertSilent(t, ec)

	fx.gw.Handle(ctx, sc, frame(t, EventLeaveRoom, key))
	assert.Equal(t, 0, fx.hub.RoomSize(key.Room()))
}

func TestGateway_RejectsBadFrames(t *testing.T) {
	fx := newGatewayFixture(t)
	ctx := context.Background()
	c := NewClient(fx.student.ID, nil)
	fx.gw.Connect(c)
	recv(t, c)

	fx.gw.Handle(ctx, c, Frame{Event: EventJoinRoom, Data: json.RawMessage(`""`)})
	f := recv(t, c)
	assert.Equal(t, EventError, f.Event)

	fx.gw.Handle(ctx, c, frame(t, EventSendMessage, map[string]interface{}{"text": "hi"}))
	f = recv(t, c)
	require.Equal(t, EventError, f.Event)
	var p errorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, EventSendMessage, p.Event)
	assert.Equal(t, "VALIDATION_ERROR", p.Code)

	fx.gw.Handle(ctx, c, Frame{Event: "somethingElse"})
	assertSilent(t, c)

	fx.gw.Handle(ctx, c, Frame{Event: EventPing})
	assert.Equal(t, EventPong, recv(t, c).Event)
}

func TestGateway_PresenceAndDisconnect(t *testing.T) {
	fx := newGatewayFixture(t)
	ctx := context.Background()
	pc := NewClient(fx.poster.ID, nil)
	sc := NewClient(fx.student.ID, nil)
	fx.gw.Connect(pc)
	fx.gw.Connect(sc)
	recv(t, pc)
	recv(t, sc)

	fx.gw.Handle(ctx, pc, Frame{Event: EventRegisterUser})
	f := recv(t, sc)
	require.Equal(t, EventOnlineUsers, f.Event)
	var online []string
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Equal(t, []string{fx.poster.ID.String()}, online)
	recv(t, pc)

	fx.gw.Handle(ctx, sc, Frame{Event: EventRegisterUser})
	recv(t, pc)
	recv(t, sc)

	fx.gw.Handle(ctx, sc, frame(t, EventCallUser, map[string]interface{}{
		"userToCall": fx.poster.ID,
		"name":       "Student",
		"signal":     map[string]string{"type": "offer"},
	}))
	f = recv(t, pc)
	require.Equal(t, EventCallIncoming, f.Event)
	var offer CallOffer
	require.NoError(t, json.Unmarshal(f.Data, &offer))
	assert.Equal(t, fx.student.ID, offer.From)

	fx.gw.Disconnect(sc)
	f = recv(t, pc)
	require.Equal(t, EventOnlineUsers, f.Event)
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Equal(t, []string{fx.poster.ID.String()}, online)
	_, ok := fx.reg.Lookup(fx.student.ID)
	assert.False(t, ok)
}

func TestGateway_EvictedClientLeavesPresence(t *testing.T) {
	fx := newGatewayFixture(t)
	ctx := context.Background()
	pc := NewClient(fx.poster.ID, nil)
	sc := NewClient(fx.student.ID, nil)
	fx.gw.Connect(pc)
	fx.gw.Connect(sc)
	recv(t, pc)
	recv(t, sc)

	fx.gw.Handle(ctx, pc, Frame{Event: EventRegisterUser})
	recv(t, pc)
	recv(t, sc)
	fx.gw.Handle(ctx, sc, Frame{Event: EventRegisterUser})
	recv(t, pc)
	recv(t, sc)

	// the student stops reading
	for len(sc.Send) < cap(sc.Send) {
		sc.Send <- []byte(`{}`)
	}
	fx.hub.BroadcastAll(EventPong, nil)
	assert.Equal(t, EventPong, recv(t, pc).Event)

	f := recv(t, pc)
	require.Equal(t, EventOnlineUsers, f.Event)
	var online []string
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Equal(t, []string{fx.poster.ID.String()}, online)

	_, ok := fx.reg.Lookup(fx.student.ID)
	assert.False(t, ok)
	assert.False(t, fx.gw.relay.CallUser(fx.poster.ID, fx.student.ID, "Poster", json.RawMessage(`{}`)))
}
