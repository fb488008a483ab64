package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLobby(t *testing.T, cfg *Config) (*Registry, *httptest.Server) {
	t.Helper()
	reg := NewRegistry(cfg)
	srv := NewServer(cfg, reg)
	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(ts.Close)
	return reg, ts
}

func dialRoom(t *testing.T, ts *httptest.Server, code RoomCode) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + code.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev Event) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ev.encode()))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(frame, &ev))
	return ev
}

// readNothing asserts no frame arrives within a beat. The conn is unusable
// for further reads afterwards (gorilla treats the timeout as fatal), so
// call it last.
func readNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", frame)
	}
}

// joinRoom sends the join handshake and consumes the handshake traffic (the
// InitData unicast and the joiner's own PlayerJoined broadcast).
func joinRoom(t *testing.T, conn *websocket.Conn, name string) initData {
	t.Helper()
	sendEvent(t, conn, newEvent(EventPlayerJoined, joinData{Name: name}))

	init := readEvent(t, conn)
	require.Equal(t, EventInitData, init.Type)
	var id initData
	require.NoError(t, json.Unmarshal(init.Data, &id))

	joined := readEvent(t, conn)
	require.Equal(t, EventPlayerJoined, joined.Type)
	return id
}

func TestHandlerJoinHandshake(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	aliceInit := joinRoom(t, alice, "Alice")
	assert.Empty(t, aliceInit.Players)
	assert.Equal(t, 0, aliceInit.ID)
	assert.Equal(t, RoleHost, aliceInit.Role)

	bob := dialRoom(t, ts, code)
	bobInit := joinRoom(t, bob, "Bob")
	assert.Equal(t, 1, bobInit.ID)
	assert.Equal(t, RolePlayer, bobInit.Role)
	require.Len(t, bobInit.Players, 1)
	assert.Equal(t, PlayerInfo{Name: "Alice", ID: 0}, bobInit.Players[0])

	// Alice sees Bob arrive too.
	ev := readEvent(t, alice)
	require.Equal(t, EventPlayerJoined, ev.Type)
	var jd joinData
	require.NoError(t, json.Unmarshal(ev.Data, &jd))
	assert.Equal(t, "Bob", jd.Name)
	require.NotNil(t, jd.ID)
	assert.Equal(t, 1, *jd.ID)
}

func TestHandlerChatAttribution(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	// The sender-supplied id is ignored; the server stamps Bob's real id.
	spoofed := 99
	sendEvent(t, bob, newEvent(EventChatMessage, chatData{Msg: "hi", ID: &spoofed}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		require.Equal(t, EventChatMessage, ev.Type)
		var cd chatData
		require.NoError(t, json.Unmarshal(ev.Data, &cd))
		assert.Equal(t, "hi", cd.Msg)
		require.NotNil(t, cd.ID)
		assert.Equal(t, 1, *cd.ID)
	}
}

func TestHandlerGameStartLocksRoom(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	sendEvent(t, alice, Event{Type: EventGameStart, Data: json.RawMessage(`{"seed":42}`)})
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		require.Equal(t, EventGameStart, ev.Type)
		assert.JSONEq(t, `{"seed":42}`, string(ev.Data), "opaque payload must relay untouched")
	}

	room, ok := reg.Lookup(code)
	require.True(t, ok)
	require.Eventually(t, room.Started, time.Second, 10*time.Millisecond)

	// A late joiner gets the notice, then the close handshake.
	late := dialRoom(t, ts, code)
	sendEvent(t, late, newEvent(EventPlayerJoined, joinData{Name: "Carol"}))
	ev := readEvent(t, late)
	assert.Equal(t, EventGameInProgress, ev.Type)

	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Equal(t, 2, room.MemberCount())
}

func TestHandlerNonHostGatedKindsSilent(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	sendEvent(t, bob, newEvent(EventGameStart, nil))
	sendEvent(t, bob, newEvent(EventReset, nil))
	sendEvent(t, bob, Event{Type: EventHostEvent, Data: json.RawMessage(`"x"`)})
	sendEvent(t, bob, newEvent(EventFromHost, fromHostData{ID: 0, Msg: json.RawMessage(`"x"`)}))
	sendEvent(t, bob, newEvent(EventSetPublic, true))

	// A follow-up chat proves the connection survived the rejected kinds.
	sendEvent(t, bob, newEvent(EventChatMessage, chatData{Msg: "still here"}))
	ev := readEvent(t, alice)
	assert.Equal(t, EventChatMessage, ev.Type, "gated kinds must produce no broadcast before the chat")

	room, _ := reg.Lookup(code)
	assert.False(t, room.Started())
	assert.Empty(t, reg.ListPublic())
}

func TestHandlerDirectedMessages(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	// Client → host.
	sendEvent(t, bob, Event{Type: EventToHost, Data: json.RawMessage(`{"ask":"turn"}`)})
	ev := readEvent(t, alice)
	require.Equal(t, EventToHost, ev.Type)
	assert.JSONEq(t, `{"ask":"turn"}`, string(ev.Data))

	// Host → one client.
	sendEvent(t, alice, newEvent(EventFromHost, fromHostData{ID: 1, Msg: json.RawMessage(`{"deal":[1,2]}`)}))
	ev = readEvent(t, bob)
	require.Equal(t, EventFromHost, ev.Type)
	var fh fromHostData
	require.NoError(t, json.Unmarshal(ev.Data, &fh))
	assert.Equal(t, 1, fh.ID)
	assert.JSONEq(t, `{"deal":[1,2]}`, string(fh.Msg))

	// Neither directed message leaks to the other side.
	readNothing(t, alice)
	readNothing(t, bob)
}

func TestHandlerSetPublicListsRoom(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	sendEvent(t, alice, newEvent(EventSetPublic, true))
	// SetPublic has no broadcast; a trailing chat orders the assertion.
	sendEvent(t, alice, newEvent(EventChatMessage, chatData{Msg: "done"}))
	ev := readEvent(t, bob)
	assert.Equal(t, EventChatMessage, ev.Type, "SetPublic must not broadcast")
	readEvent(t, alice)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listings []RoomListing
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listings))
	require.Len(t, listings, 1)
	assert.Equal(t, code.String(), listings[0].Code)
	assert.Equal(t, "Alice's lobby", listings[0].Name)
	assert.Equal(t, 2, listings[0].Players)
}

func TestHandlerEventsBeforeJoinIgnored(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	conn := dialRoom(t, ts, code)
	sendEvent(t, conn, newEvent(EventChatMessage, chatData{Msg: "hello?"}))
	sendEvent(t, conn, newEvent(EventGameStart, nil))

	// Still in the connecting state: the join handshake works as usual.
	id := joinRoom(t, conn, "Alice")
	assert.Equal(t, RoleHost, id.Role)

	room, _ := reg.Lookup(code)
	assert.False(t, room.Started())
}

func TestHandlerEmptyFrameIgnored(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	conn := dialRoom(t, ts, code)
	joinRoom(t, conn, "Alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte{}))
	sendEvent(t, conn, newEvent(EventChatMessage, chatData{Msg: "still alive"}))

	ev := readEvent(t, conn)
	assert.Equal(t, EventChatMessage, ev.Type)
}

func TestHandlerMalformedFrameCloses(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// Bob's connection dies...
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = bob.ReadMessage()
	require.Error(t, err)

	// ...and Alice hears about the departure.
	ev := readEvent(t, alice)
	require.Equal(t, EventPlayerLeft, ev.Type)
	var ld leftData
	require.NoError(t, json.Unmarshal(ev.Data, &ld))
	assert.Equal(t, 1, ld.ID)

	room, _ := reg.Lookup(code)
	assert.Equal(t, 1, room.MemberCount())
}

func TestHandlerHeartbeatTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 100 * time.Millisecond
	reg, ts := newTestLobby(t, cfg)
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")

	bob := dialRoom(t, ts, code)
	bob.SetPingHandler(func(string) error { return nil }) // go silent: never pong
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	// Bob keeps reading (so the no-op ping handler runs) until the server
	// gives up on it.
	bobDead := make(chan struct{})
	go func() {
		defer close(bobDead)
		for {
			if _, _, err := bob.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ev := readEvent(t, alice)
	require.Equal(t, EventPlayerLeft, ev.Type)
	var ld leftData
	require.NoError(t, json.Unmarshal(ev.Data, &ld))
	assert.Equal(t, 1, ld.ID)

	select {
	case <-bobDead:
	case <-time.After(2 * time.Second):
		t.Fatal("silent connection was not closed")
	}

	room, _ := reg.Lookup(code)
	assert.Equal(t, 1, room.MemberCount())
}

func TestHandlerGameEventRelaysForAnyRole(t *testing.T) {
	reg, ts := newTestLobby(t, testConfig())
	code, err := reg.CreateCode()
	require.NoError(t, err)

	alice := dialRoom(t, ts, code)
	joinRoom(t, alice, "Alice")
	bob := dialRoom(t, ts, code)
	joinRoom(t, bob, "Bob")
	readEvent(t, alice) // Bob's arrival

	sendEvent(t, bob, Event{Type: EventGameEvent, Data: json.RawMessage(`{"move":"e4"}`)})
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		require.Equal(t, EventGameEvent, ev.Type)
		assert.JSONEq(t, `{"move":"e4"}`, string(ev.Data))
	}
}
