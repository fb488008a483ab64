package main

import "encoding/json"

// Event kinds. Kinds the server never interprets (GameStart, GameEvent,
// HostEvent, ToHost, the msg half of FromHost) carry their payload through
// untouched — arbitrary game logic rides inside those envelopes.
const (
	EventPlayerJoined   = "PlayerJoined"
	EventPlayerLeft     = "PlayerLeft"
	EventInitData       = "InitData"
	EventChatMessage    = "ChatMessage"
	EventGameStart      = "GameStart"
	EventReset          = "Reset"
	EventToHost         = "ToHost"
	EventFromHost       = "FromHost"
	EventSetPublic      = "SetPublic"
	EventHostEvent      = "HostEvent"
	EventGameEvent      = "GameEvent"
	EventGameInProgress = "GameInProgress"
)

// Role of a room member on the wire: "Host" or "Player".
type Role string

const (
	RoleHost   Role = "Host"
	RolePlayer Role = "Player"
)

// Event is one frame of the room protocol: {"type": K} or
// {"type": K, "data": P}. The payload stays undecoded until the dispatcher
// needs it, so opaque kinds relay byte-for-byte.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlayerInfo is the membership snapshot entry carried by InitData.
type PlayerInfo struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type joinData struct {
	Name string `json:"name"`
	ID   *int   `json:"id,omitempty"`
}

type leftData struct {
	ID int `json:"id"`
}

type initData struct {
	Players []PlayerInfo `json:"players"`
	ID      int          `json:"id"`
	Role    Role         `json:"role"`
}

type chatData struct {
	Msg string `json:"msg"`
	ID  *int   `json:"id,omitempty"`
}

type fromHostData struct {
	ID  int             `json:"id"`
	Msg json.RawMessage `json:"msg"`
}

func newEvent(kind string, payload any) Event {
	if payload == nil {
		return Event{Type: kind}
	}
	data, _ := json.Marshal(payload)
	return Event{Type: kind, Data: data}
}

// encode serializes the event to its wire form. Event and its payload types
// always marshal cleanly.
func (e Event) encode() []byte {
	frame, _ := json.Marshal(e)
	return frame
}
