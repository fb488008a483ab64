package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Client is the protocol handler for one connection. It decodes inbound
// frames, authorizes them by the sender's role and routes them through its
// room. The room reference is non-owning: once the registry evicts the room,
// every operation on it is a no-op and the connection winds down.
//
// Liveness: the write pump pings on pingPeriod; the read deadline is twice
// that and refreshed on every pong and every inbound frame, so a silent peer
// is closed unilaterally.
type Client struct {
	room   *Room
	conn   *websocket.Conn
	connID string // log correlation only

	// identity, assigned once by Room.Join
	name string
	id   int
	role Role

	pingPeriod time.Duration
	pongWait   time.Duration

	joined    bool
	send      chan []byte
	writeDone chan struct{}
	closeOnce sync.Once
}

func NewClient(room *Room, conn *websocket.Conn, pingPeriod time.Duration) *Client {
	return &Client{
		room:       room,
		conn:       conn,
		connID:     uuid.NewString(),
		role:       RolePlayer,
		pingPeriod: pingPeriod,
		pongWait:   2 * pingPeriod,
		send:       make(chan []byte, sendBufferSize),
		writeDone:  make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking; a client whose
// buffer is full loses the frame rather than stalling the room.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// Close stops the write pump, which flushes queued frames, sends the close
// handshake and tears down the socket. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// shutdown closes the outbound side and waits for the write pump to finish
// flushing, so a final frame (e.g. the GameInProgress notice) reaches the
// peer before the socket dies.
func (c *Client) shutdown() {
	c.Close()
	select {
	case <-c.writeDone:
	case <-time.After(writeWait):
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.room.Leave(c)
		if c.joined {
			log.Printf("conn=%s %q (id=%d) left", c.connID[:8], c.name, c.id)
		}
		c.shutdown()
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("conn=%s read error: %v", c.connID[:8], err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		// Empty text frames are ignored, not decode errors.
		if kind != websocket.TextMessage || len(message) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("conn=%s undecodable frame, closing: %v", c.connID[:8], err)
			return
		}

		c.room.Touch()
		if err := c.handle(ev); err != nil {
			return
		}
	}
}

// handle dispatches one decoded event. A non-nil error terminates the
// connection (after the write pump flushes); a role or state mismatch is a
// silent no-op instead, never an error surfaced to the sender.
func (c *Client) handle(ev Event) error {
	if !c.joined {
		// Until the join handshake, only PlayerJoined means anything.
		if ev.Type != EventPlayerJoined {
			return nil
		}
		var d joinData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return err
		}
		if err := c.room.Join(c, d.Name); err != nil {
			if err == ErrGameInProgress {
				c.enqueue(newEvent(EventGameInProgress, nil).encode())
			}
			return err
		}
		c.joined = true
		log.Printf("conn=%s joined as %q (id=%d role=%s)", c.connID[:8], c.name, c.id, c.role)
		return nil
	}

	switch ev.Type {
	case EventPlayerLeft:
		var d leftData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return err
		}
		c.room.RemoveID(ev, d.ID)

	case EventChatMessage:
		var d chatData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return err
		}
		if d.Msg == "" {
			return nil
		}
		c.room.Chat(c.id, d.Msg)

	case EventGameStart:
		if c.role == RoleHost {
			c.room.Start(ev)
		}

	case EventReset:
		if c.role == RoleHost {
			c.room.ResetGame(ev)
		}

	case EventSetPublic:
		if c.role != RoleHost {
			return nil
		}
		var public bool
		if err := json.Unmarshal(ev.Data, &public); err != nil {
			return err
		}
		c.room.SetPublicFlag(public)

	case EventGameEvent:
		c.room.Relay(ev)

	case EventHostEvent:
		if c.role == RoleHost {
			c.room.Relay(ev)
		}

	case EventToHost:
		c.room.SendToHost(ev)

	case EventFromHost:
		if c.role != RoleHost {
			return nil
		}
		var d fromHostData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return err
		}
		c.room.SendTo(d.ID, ev)

	default:
		// Unknown kinds (and a repeated PlayerJoined) are dropped.
	}
	return nil
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
