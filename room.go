package main

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrRoomClosed     = errors.New("room closed")
	ErrGameInProgress = errors.New("game in progress")
)

// Room is the shared state of one lobby: the member list in join order, the
// game-lifecycle flags and the activity timestamp the purge sweep reads.
// Every mutation happens under mu; fan-out while holding the lock is a
// non-blocking send into each member's outbound queue, so one slow client
// can never stall the room.
type Room struct {
	mu      sync.Mutex
	members []*Client
	started bool
	public  bool
	closed  bool
	updated time.Time
}

func NewRoom() *Room {
	return &Room{updated: time.Now()}
}

// Touch records activity; called for every accepted inbound frame.
func (r *Room) Touch() {
	r.mu.Lock()
	r.updated = time.Now()
	r.mu.Unlock()
}

func (r *Room) Updated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updated
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// broadcastLocked delivers ev to every member, sender included.
func (r *Room) broadcastLocked(ev Event) {
	frame := ev.encode()
	for _, m := range r.members {
		m.enqueue(frame)
	}
}

// hostLocked returns the current Host, or nil for a host-less room.
func (r *Room) hostLocked() *Client {
	for _, m := range r.members {
		if m.role == RoleHost {
			return m
		}
	}
	return nil
}

// Join runs the join handshake for c. The first member of an empty room
// becomes Host; ids are assigned as the member count at join time, so an id
// can repeat within the room's lifetime after departures. The joiner gets
// InitData with the pre-join membership snapshot before it is appended, then
// everyone (the joiner included) gets the PlayerJoined broadcast.
func (r *Room) Join(c *Client, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if r.started {
		return ErrGameInProgress
	}

	c.name = name
	c.id = len(r.members)
	if len(r.members) == 0 {
		c.role = RoleHost
	} else {
		c.role = RolePlayer
	}

	players := make([]PlayerInfo, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, PlayerInfo{Name: m.name, ID: m.id})
	}
	c.enqueue(newEvent(EventInitData, initData{Players: players, ID: c.id, Role: c.role}).encode())

	r.members = append(r.members, c)
	r.updated = time.Now()

	id := c.id
	r.broadcastLocked(newEvent(EventPlayerJoined, joinData{Name: name, ID: &id}))
	return nil
}

// Leave removes c and tells the remainder. Safe to call for a client that
// never joined or whose room was already evicted.
func (r *Room) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.broadcastLocked(newEvent(EventPlayerLeft, leftData{ID: c.id}))
			return
		}
	}
}

// RemoveID handles an inbound PlayerLeft: drop any member with a matching id
// and rebroadcast the event as received.
func (r *Room) RemoveID(ev Event, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	kept := r.members[:0]
	for _, m := range r.members {
		if m.id != id {
			kept = append(kept, m)
		}
	}
	r.members = kept
	r.broadcastLocked(ev)
}

// Chat broadcasts msg attributed to the sender; any sender-supplied id was
// already discarded by the dispatcher.
func (r *Room) Chat(senderID int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.broadcastLocked(newEvent(EventChatMessage, chatData{Msg: msg, ID: &senderID}))
}

// Start marks the game started, locking out new joins, and rebroadcasts the
// original event with its opaque payload.
func (r *Room) Start(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.started = true
	r.broadcastLocked(ev)
}

// ResetGame reopens the room for joins.
func (r *Room) ResetGame(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.started = false
	r.broadcastLocked(ev)
}

// SetPublicFlag toggles discoverability. Host-local: no broadcast.
func (r *Room) SetPublicFlag(public bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.public = public
}

// Relay rebroadcasts an opaque event (GameEvent, HostEvent) untouched.
func (r *Room) Relay(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.broadcastLocked(ev)
}

// SendToHost unicasts to the current Host; a host-less room drops the event.
func (r *Room) SendToHost(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if host := r.hostLocked(); host != nil {
		host.enqueue(ev.encode())
	}
}

// SendTo unicasts to the first member with a matching id, if any.
func (r *Room) SendTo(id int, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, m := range r.members {
		if m.id == id {
			m.enqueue(ev.encode())
			return
		}
	}
}

// Listing returns the public-directory entry for the room, if discoverable.
func (r *Room) Listing(code RoomCode) (RoomListing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.public || r.closed {
		return RoomListing{}, false
	}
	name := code.String()
	if host := r.hostLocked(); host != nil {
		name = host.name + "'s lobby"
	}
	return RoomListing{Code: code.String(), Name: name, Players: len(r.members)}, true
}

// Close marks the room dead and disconnects every member. Idempotent. A
// handler still holding the room sees every later operation as a no-op and
// winds down when its socket closes.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, m := range r.members {
		m.Close()
	}
	r.members = nil
}
