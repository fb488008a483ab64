package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"
)

var ErrSpaceExhausted = errors.New("room code space exhausted")

// Registry owns every active room, keyed by code index. Allocation, lookup
// and the purge sweep share one lock so a code can never be handed out
// twice. Lock ordering is registry before room, never the reverse.
type Registry struct {
	cfg   *Config
	mu    sync.Mutex
	rooms map[uint32]*Room
}

func NewRegistry(cfg *Config) *Registry {
	return &Registry{
		cfg:   cfg,
		rooms: make(map[uint32]*Room),
	}
}

// CreateCode reserves a fresh code: a uniformly random starting index, then
// a forward probe with wrap-around. The room is inserted under the same lock
// hold, so the code is already reserved when it is returned. Only a fully
// occupied namespace fails.
func (reg *Registry) CreateCode() (RoomCode, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	start := uint32(rand.Int63n(int64(codeSpace)))
	idx := start
	for {
		if _, taken := reg.rooms[idx]; !taken {
			reg.rooms[idx] = NewRoom()
			code, _ := RoomCodeFromIndex(idx)
			return code, nil
		}
		idx = (idx + 1) % codeSpace
		if idx == start {
			return RoomCode{}, ErrSpaceExhausted
		}
	}
}

// Lookup resolves a code to its room. The caller gets a non-owning
// reference: the room may be evicted while still held, after which every
// operation on it is a no-op.
func (reg *Registry) Lookup(code RoomCode) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[code.Index()]
	return room, ok
}

// Remove evicts a room explicitly.
func (reg *Registry) Remove(code RoomCode) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[code.Index()]; ok {
		room.Close()
		delete(reg.rooms, code.Index())
	}
}

func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// RoomListing is one entry of the public-room directory.
type RoomListing struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// ListPublic snapshots every discoverable room.
func (reg *Registry) ListPublic() []RoomListing {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	listings := make([]RoomListing, 0)
	for idx, room := range reg.rooms {
		code, _ := RoomCodeFromIndex(idx)
		if l, ok := room.Listing(code); ok {
			listings = append(listings, l)
		}
	}
	return listings
}

// Purge evicts every room idle past the configured threshold and reports how
// many went.
func (reg *Registry) Purge() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cutoff := time.Now().Add(-reg.cfg.RoomIdleTimeout)
	purged := 0
	for idx, room := range reg.rooms {
		if room.Updated().Before(cutoff) {
			room.Close()
			delete(reg.rooms, idx)
			purged++
		}
	}
	return purged
}

// Run drives the periodic idle sweep until ctx is cancelled, then closes
// every remaining room.
func (reg *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(reg.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			reg.closeAll()
			return
		case <-ticker.C:
			if n := reg.Purge(); n > 0 {
				log.Printf("purged %d idle rooms", n)
			}
		}
	}
}

func (reg *Registry) closeAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, room := range reg.rooms {
		room.Close()
	}
	reg.rooms = make(map[uint32]*Room)
}
