package main

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is a match room that players can join
type Room struct {
	ID           string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	Game         *Game
}

// RoomManager handles creation, lookup and teardown of rooms
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	maxRooms int
	arena    ArenaConfig
	journal  *Journal
}

// NewRoomManager creates a RoomManager. journal may be nil.
func NewRoomManager(arena ArenaConfig, maxRooms int, journal *Journal) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		arena:    arena,
		journal:  journal,
	}
}

// CreateRoom creates a room and starts its loop. The tick rate is fixed here
// for the room's lifetime.
func (rm *RoomManager) CreateRoom(name, passwordHash string) (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= rm.maxRooms {
		return nil, ErrTooManyRooms
	}

	id := uuid.NewString()
	game := NewGame(id, rm.arena, time.Now().UnixNano())
	if rm.journal != nil {
		game.OnResult = rm.journal.Record
	}
	game.OnFault = func(error) { rm.RemoveRoom(id) }

	room := &Room{
		ID:           id,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		Game:         game,
	}
	rm.rooms[id] = room
	go game.Run()
	log.Printf("room %s: created %q", id, name)
	return room, nil
}

// GetRoom returns a room by ID
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// Disconnect releases or marks a player's slot and tears the room down once
// no connected human remains
func (rm *RoomManager) Disconnect(roomID, playerID string, client Broadcaster) {
	room := rm.GetRoom(roomID)
	if room == nil {
		return
	}
	room.Game.DisconnectPlayer(playerID, client)
	if room.Game.ConnectedHumans() == 0 {
		rm.RemoveRoom(roomID)
	}
}

// RemoveRoom stops a room's loop and forgets everything recorded for it
func (rm *RoomManager) RemoveRoom(id string) {
	rm.mu.Lock()
	room, ok := rm.rooms[id]
	delete(rm.rooms, id)
	rm.mu.Unlock()
	if !ok {
		return
	}
	room.Game.Stop()
	if rm.journal != nil {
		rm.journal.Purge(id)
	}
	log.Printf("room %s: removed", id)
}

// ListRooms returns info about all active rooms, oldest first
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	list := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		list = append(list, RoomInfo{
			ID:       r.ID,
			Name:     r.Name,
			Players:  r.Game.PlayerCount(),
			Phase:    string(r.Game.Phase()),
			Password: r.PasswordHash != "",
		})
	}
	return list
}

// Count returns the number of live rooms
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Close stops every room
func (rm *RoomManager) Close() {
	rm.mu.RLock()
	ids := make([]string, 0, len(rm.rooms))
	for id := range rm.rooms {
		ids = append(ids, id)
	}
	rm.mu.RUnlock()
	for _, id := range ids {
		rm.RemoveRoom(id)
	}
}
