// Package room owns the room table and its state machine. Rooms persist
// across games; every terminal transition resets them back to WAITING.
package room

import (
	"errors"
	"fmt"
	"sort"
)

var ErrRoomLimit = errors.New("rooms limit reached")

// Registry owns every room. No lock; the server's single writer covers it.
type Registry struct {
	rooms     map[int]*Room
	nextID    int
	nextTable int
	maxRooms  int
}

func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		rooms:     make(map[int]*Room),
		nextID:    1,
		nextTable: 1,
		maxRooms:  maxRooms,
	}
}

// Create allocates a WAITING room with a server-assigned name. The
// client-supplied name is validated upstream and then discarded.
func (r *Registry) Create() (*Room, error) {
	if len(r.rooms) >= r.maxRooms {
		return nil, ErrRoomLimit
	}
	rm := &Room{
		ID:              r.nextID,
		Name:            fmt.Sprintf("Table %d", r.nextTable),
		Status:          StatusWaiting,
		RemainingTurnMs: -1,
	}
	r.nextID++
	r.nextTable++
	r.rooms[rm.ID] = rm
	return rm, nil
}

// Get returns the room with id, nil when absent.
func (r *Registry) Get(id int) *Room { return r.rooms[id] }

// List returns every room in id order.
func (r *Registry) List() []*Room {
	out := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomsOf returns every room seating token, in id order.
func (r *Registry) RoomsOf(token string) []*Room {
	var out []*Room
	for _, rm := range r.List() {
		if rm.SeatIndex(token) >= 0 {
			out = append(out, rm)
		}
	}
	return out
}

// Count returns the number of rooms.
func (r *Registry) Count() int { return len(r.rooms) }
