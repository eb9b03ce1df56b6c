package memory

import (
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// RoomRegistry is an in-memory implementation of app.RoomRegistry.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
	codes app.CodeGenerator
}

func NewRoomRegistry(codes app.CodeGenerator) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*app.Room),
		codes: codes,
	}
}

func (r *RoomRegistry) Create(hostID string, now time.Time) (*app.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < app.MaxCodeAttempts; i++ {
		code := r.codes()
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := app.NewRoom(code, hostID, now)
		r.rooms[code] = room
		return room, nil
	}
	return nil, domain.ErrRoomCodesExhausted
}

func (r *RoomRegistry) Get(code string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *RoomRegistry) Destroy(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

func (r *RoomRegistry) Rooms() []*app.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*app.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}
