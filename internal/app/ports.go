package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// RoomRegistry is the process-wide collection of active rooms (in-memory, Redis-marked, etc).
// Lookups may run concurrently; Create and Destroy are atomic with respect to them.
type RoomRegistry interface {
	// Create allocates a room under a code not currently in use.
	Create(hostID string, now time.Time) (*Room, error)
	Get(code string) (*Room, bool)
	Destroy(code string)
	Rooms() []*Room
}

// QuestionSource returns the ordered question bank. The returned slice is shared and must be
// treated as read-only.
type QuestionSource interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// Transport pushes events to connections. Implementations must not block: the game service
// calls them while holding a room lock so events leave in the order they were produced.
type Transport interface {
	Broadcast(room, event string, payload any)
	Send(conn, event string, payload any)
	Join(conn, room string)
	Leave(conn, room string)
	CloseRoom(room string)
}
