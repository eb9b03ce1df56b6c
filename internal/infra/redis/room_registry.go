package redis

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultOpTimeout bounds every Redis round trip made by the registry.
const DefaultOpTimeout = 2 * time.Second

// releaseMarker deletes a room marker only while it still names the owner that set it.
var releaseMarker = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type entry struct {
	room  *app.Room
	owner string
}

// RoomRegistry keeps rooms in a local map and claims each code in Redis with SET NX, so codes
// held by another process sharing the instance are skipped too.
//
// Rooms themselves never leave the process; the Redis key is only a liveness marker that
// expires on its own if the process dies. Redis is never called with mu held.
type RoomRegistry struct {
	client  *redis.Client
	ttl     time.Duration
	codes   app.CodeGenerator
	timeout time.Duration

	mu      sync.RWMutex
	rooms   map[string]entry
	pending map[string]struct{} // codes being claimed in redis
}

func NewRoomRegistry(client *redis.Client, codes app.CodeGenerator, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client:  client,
		ttl:     ttl,
		codes:   codes,
		timeout: DefaultOpTimeout,
		rooms:   make(map[string]entry),
		pending: make(map[string]struct{}),
	}
}

func (r *RoomRegistry) Create(hostID string, now time.Time) (*app.Room, error) {
	for i := 0; i < app.MaxCodeAttempts; i++ {
		code := r.codes()
		if !r.reserve(code) {
			continue
		}

		if !r.claim(code, hostID) {
			r.mu.Lock()
			delete(r.pending, code)
			r.mu.Unlock()
			continue
		}

		room := app.NewRoom(code, hostID, now)
		r.mu.Lock()
		delete(r.pending, code)
		r.rooms[code] = entry{room: room, owner: hostID}
		r.mu.Unlock()
		return room, nil
	}
	return nil, domain.ErrRoomCodesExhausted
}

// reserve marks code as in flight so concurrent creates skip it while redis is consulted.
func (r *RoomRegistry) reserve(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.rooms[code]; taken {
		return false
	}
	if _, taken := r.pending[code]; taken {
		return false
	}
	r.pending[code] = struct{}{}
	return true
}

func (r *RoomRegistry) claim(code, hostID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	claimed, err := r.client.SetNX(ctx, r.key(code), hostID, r.ttl).Result()
	if err != nil {
		// redis is best-effort; the local map still guarantees uniqueness in this process
		log.Warn().Err(err).Str("room", code).Msg("claim room code in redis")
		return true
	}
	return claimed
}

func (r *RoomRegistry) Get(code string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[code]
	return e.room, ok
}

// Destroy forgets the room at once and drops its redis marker in the background, so callers
// holding a room lock never wait on the network.
func (r *RoomRegistry) Destroy(code string) {
	r.mu.Lock()
	e, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := releaseMarker.Run(ctx, r.client, []string{r.key(code)}, e.owner).Err(); err != nil {
			log.Warn().Err(err).Str("room", code).Msg("release room code in redis")
		}
	}()
}

func (r *RoomRegistry) Rooms() []*app.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*app.Room, 0, len(r.rooms))
	for _, e := range r.rooms {
		out = append(out, e.room)
	}
	return out
}

func (r *RoomRegistry) key(code string) string {
	return "quiz:room:" + code
}
