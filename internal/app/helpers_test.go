package app

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"

	"github.com/jonboulle/clockwork"
)

type sentEvent struct {
	room    string // set for broadcasts
	conn    string // set for unicasts
	event   string
	payload any
}

type recordingTransport struct {
	mu      sync.Mutex
	events  []sentEvent
	members map[string]map[string]bool
	closed  []string
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{members: make(map[string]map[string]bool)}
}

func (tr *recordingTransport) Broadcast(room, event string, payload any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, sentEvent{room: room, event: event, payload: payload})
}

func (tr *recordingTransport) Send(conn, event string, payload any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, sentEvent{conn: conn, event: event, payload: payload})
}

func (tr *recordingTransport) Join(conn, room string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.members[room] == nil {
		tr.members[room] = make(map[string]bool)
	}
	tr.members[room][conn] = true
}

func (tr *recordingTransport) Leave(conn, room string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.members[room], conn)
}

func (tr *recordingTransport) CloseRoom(room string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.members, room)
	tr.closed = append(tr.closed, room)
}

func (tr *recordingTransport) isMember(conn, room string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.members[room][conn]
}

func (tr *recordingTransport) matching(match func(sentEvent) bool) []sentEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var out []sentEvent
	for _, e := range tr.events {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

// waitFor polls until an event satisfying match was recorded and returns the first one.
func (tr *recordingTransport) waitFor(t *testing.T, match func(sentEvent) bool) sentEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if found := tr.matching(match); len(found) > 0 {
			return found[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event never recorded")
	return sentEvent{}
}

func (tr *recordingTransport) count(match func(sentEvent) bool) int {
	return len(tr.matching(match))
}

func eventIs(name string) func(sentEvent) bool {
	return func(e sentEvent) bool { return e.event == name }
}

func roundResultFor(index int) func(sentEvent) bool {
	return func(e sentEvent) bool {
		r, ok := e.payload.(domain.RoundResult)
		return e.event == domain.EventRoundResult && ok && r.QuestionIndex == index
	}
}

func questionFor(index int) func(sentEvent) bool {
	return func(e sentEvent) bool {
		q, ok := e.payload.(domain.QuestionStarted)
		return e.event == domain.EventQuestion && ok && q.Index == index
	}
}

type mapRegistry struct {
	mu    sync.RWMutex
	next  int
	rooms map[string]*Room
}

func newMapRegistry() *mapRegistry {
	return &mapRegistry{next: 100000, rooms: make(map[string]*Room)}
}

func (r *mapRegistry) Create(hostID string, now time.Time) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code := strconv.Itoa(r.next)
	r.next++
	room := NewRoom(code, hostID, now)
	r.rooms[code] = room
	return room, nil
}

func (r *mapRegistry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *mapRegistry) Destroy(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

func (r *mapRegistry) Rooms() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

type staticSource []domain.Question

func (s staticSource) Questions(context.Context) ([]domain.Question, error) {
	return s, nil
}

func testBank() staticSource {
	return staticSource{
		{ID: 1, Text: "2+2?", Options: []string{"3", "4", "5", "6"}, Correct: 1},
		{ID: 2, Text: "Capital of France?", Options: []string{"Rome", "Madrid", "Paris", "Berlin"}, Correct: 2},
	}
}

type harness struct {
	svc   *GameService
	tr    *recordingTransport
	clock *clockwork.FakeClock
	rooms *mapRegistry
}

func newHarness(t *testing.T, bank staticSource) *harness {
	t.Helper()
	tr := newRecordingTransport()
	clock := clockwork.NewFakeClock()
	rooms := newMapRegistry()
	svc := NewGameService(Dependencies{
		Rooms:     rooms,
		Questions: bank,
		Transport: tr,
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(1)),
	}, DefaultSettings())
	t.Cleanup(svc.Close)
	return &harness{svc: svc, tr: tr, clock: clock, rooms: rooms}
}

// lobby creates a room hosted by conn "host" and joins the given players, each on a connection
// named after them in lower case.
func (h *harness) lobby(t *testing.T, names ...string) string {
	t.Helper()
	ctx := context.Background()
	created, err := h.svc.CreateRoom(ctx, "host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, name := range names {
		if _, err := h.svc.JoinPlayer(ctx, created.RoomCode, name, connOf(name)); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	return created.RoomCode
}

func connOf(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}

// advanceTicks moves the fake clock n ticks forward, waiting for the countdown to arm its timer
// before each step. Only valid while the countdown is the clock's sole waiter.
func (h *harness) advanceTicks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := h.clock.BlockUntilContext(ctx, 1)
		cancel()
		if err != nil {
			t.Fatalf("countdown timer never armed: %v", err)
		}
		h.clock.Advance(time.Second)
	}
}

func playerResult(t *testing.T, r domain.RoundResult, name string) domain.PlayerResult {
	t.Helper()
	for _, pr := range r.PlayerResults {
		if pr.Name == name {
			return pr
		}
	}
	t.Fatalf("no result for %s in %+v", name, r.PlayerResults)
	return domain.PlayerResult{}
}

func (h *harness) room(t *testing.T, code string) *Room {
	t.Helper()
	room, ok := h.svc.Room(code)
	if !ok {
		t.Fatalf("room %s not found", code)
	}
	return room
}
