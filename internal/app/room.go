package app

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/timer"

	"github.com/jonboulle/clockwork"
)

// Room is the state of one game session. Every field is guarded by mu; methods with a Locked
// suffix expect the caller to hold it.
type Room struct {
	mu sync.Mutex

	code     string
	hostID   string
	hostConn string // empty while the host is disconnected
	status   domain.RoomStatus
	players  []*domain.Player
	conns    map[string]string // player id -> live connection id

	bank      []domain.Question // shared, read-only
	order     []int             // indexes into bank for this game
	current   int
	mode      domain.GameMode
	autoDelay time.Duration

	answers       map[string]int
	answeredAt    map[string]time.Time
	questionStart time.Time

	// generation invalidates asynchronous work (countdowns, auto-advance) scheduled for an
	// earlier phase of the room.
	generation   uint64
	countdown    *timer.Countdown
	advanceTimer clockwork.Timer
	graceTimers  map[string]clockwork.Timer
	graceSeq     map[string]uint64

	createdAt  time.Time
	lastActive time.Time
	closed     bool
}

// NewRoom is exported for registry implementations.
func NewRoom(code, hostID string, now time.Time) *Room {
	return &Room{
		code:        code,
		hostID:      hostID,
		status:      domain.StatusLobby,
		mode:        domain.ModeManual,
		conns:       make(map[string]string),
		answers:     make(map[string]int),
		answeredAt:  make(map[string]time.Time),
		graceTimers: make(map[string]clockwork.Timer),
		graceSeq:    make(map[string]uint64),
		createdAt:   now,
		lastActive:  now,
	}
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Players returns a copy of the roster in join order.
func (r *Room) Players() []domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Generation exposes the current timer generation.
func (r *Room) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

func (r *Room) rosterLocked() []domain.Player {
	out := make([]domain.Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}
	return out
}

// standingsLocked orders players by score, keeping join order on ties.
func (r *Room) standingsLocked() []domain.Player {
	out := r.rosterLocked()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (r *Room) playerByIDLocked(id string) *domain.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByNameLocked(name string) *domain.Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) removePlayerLocked(id string) bool {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			delete(r.conns, id)
			delete(r.answers, id)
			delete(r.answeredAt, id)
			return true
		}
	}
	return false
}

func (r *Room) currentQuestionLocked() domain.Question {
	return r.bank[r.order[r.current]]
}

func (r *Room) bumpGenerationLocked() uint64 {
	r.generation++
	return r.generation
}

func (r *Room) stopCountdownLocked() {
	r.countdown.Stop()
	r.countdown = nil
}

func (r *Room) stopAdvanceLocked() {
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
		r.advanceTimer = nil
	}
}

// cancelGraceLocked forgets a pending grace expiry for id, if any.
func (r *Room) cancelGraceLocked(id string) {
	r.graceSeq[id]++
	if t, ok := r.graceTimers[id]; ok {
		t.Stop()
		delete(r.graceTimers, id)
	}
}

func (r *Room) stopTimersLocked() {
	r.stopCountdownLocked()
	r.stopAdvanceLocked()
	for id, t := range r.graceTimers {
		t.Stop()
		delete(r.graceTimers, id)
	}
}

func (r *Room) progressLocked() domain.AnswerProgress {
	return domain.AnswerProgress{
		AnsweredCount: len(r.answers),
		TotalPlayers:  len(r.players),
		AllAnswered:   len(r.players) > 0 && len(r.answers) >= len(r.players),
	}
}
