package app

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"

	"github.com/rs/zerolog/log"
)

// binding ties a transport connection to the stable identity it currently speaks for.
type binding struct {
	code     string
	identity string
	host     bool
}

// bindings is the connection -> identity map. Identities never change when a client reconnects;
// only the connection bound to them does.
type bindings struct {
	mu     sync.Mutex
	byConn map[string]binding
}

func newBindings() *bindings {
	return &bindings{byConn: make(map[string]binding)}
}

func (b *bindings) bind(conn string, v binding) (binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.byConn[conn]
	b.byConn[conn] = v
	return prev, ok && prev != v
}

func (b *bindings) lookup(conn string) (binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.byConn[conn]
	return v, ok
}

func (b *bindings) release(conn string) (binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.byConn[conn]
	delete(b.byConn, conn)
	return v, ok
}

// releaseIf drops conn only while it still speaks for identity.
func (b *bindings) releaseIf(conn, identity string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.byConn[conn]; ok && v.identity == identity {
		delete(b.byConn, conn)
	}
}

func (b *bindings) releaseRoom(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, v := range b.byConn {
		if v.code == code {
			delete(b.byConn, conn)
		}
	}
}

// bindConn must be called without any room lock held: a connection switching rooms detaches
// from the previous one.
func (s *GameService) bindConn(conn string, v binding) {
	if prev, replaced := s.bindings.bind(conn, v); replaced {
		// switching roles inside one room keeps the connection subscribed to it
		s.detach(conn, prev, prev.code == v.code)
	}
}

// Disconnect is the transport's notification that conn went away. The identity it was bound to
// keeps its seat for the grace period.
func (s *GameService) Disconnect(conn string) {
	b, ok := s.bindings.release(conn)
	if !ok {
		return
	}
	s.detach(conn, b, false)
}

func (s *GameService) detach(conn string, b binding, stayInRoom bool) {
	room, ok := s.rooms.Get(b.code)
	if !ok {
		return
	}
	if !stayInRoom {
		s.transport.Leave(conn, b.code)
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return
	}

	if b.host {
		if room.hostConn != conn {
			return
		}
		room.hostConn = ""
	} else {
		p := room.playerByIDLocked(b.identity)
		if p == nil || room.conns[b.identity] != conn {
			return
		}
		delete(room.conns, b.identity)
		p.Connected = false
		s.transport.Broadcast(room.code, domain.EventRosterUpdated, room.rosterLocked())
	}

	room.cancelGraceLocked(b.identity)
	seq := room.graceSeq[b.identity]
	identity := b.identity
	room.graceTimers[identity] = s.clock.AfterFunc(s.settings.GracePeriod, func() {
		s.onGraceExpired(room, identity, seq)
	})
	log.Info().Str("room", room.code).Str("identity", identity).Bool("host", b.host).Msg("connection lost, grace period started")
}

func (s *GameService) onGraceExpired(room *Room, identity string, seq uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || room.graceSeq[identity] != seq {
		return
	}
	delete(room.graceTimers, identity)

	if identity == room.hostID {
		s.destroyRoomLocked(room, domain.ReasonHostDisconnected)
		return
	}
	if !room.removePlayerLocked(identity) {
		return
	}
	log.Info().Str("room", room.code).Str("player", identity).Msg("player removed after grace period")
	s.transport.Broadcast(room.code, domain.EventRosterUpdated, room.rosterLocked())
	if room.status == domain.StatusQuestionActive {
		s.transport.Broadcast(room.code, domain.EventAnswerProgress, room.progressLocked())
	}
}

// HostReconnect rebinds the room's host identity to conn and returns the state the host UI needs
// to resume.
func (s *GameService) HostReconnect(_ context.Context, code, conn string) (domain.HostResumed, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.HostResumed{}, domain.ErrSessionExpired
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.HostResumed{}, domain.ErrSessionExpired
	}
	old := room.hostConn
	room.hostConn = conn
	room.cancelGraceLocked(room.hostID)
	room.lastActive = s.clock.Now()
	hostID := room.hostID

	s.transport.Join(conn, code)
	resumed := domain.HostResumed{
		RoomCode:             code,
		Status:               room.status,
		Players:              room.rosterLocked(),
		CurrentQuestionIndex: room.current,
		TotalQuestions:       len(room.order),
	}
	s.transport.Send(conn, domain.EventHostResumed, resumed)
	room.mu.Unlock()

	if old != "" && old != conn {
		s.demote(old, hostID, code)
	}
	s.bindConn(conn, binding{code: code, identity: hostID, host: true})
	log.Info().Str("room", code).Str("conn", conn).Msg("host reconnected")
	return resumed, nil
}

// PlayerReconnect finds a player by name and rebinds it to conn. Score, stats and any answer
// already submitted for the running question are keyed by the player's identity and carry over.
func (s *GameService) PlayerReconnect(_ context.Context, code, name, conn string) (domain.PlayerResumed, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.PlayerResumed{}, domain.ErrSessionExpired
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.PlayerResumed{}, domain.ErrSessionExpired
	}
	p := room.playerByNameLocked(name)
	if p == nil {
		room.mu.Unlock()
		return domain.PlayerResumed{}, domain.ErrPlayerNotFound
	}
	old := room.conns[p.ID]
	room.conns[p.ID] = conn
	p.Connected = true
	room.cancelGraceLocked(p.ID)
	room.lastActive = s.clock.Now()
	playerID := p.ID

	s.transport.Join(conn, code)
	resumed := domain.PlayerResumed{RoomCode: code, Status: room.status, Player: *p}
	s.transport.Send(conn, domain.EventPlayerResumed, resumed)
	s.transport.Broadcast(code, domain.EventRosterUpdated, room.rosterLocked())
	room.mu.Unlock()

	if old != "" && old != conn {
		s.demote(old, playerID, code)
	}
	s.bindConn(conn, binding{code: code, identity: playerID})
	log.Info().Str("room", code).Str("player", playerID).Msg("player reconnected")
	return resumed, nil
}

// demote strips a still-live connection of the identity another connection just took over.
func (s *GameService) demote(conn, identity, code string) {
	s.bindings.releaseIf(conn, identity)
	s.transport.Leave(conn, code)
	s.transport.Send(conn, domain.EventError, domain.Describe(domain.ErrSessionReplaced))
	log.Warn().Str("room", code).Str("identity", identity).Str("conn", conn).Msg("seat taken over by another connection")
}
