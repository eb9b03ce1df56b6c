package app

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
	"live-quiz-service/internal/timer"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators of a GameService.
type Dependencies struct {
	Rooms     RoomRegistry
	Questions QuestionSource
	Transport Transport
	// Clock defaults to the real clock; tests pass a clockwork.FakeClock.
	Clock clockwork.Clock
	// Rand drives question shuffling in automatic mode.
	Rand *rand.Rand
}

// GameService contains the room use cases: lobby, rounds, scoring and reconnection.
type GameService struct {
	rooms     RoomRegistry
	questions QuestionSource
	transport Transport
	settings  Settings
	clock     clockwork.Clock
	bindings  *bindings

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewGameService(deps Dependencies, settings Settings) *GameService {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GameService{
		rooms:     deps.Rooms,
		questions: deps.Questions,
		transport: deps.Transport,
		settings:  settings,
		clock:     clock,
		bindings:  newBindings(),
		rnd:       rnd,
	}
}

// Room looks up an active room.
func (s *GameService) Room(code string) (*Room, bool) {
	return s.rooms.Get(code)
}

// CreateRoom opens a lobby hosted by conn.
func (s *GameService) CreateRoom(_ context.Context, conn string) (domain.RoomCreated, error) {
	hostID := uuid.NewString()
	room, err := s.rooms.Create(hostID, s.clock.Now())
	if err != nil {
		return domain.RoomCreated{}, err
	}

	room.mu.Lock()
	room.hostConn = conn
	room.mu.Unlock()

	s.bindConn(conn, binding{code: room.code, identity: hostID, host: true})
	s.transport.Join(conn, room.code)

	created := domain.RoomCreated{RoomCode: room.code, HostID: hostID}
	s.transport.Send(conn, domain.EventRoomCreated, created)
	log.Info().Str("room", room.code).Str("conn", conn).Msg("room created")
	return created, nil
}

// JoinPlayer adds a player to a room that is still in the lobby.
func (s *GameService) JoinPlayer(_ context.Context, code, name, conn string) (domain.Joined, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Joined{}, domain.ErrInvalidName
	}
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.Joined{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return domain.Joined{}, domain.ErrRoomNotFound
	}
	if room.status != domain.StatusLobby {
		room.mu.Unlock()
		return domain.Joined{}, domain.ErrGameInProgress
	}
	if room.playerByNameLocked(name) != nil {
		room.mu.Unlock()
		return domain.Joined{}, domain.ErrNameTaken
	}

	player := &domain.Player{ID: uuid.NewString(), Name: name, Connected: true}
	room.players = append(room.players, player)
	room.conns[player.ID] = conn
	room.lastActive = s.clock.Now()

	s.transport.Join(conn, code)
	joined := domain.Joined{RoomCode: code, Name: name, PlayerID: player.ID}
	s.transport.Send(conn, domain.EventJoined, joined)
	s.transport.Broadcast(code, domain.EventRosterUpdated, room.rosterLocked())
	room.mu.Unlock()

	s.bindConn(conn, binding{code: code, identity: player.ID})
	log.Info().Str("room", code).Str("player", player.ID).Str("name", name).Msg("player joined")
	return joined, nil
}

// StartGame selects the questions and begins the first round. Calls from anyone but the room's
// host are ignored without an error.
func (s *GameService) StartGame(ctx context.Context, code, conn string, mode domain.GameMode, autoDelaySeconds int) error {
	if _, ok := s.hostBinding(code, conn); !ok {
		log.Debug().Str("room", code).Str("conn", conn).Msg("ignoring start_game from non-host")
		return nil
	}
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil
	}

	bank, err := s.questions.Questions(ctx)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("load questions")
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !s.isHostLocked(room, conn) {
		return nil
	}
	if room.status != domain.StatusLobby && room.status != domain.StatusGameOver {
		log.Debug().Str("room", code).Str("status", string(room.status)).Msg("ignoring start_game while a game runs")
		return nil
	}

	order := s.settings.Selection.Select(bank)
	if mode == domain.ModeAuto {
		s.shuffle(order)
	}

	delay := time.Duration(autoDelaySeconds) * s.settings.TickInterval
	if delay <= 0 {
		delay = s.settings.AutoAdvanceDelay
	}

	for _, p := range room.players {
		p.ResetStats()
	}
	room.bank = bank
	room.order = order
	room.mode = mode
	room.autoDelay = delay
	room.current = 0
	room.status = domain.StatusGameActive
	room.lastActive = s.clock.Now()

	log.Info().Str("room", code).Str("mode", string(mode)).Int("questions", len(order)).Msg("game started")
	s.transport.Broadcast(code, domain.EventRosterUpdated, room.rosterLocked())

	if len(order) == 0 {
		s.endGameLocked(room)
		return nil
	}
	s.beginRoundLocked(room)
	return nil
}

// SubmitAnswer records a player's first answer for the active question. Anything else
// (late, duplicate, unknown player, out-of-range index) is dropped silently.
func (s *GameService) SubmitAnswer(_ context.Context, code, conn string, answer int) {
	b, ok := s.bindings.lookup(conn)
	if !ok || b.code != code || b.host {
		return
	}
	if answer < domain.SkipAnswer || answer >= domain.OptionCount {
		log.Debug().Str("room", code).Int("answer", answer).Msg("dropping out-of-range answer")
		return
	}
	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.status != domain.StatusQuestionActive {
		return
	}
	if room.playerByIDLocked(b.identity) == nil {
		return
	}
	if _, dup := room.answers[b.identity]; dup {
		return
	}

	now := s.clock.Now()
	room.answers[b.identity] = answer
	if answer != domain.SkipAnswer {
		room.answeredAt[b.identity] = now
	}
	room.lastActive = now

	s.transport.Broadcast(code, domain.EventAnswerProgress, room.progressLocked())
}

// AdvanceQuestion is the host's single "next" control: during a question it ends the round early,
// after a round it moves on to the next question or ends the game.
func (s *GameService) AdvanceQuestion(_ context.Context, code, conn string) {
	room, ok := s.hostRoom(code, conn)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !s.isHostLocked(room, conn) {
		return
	}
	room.lastActive = s.clock.Now()
	switch room.status {
	case domain.StatusQuestionActive:
		s.finishRoundLocked(room)
	case domain.StatusRoundEnded:
		s.nextQuestionLocked(room)
	}
}

// SkipToResults ends the active round early. It never advances past the results.
func (s *GameService) SkipToResults(_ context.Context, code, conn string) {
	room, ok := s.hostRoom(code, conn)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !s.isHostLocked(room, conn) {
		return
	}
	room.lastActive = s.clock.Now()
	if room.status == domain.StatusQuestionActive {
		s.finishRoundLocked(room)
	}
}

func (s *GameService) beginRoundLocked(room *Room) {
	gen := room.bumpGenerationLocked()
	room.stopCountdownLocked()
	room.stopAdvanceLocked()

	room.answers = make(map[string]int)
	room.answeredAt = make(map[string]time.Time)
	room.questionStart = s.clock.Now()
	room.status = domain.StatusQuestionActive
	room.lastActive = room.questionStart

	q := room.currentQuestionLocked()
	s.transport.Broadcast(room.code, domain.EventQuestion, domain.QuestionStarted{
		Index:     room.current,
		Total:     len(room.order),
		Text:      q.Text,
		Options:   q.Options,
		TimeLimit: s.settings.QuestionTicks,
	})
	log.Debug().Str("room", room.code).Int("index", room.current).Uint64("generation", gen).Msg("round started")

	room.countdown = timer.Start(s.clock, s.settings.QuestionTicks, s.settings.TickInterval, timer.Hooks{
		Tick:   func(remaining int) bool { return s.onTick(room, gen, remaining) },
		Expire: func() { s.onExpire(room, gen) },
	})
}

func (s *GameService) onTick(room *Room, gen uint64, remaining int) bool {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || room.generation != gen || room.status != domain.StatusQuestionActive {
		return false
	}
	s.transport.Broadcast(room.code, domain.EventTick, domain.Tick{SecondsRemaining: remaining})
	return true
}

func (s *GameService) onExpire(room *Room, gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || room.generation != gen {
		log.Debug().Str("room", room.code).Uint64("generation", gen).Msg("stale countdown expired")
		return
	}
	s.finishRoundLocked(room)
}

// finishRoundLocked scores the active round. It is a no-op unless a question is active, which
// makes a countdown expiry racing a host skip score the round exactly once.
func (s *GameService) finishRoundLocked(room *Room) {
	if room.status != domain.StatusQuestionActive {
		return
	}
	room.status = domain.StatusRoundEnded
	gen := room.bumpGenerationLocked()
	room.stopCountdownLocked()

	result := scoring.Score(s.settings.Rules, scoring.Round{
		Question:       room.currentQuestionLocked(),
		QuestionIndex:  room.current,
		TotalQuestions: len(room.order),
		Players:        room.rosterLocked(),
		Answers:        room.answers,
		AnsweredAt:     room.answeredAt,
		StartedAt:      room.questionStart,
	})
	for i, p := range result.Players {
		*room.players[i] = p
	}

	s.transport.Broadcast(room.code, domain.EventRoundResult, result)
	log.Debug().
		Str("room", room.code).
		Int("index", room.current).
		Int("answered", result.RoundStats.TotalAnswered).
		Int("correct", result.RoundStats.CorrectAnswers).
		Msg("round finished")

	if room.mode == domain.ModeAuto {
		room.stopAdvanceLocked()
		room.advanceTimer = s.clock.AfterFunc(room.autoDelay, func() { s.onAutoAdvance(room, gen) })
	}
}

func (s *GameService) onAutoAdvance(room *Room, gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || room.generation != gen || room.status != domain.StatusRoundEnded {
		return
	}
	room.advanceTimer = nil
	s.nextQuestionLocked(room)
}

func (s *GameService) nextQuestionLocked(room *Room) {
	room.stopAdvanceLocked()
	room.current++
	if room.current < len(room.order) {
		s.beginRoundLocked(room)
		return
	}
	s.endGameLocked(room)
}

func (s *GameService) endGameLocked(room *Room) {
	room.status = domain.StatusGameOver
	room.bumpGenerationLocked()
	room.stopCountdownLocked()
	room.stopAdvanceLocked()
	room.lastActive = s.clock.Now()

	s.transport.Broadcast(room.code, domain.EventGameOver, domain.GameOver{Players: room.standingsLocked()})
	log.Info().Str("room", room.code).Msg("game over")
}

// destroyRoomLocked closes a room for good and removes it from the registry.
func (s *GameService) destroyRoomLocked(room *Room, reason string) {
	if room.closed {
		return
	}
	room.closed = true
	room.bumpGenerationLocked()
	room.stopTimersLocked()

	s.transport.Broadcast(room.code, domain.EventRoomClosed, domain.RoomClosed{Reason: reason})
	s.transport.CloseRoom(room.code)
	s.rooms.Destroy(room.code)
	s.bindings.releaseRoom(room.code)
	log.Info().Str("room", room.code).Str("reason", reason).Msg("room closed")
}

// hostRoom resolves a room when conn is bound to its host identity.
func (s *GameService) hostRoom(code, conn string) (*Room, bool) {
	if _, ok := s.hostBinding(code, conn); !ok {
		log.Debug().Str("room", code).Str("conn", conn).Msg("ignoring host action from non-host")
		return nil, false
	}
	return s.rooms.Get(code)
}

func (s *GameService) hostBinding(code, conn string) (binding, bool) {
	b, ok := s.bindings.lookup(conn)
	if !ok || !b.host || b.code != code {
		return binding{}, false
	}
	return b, true
}

func (s *GameService) isHostLocked(room *Room, conn string) bool {
	return !room.closed && room.hostConn != "" && room.hostConn == conn
}

func (s *GameService) shuffle(order []int) {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	s.rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}
