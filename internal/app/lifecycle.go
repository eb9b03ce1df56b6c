package app

import (
	"context"

	"live-quiz-service/internal/domain"

	"github.com/rs/zerolog/log"
)

// Reap closes rooms that saw no activity for the configured idle timeout and returns how many
// were closed.
func (s *GameService) Reap() int {
	if s.settings.RoomIdleTimeout <= 0 {
		return 0
	}
	now := s.clock.Now()
	closed := 0
	for _, room := range s.rooms.Rooms() {
		room.mu.Lock()
		if !room.closed && now.Sub(room.lastActive) >= s.settings.RoomIdleTimeout {
			s.destroyRoomLocked(room, domain.ReasonRoomExpired)
			closed++
		}
		room.mu.Unlock()
	}
	return closed
}

// RunReaper sweeps idle rooms every half idle timeout until ctx is done.
func (s *GameService) RunReaper(ctx context.Context) {
	if s.settings.RoomIdleTimeout <= 0 {
		return
	}
	ticker := s.clock.NewTicker(s.settings.RoomIdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Reap(); n > 0 {
				log.Info().Int("rooms", n).Msg("reaped idle rooms")
			}
		}
	}
}

// Close shuts every room down and stops their timers.
func (s *GameService) Close() {
	for _, room := range s.rooms.Rooms() {
		room.mu.Lock()
		s.destroyRoomLocked(room, domain.ReasonShutdown)
		room.mu.Unlock()
	}
}
