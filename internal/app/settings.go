package app

import (
	"time"

	"live-quiz-service/internal/scoring"
)

// Settings tune room pacing and scoring.
type Settings struct {
	QuestionTicks    int           // countdown length per question, in ticks
	TickInterval     time.Duration // one time unit
	Rules            scoring.Rules
	GracePeriod      time.Duration // how long a dropped identity may come back
	AutoAdvanceDelay time.Duration // used when start_game omits a delay
	RoomIdleTimeout  time.Duration // zero disables the reaper
	Selection        QuestionSelection
}

func DefaultSettings() Settings {
	return Settings{
		QuestionTicks:    15,
		TickInterval:     time.Second,
		Rules:            scoring.DefaultRules(),
		GracePeriod:      30 * time.Second,
		AutoAdvanceDelay: 5 * time.Second,
		RoomIdleTimeout:  time.Hour,
	}
}
