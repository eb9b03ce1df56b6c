package domain

import "fmt"

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// SkipAnswer is the answer index a player sends to explicitly pass on a question.
const SkipAnswer = -1

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusLobby          RoomStatus = "LOBBY"
	StatusGameActive     RoomStatus = "GAME_ACTIVE"
	StatusQuestionActive RoomStatus = "QUESTION_ACTIVE"
	StatusRoundEnded     RoomStatus = "ROUND_ENDED"
	StatusGameOver       RoomStatus = "GAME_OVER"
)

// GameMode decides who advances between rounds.
type GameMode string

const (
	// ModeManual waits for the host to move to the next question.
	ModeManual GameMode = "manual"
	// ModeAuto advances on its own after the room's auto delay.
	ModeAuto GameMode = "auto"
)

// ParseGameMode maps a client-supplied mode, defaulting to manual.
func ParseGameMode(raw string) GameMode {
	if GameMode(raw) == ModeAuto {
		return ModeAuto
	}
	return ModeManual
}

// Question models a four-option MCQ. Questions are shared between rooms and must not be mutated.
type Question struct {
	ID      int      `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []string `json:"options" yaml:"options"`
	Correct int      `json:"correct" yaml:"correct"`
}

// Validate checks the shape of a loaded question.
func (q Question) Validate() error {
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question %d: expected %d options, got %d", q.ID, OptionCount, len(q.Options))
	}
	if q.Correct < 0 || q.Correct >= OptionCount {
		return fmt.Errorf("question %d: correct index %d out of range", q.ID, q.Correct)
	}
	return nil
}

// Player is a participant of a room and their cumulative stats.
type Player struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Score             int     `json:"score"`
	TotalResponseTime float64 `json:"totalResponseTime"`
	QuestionsAnswered int     `json:"questionsAnswered"` // correct answers that carried a response time
	CorrectAnswers    int     `json:"correctAnswers"`
	IncorrectAnswers  int     `json:"incorrectAnswers"`
	SkippedAnswers    int     `json:"skippedAnswers"`
	Connected         bool    `json:"connected"`
}

// ResetStats zeroes the score and counters, keeping identity and connection state.
func (p *Player) ResetStats() {
	*p = Player{ID: p.ID, Name: p.Name, Connected: p.Connected}
}

// AverageResponseTime is the mean time over correct, timed answers.
func (p Player) AverageResponseTime() float64 {
	if p.QuestionsAnswered == 0 {
		return 0
	}
	return p.TotalResponseTime / float64(p.QuestionsAnswered)
}

// PlayerResult is one player's outcome for a round.
type PlayerResult struct {
	Player
	Answer       *int     `json:"answer"`
	ResponseTime *float64 `json:"responseTime"`
	IsCorrect    bool     `json:"isCorrect"`
	IsSkipped    bool     `json:"isSkipped"`
	Rank         *int     `json:"rank"`
	SpeedBonus   *int     `json:"speedBonus"`
}

// FastestCorrect names the rank-1 correct answerer.
type FastestCorrect struct {
	Name         string  `json:"name"`
	ResponseTime float64 `json:"responseTime"`
}

// RoundStats aggregates a round.
type RoundStats struct {
	TotalPlayers        int     `json:"totalPlayers"`
	TotalAnswered       int     `json:"totalAnswered"`
	CorrectAnswers      int     `json:"correctAnswers"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

// RoundResult is broadcast when a round is finalized. It is not stored.
type RoundResult struct {
	QuestionIndex  int             `json:"questionIndex"`
	TotalQuestions int             `json:"totalQuestions"`
	CorrectIndex   int             `json:"correctIndex"`
	Players        []Player        `json:"players"`
	PlayerResults  []PlayerResult  `json:"playerResults"`
	FastestCorrect *FastestCorrect `json:"fastestCorrect"`
	RoundStats     RoundStats      `json:"roundStats"`
}
