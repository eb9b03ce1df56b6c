package domain

// Outbound event types.
const (
	EventRoomCreated    = "room_created"
	EventJoined         = "joined"
	EventRosterUpdated  = "roster_updated"
	EventQuestion       = "question_started"
	EventTick           = "tick"
	EventAnswerProgress = "answer_progress"
	EventRoundResult    = "round_result"
	EventGameOver       = "game_over"
	EventRoomClosed     = "room_closed"
	EventError          = "error"
	EventHostResumed    = "host_resumed"
	EventPlayerResumed  = "player_resumed"
)

// Reasons carried by room_closed.
const (
	ReasonHostDisconnected = "Host disconnected"
	ReasonRoomExpired      = "Room expired"
	ReasonShutdown         = "Server shutting down"
)

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
}

type Joined struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	PlayerID string `json:"playerId"`
}

// QuestionStarted never carries the correct index.
type QuestionStarted struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

type Tick struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

type AnswerProgress struct {
	AnsweredCount int  `json:"answeredCount"`
	TotalPlayers  int  `json:"totalPlayers"`
	AllAnswered   bool `json:"allAnswered"`
}

type GameOver struct {
	Players []Player `json:"players"`
}

type RoomClosed struct {
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HostResumed struct {
	RoomCode             string     `json:"roomCode"`
	Status               RoomStatus `json:"status"`
	Players              []Player   `json:"players"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	TotalQuestions       int        `json:"totalQuestions"`
}

type PlayerResumed struct {
	RoomCode string     `json:"roomCode"`
	Status   RoomStatus `json:"status"`
	Player   Player     `json:"player"`
}
