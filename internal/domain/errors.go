package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code is unknown.
	ErrRoomNotFound = errors.New("invalid room code")
	// ErrGameInProgress is returned when joining a room that has left the lobby.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrNameTaken is returned when a display name is already used in the room.
	ErrNameTaken = errors.New("name taken in this room")
	// ErrInvalidName rejects empty display names.
	ErrInvalidName = errors.New("name must not be empty")
	// ErrSessionExpired is returned when reconnecting into a room that no longer exists.
	ErrSessionExpired = errors.New("session expired")
	// ErrPlayerNotFound is returned when a reconnecting player name is not in the roster.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrSessionReplaced is sent to a connection whose seat was taken over by a reconnect.
	ErrSessionReplaced = errors.New("session opened on another connection")
	// ErrRoomCodesExhausted means no free room code was found within the retry budget.
	ErrRoomCodesExhausted = errors.New("no free room code available")
	// ErrNoQuestions indicates the question source returned an empty bank.
	ErrNoQuestions = errors.New("question bank is empty")
	// ErrBadRequest marks malformed client messages.
	ErrBadRequest = errors.New("bad request")
)

// ErrorCode maps an error to the code sent in error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "invalid_room"
	case errors.Is(err, ErrGameInProgress):
		return "game_in_progress"
	case errors.Is(err, ErrNameTaken):
		return "name_taken"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrSessionReplaced):
		return "session_replaced"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}

var userMessages = map[string]string{
	"invalid_room":     "Invalid Room Code",
	"game_in_progress": "Game already in progress",
	"name_taken":       "Name taken in this room",
	"invalid_name":     "Please enter a name",
	"session_expired":  "Session expired",
	"player_not_found": "Player not found",
	"session_replaced": "Session opened on another connection",
}

// Describe builds the error event for err. Unknown errors are reported without their details.
func Describe(err error) ErrorMessage {
	code := ErrorCode(err)
	if msg, ok := userMessages[code]; ok {
		return ErrorMessage{Code: code, Message: msg}
	}
	if code == "bad_request" {
		return ErrorMessage{Code: code, Message: err.Error()}
	}
	return ErrorMessage{Code: code, Message: "Something went wrong"}
}
