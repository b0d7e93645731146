package model

import "time"

// GameState is the lifecycle state of a multiplayer room.
type GameState string

const (
	GameStateWaiting  GameState = "WAITING"
	GameStatePlaying  GameState = "PLAYING"
	GameStateFinished GameState = "FINISHED"
)

// DefaultQuestionType is the only question kind the clients currently render.
const DefaultQuestionType = "LETTER_SIGN"

// MultiplayerRoom is the shared record of a two-player match.
type MultiplayerRoom struct {
	Code                 string    `json:"code"`
	HostID               string    `json:"host_id"`
	HostName             string    `json:"host_name"`
	JoinerID             string    `json:"joiner_id,omitempty"`
	JoinerName           string    `json:"joiner_name,omitempty"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
	GameState            GameState `json:"game_state"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	QuestionType         string    `json:"question_type"`
}

// HasJoiner reports whether the joiner slot is occupied.
func (r *MultiplayerRoom) HasJoiner() bool {
	return r.JoinerID != ""
}

// IsHost reports whether playerID owns the room.
func (r *MultiplayerRoom) IsHost(playerID string) bool {
	return r.HostID == playerID
}

// RoomEventKind distinguishes room watcher notifications.
type RoomEventKind string

const (
	RoomChanged RoomEventKind = "changed"
	RoomRemoved RoomEventKind = "removed"
)

// RoomEvent is delivered to room watchers after every mutation.
type RoomEvent struct {
	Kind RoomEventKind    `json:"kind"`
	Code string           `json:"code"`
	Room *MultiplayerRoom `json:"room,omitempty"`
}

// CreateRoomResponse is returned after a host creates a room.
type CreateRoomResponse struct {
	Room     MultiplayerRoom `json:"room"`
	PlayerID string          `json:"player_id"`
}

// QuestionChangeRequest moves a room to another question.
type QuestionChangeRequest struct {
	Index int `json:"index" binding:"gte=0,lte=1000"`
}
