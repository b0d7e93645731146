package websocket

import (
	"github.com/stemsi/signquest-backend/internal/match"
	"github.com/stemsi/signquest-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmitAnswer Action = "submit_answer"
	ActionPing         Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SubmitAnswerRequest carries one signed letter. Clients send either the
// recognised letter or the raw classifier vector.
type SubmitAnswerRequest struct {
	Action         Action    `json:"action"`
	Answer         string    `json:"answer,omitempty"`
	Confidences    []float32 `json:"confidences,omitempty"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventMessage Event = "message"
	EventState   Event = "state"
	EventRoom    Event = "room"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// MessageEvent relays one room log entry.
type MessageEvent struct {
	Event   Event             `json:"event"`
	Message model.GameMessage `json:"message"`
}

// StateEvent carries the player's reconciled view of the match.
type StateEvent struct {
	Event Event      `json:"event"`
	State match.View `json:"state"`
}

// RoomEvent reports a room change or removal.
type RoomEvent struct {
	Event Event                  `json:"event"`
	Kind  model.RoomEventKind    `json:"kind"`
	Room  *model.MultiplayerRoom `json:"room,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
