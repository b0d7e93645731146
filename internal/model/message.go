package model

// MessageType tags a room event log entry.
type MessageType string

const (
	MessagePlayerJoined    MessageType = "PLAYER_JOINED"
	MessagePlayerLeft      MessageType = "PLAYER_LEFT"
	MessageAnswerSubmitted MessageType = "ANSWER_SUBMITTED"
	MessageGameStart       MessageType = "GAME_START"
	MessageGameEnd         MessageType = "GAME_END"
	MessageQuestionChange  MessageType = "QUESTION_CHANGE"
)

// GameMessage is one immutable entry of a room's event log.
// ID is assigned by the store on append and orders the log.
type GameMessage struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	Payload    string      `json:"payload"`
	Timestamp  int64       `json:"timestamp"`
}

// PlayerAnswer is the decoded payload of an ANSWER_SUBMITTED message.
type PlayerAnswer struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	Answer         string `json:"answer"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Timestamp      int64  `json:"timestamp"`
}

// SignCheckRequest carries a classifier confidence vector for a target letter.
type SignCheckRequest struct {
	Target      string    `json:"target" binding:"required,len=1,alpha"`
	Confidences []float32 `json:"confidences" binding:"required,len=26"`
}

// SignCheckResponse reports the thresholded top-1 prediction.
type SignCheckResponse struct {
	Letter     string  `json:"letter"`
	Confidence float32 `json:"confidence"`
	Recognized bool    `json:"recognized"`
	Matched    bool    `json:"matched"`
}
