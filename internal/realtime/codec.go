package realtime

import (
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/signquest-backend/internal/model"
)

// Hash fields of a room record.
const (
	fieldCode          = "code"
	fieldHostID        = "host_id"
	fieldHostName      = "host_name"
	fieldJoinerID      = "joiner_id"
	fieldJoinerName    = "joiner_name"
	fieldIsActive      = "is_active"
	fieldCreatedAt     = "created_at"
	fieldExpiresAt     = "expires_at"
	fieldGameState     = "game_state"
	fieldQuestionIndex = "current_question_index"
	fieldQuestionType  = "question_type"
)

// Stream entry fields of a game message.
const (
	fieldType       = "type"
	fieldPlayerID   = "player_id"
	fieldPlayerName = "player_name"
	fieldPayload    = "payload"
	fieldTimestamp  = "timestamp"
)

func encodeRoom(r model.MultiplayerRoom) map[string]interface{} {
	active := "0"
	if r.IsActive {
		active = "1"
	}
	return map[string]interface{}{
		fieldCode:          r.Code,
		fieldHostID:        r.HostID,
		fieldHostName:      r.HostName,
		fieldJoinerID:      r.JoinerID,
		fieldJoinerName:    r.JoinerName,
		fieldIsActive:      active,
		fieldCreatedAt:     strconv.FormatInt(r.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt:     strconv.FormatInt(r.ExpiresAt.UnixMilli(), 10),
		fieldGameState:     string(r.GameState),
		fieldQuestionIndex: strconv.Itoa(r.CurrentQuestionIndex),
		fieldQuestionType:  r.QuestionType,
	}
}

func decodeRoom(h map[string]string) (model.MultiplayerRoom, error) {
	r := model.MultiplayerRoom{
		Code:         h[fieldCode],
		HostID:       h[fieldHostID],
		HostName:     h[fieldHostName],
		JoinerID:     h[fieldJoinerID],
		JoinerName:   h[fieldJoinerName],
		IsActive:     h[fieldIsActive] == "1",
		GameState:    model.GameState(h[fieldGameState]),
		QuestionType: h[fieldQuestionType],
	}

	created, err := strconv.ParseInt(h[fieldCreatedAt], 10, 64)
	if err != nil {
		return model.MultiplayerRoom{}, fmt.Errorf("decode room %s created_at: %w", r.Code, err)
	}
	expires, err := strconv.ParseInt(h[fieldExpiresAt], 10, 64)
	if err != nil {
		return model.MultiplayerRoom{}, fmt.Errorf("decode room %s expires_at: %w", r.Code, err)
	}
	idx, err := strconv.Atoi(h[fieldQuestionIndex])
	if err != nil {
		return model.MultiplayerRoom{}, fmt.Errorf("decode room %s question index: %w", r.Code, err)
	}

	r.CreatedAt = time.UnixMilli(created).UTC()
	r.ExpiresAt = time.UnixMilli(expires).UTC()
	r.CurrentQuestionIndex = idx
	if r.QuestionType == "" {
		r.QuestionType = model.DefaultQuestionType
	}
	return r, nil
}

func encodeMessage(m model.GameMessage) map[string]interface{} {
	return map[string]interface{}{
		fieldType:       string(m.Type),
		fieldPlayerID:   m.PlayerID,
		fieldPlayerName: m.PlayerName,
		fieldPayload:    m.Payload,
		fieldTimestamp:  strconv.FormatInt(m.Timestamp, 10),
	}
}

func decodeMessage(x redis.XMessage) model.GameMessage {
	str := func(k string) string {
		s, _ := x.Values[k].(string)
		return s
	}
	ts, _ := strconv.ParseInt(str(fieldTimestamp), 10, 64)
	return model.GameMessage{
		ID:         x.ID,
		Type:       model.MessageType(str(fieldType)),
		PlayerID:   str(fieldPlayerID),
		PlayerName: str(fieldPlayerName),
		Payload:    str(fieldPayload),
		Timestamp:  ts,
	}
}
