package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/realtime"
)

// MessageLog is the per-room append-only event log.
type MessageLog interface {
	Append(ctx context.Context, code string, msg model.GameMessage) (string, error)
	History(ctx context.Context, code string) ([]model.GameMessage, error)
	ListenFrom(ctx context.Context, code, afterID string) <-chan model.GameMessage
	Trim(ctx context.Context, code string) (int64, error)
}

// RelayService writes and streams room messages.
type RelayService struct {
	log MessageLog
	now func() time.Time
}

// NewRelayService creates a new RelayService.
func NewRelayService(log MessageLog) *RelayService {
	return &RelayService{log: log, now: time.Now}
}

// Send appends msg to the room log. A zero Timestamp is filled with the
// current time in milliseconds. The returned message carries its log id.
func (s *RelayService) Send(ctx context.Context, code string, msg model.GameMessage) (model.GameMessage, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = s.now().UnixMilli()
	}
	id, err := s.log.Append(ctx, code, msg)
	if err != nil {
		return model.GameMessage{}, err
	}
	msg.ID = id
	return msg, nil
}

// SubmitAnswer relays a player's answer as an ANSWER_SUBMITTED message.
func (s *RelayService) SubmitAnswer(ctx context.Context, code string, answer model.PlayerAnswer) (model.GameMessage, error) {
	if answer.Timestamp == 0 {
		answer.Timestamp = s.now().UnixMilli()
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return model.GameMessage{}, fmt.Errorf("encode answer: %w", err)
	}
	return s.Send(ctx, code, model.GameMessage{
		Type:       model.MessageAnswerSubmitted,
		PlayerID:   answer.PlayerID,
		PlayerName: answer.PlayerName,
		Payload:    string(payload),
		Timestamp:  answer.Timestamp,
	})
}

// History returns the whole current log of a room, oldest first.
func (s *RelayService) History(ctx context.Context, code string) ([]model.GameMessage, error) {
	return s.log.History(ctx, code)
}

// Listen yields every message already in the log and then every new one,
// until ctx is cancelled.
func (s *RelayService) Listen(ctx context.Context, code string) <-chan model.GameMessage {
	return s.log.ListenFrom(ctx, code, realtime.StartID)
}

// ListenFrom is Listen resumed after the message with id afterID.
func (s *RelayService) ListenFrom(ctx context.Context, code, afterID string) <-chan model.GameMessage {
	return s.log.ListenFrom(ctx, code, afterID)
}

// Trim drops all but the newest entries of a room's log.
func (s *RelayService) Trim(ctx context.Context, code string) (int64, error) {
	return s.log.Trim(ctx, code)
}
