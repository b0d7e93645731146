package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/observability"
	"github.com/stemsi/signquest-backend/internal/realtime"
	"github.com/stemsi/signquest-backend/internal/validator"
)

// Room errors.
var (
	ErrRoomNotFound = realtime.ErrRoomNotFound
	ErrRoomFull     = errors.New("room is full")
	ErrRoomInactive = errors.New("room is no longer active")
	ErrNotInRoom    = errors.New("player is not in this room")
	ErrNotRoomHost  = errors.New("only the host can do that")
)

const maxCodeAttempts = 8

// RoomStore is the realtime store of room records.
type RoomStore interface {
	CreateIfAbsent(ctx context.Context, room model.MultiplayerRoom) error
	Get(ctx context.Context, code string) (model.MultiplayerRoom, error)
	Update(ctx context.Context, code string, fn func(*model.MultiplayerRoom) error) (model.MultiplayerRoom, error)
	Delete(ctx context.Context, code string) (bool, error)
	DueRooms(ctx context.Context, now time.Time) ([]string, error)
	Watch(ctx context.Context, code string) (<-chan model.RoomEvent, error)
}

// RoomService runs the multiplayer room lifecycle:
// WAITING (host only) → PLAYING → FINISHED, with deletion on host leave or
// expiry.
type RoomService struct {
	rooms   RoomStore
	relay   *RelayService
	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)
	tracer  trace.Tracer
	log     zerolog.Logger
}

// NewRoomService creates a new RoomService. Rooms are deleted ttl after
// creation whatever their state.
func NewRoomService(rooms RoomStore, relay *RelayService, ttl time.Duration, log zerolog.Logger) *RoomService {
	return &RoomService{
		rooms:   rooms,
		relay:   relay,
		ttl:     ttl,
		now:     time.Now,
		newCode: generateRoomCode,
		tracer:  observability.Tracer(),
		log:     log.With().Str("component", "room_service").Logger(),
	}
}

// Create opens a WAITING room owned by hostID.
func (s *RoomService) Create(ctx context.Context, hostID, hostName string) (model.MultiplayerRoom, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.Create")
	defer span.End()

	now := s.now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return model.MultiplayerRoom{}, fmt.Errorf("generate room code: %w", err)
		}

		room := model.MultiplayerRoom{
			Code:         code,
			HostID:       hostID,
			HostName:     hostName,
			IsActive:     true,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.ttl),
			GameState:    model.GameStateWaiting,
			QuestionType: model.DefaultQuestionType,
		}
		err = s.rooms.CreateIfAbsent(ctx, room)
		if err == nil {
			span.SetAttributes(attribute.String("room.code", code), attribute.Int("room.attempts", attempt+1))
			s.log.Info().Str("room", code).Str("host", hostID).Msg("Room created")
			return room, nil
		}
		if !errors.Is(err, realtime.ErrRoomExists) {
			span.RecordError(err)
			return model.MultiplayerRoom{}, err
		}
		s.log.Debug().Str("room", code).Msg("Room code collision, retrying")
	}
	return model.MultiplayerRoom{}, fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

// Get returns the current room record.
func (s *RoomService) Get(ctx context.Context, code string) (model.MultiplayerRoom, error) {
	return s.rooms.Get(ctx, code)
}

// Join takes the joiner slot. A missing room wins over a full one, and a full
// one over an inactive one. Joining again as the current joiner, or as the
// host, returns the room unchanged.
func (s *RoomService) Join(ctx context.Context, code, joinerID, joinerName string) (model.MultiplayerRoom, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.Join", trace.WithAttributes(attribute.String("room.code", code)))
	defer span.End()

	rejoined := false
	room, err := s.rooms.Update(ctx, code, func(r *model.MultiplayerRoom) error {
		rejoined = false
		if r.IsHost(joinerID) || r.JoinerID == joinerID {
			rejoined = true
			return nil
		}
		if r.HasJoiner() {
			return ErrRoomFull
		}
		if !r.IsActive {
			return ErrRoomInactive
		}
		r.JoinerID = joinerID
		r.JoinerName = joinerName
		return nil
	})
	if err != nil {
		return model.MultiplayerRoom{}, err
	}
	if rejoined {
		return room, nil
	}

	s.emit(ctx, code, model.MessagePlayerJoined, joinerID, joinerName, "")
	return room, nil
}

// Leave removes a player. The host leaving deletes the room for both sides;
// the joiner leaving only frees the slot.
func (s *RoomService) Leave(ctx context.Context, code, playerID, playerName string) error {
	ctx, span := s.tracer.Start(ctx, "RoomService.Leave", trace.WithAttributes(attribute.String("room.code", code)))
	defer span.End()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return err
	}

	if room.IsHost(playerID) {
		s.emit(ctx, code, model.MessagePlayerLeft, playerID, playerName, "")
		if _, err := s.rooms.Delete(ctx, code); err != nil {
			return err
		}
		s.log.Info().Str("room", code).Msg("Host left, room deleted")
		return nil
	}

	_, err = s.rooms.Update(ctx, code, func(r *model.MultiplayerRoom) error {
		if r.JoinerID != playerID {
			return ErrNotInRoom
		}
		r.JoinerID = ""
		r.JoinerName = ""
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, code, model.MessagePlayerLeft, playerID, playerName, "")
	return nil
}

// Start moves the room to PLAYING at question 0. Host only.
func (s *RoomService) Start(ctx context.Context, code, playerID string) (model.MultiplayerRoom, error) {
	room, err := s.rooms.Update(ctx, code, func(r *model.MultiplayerRoom) error {
		if !r.IsHost(playerID) {
			return ErrNotRoomHost
		}
		if !r.IsActive {
			return ErrRoomInactive
		}
		r.GameState = model.GameStatePlaying
		r.CurrentQuestionIndex = 0
		return nil
	})
	if err != nil {
		return model.MultiplayerRoom{}, err
	}
	s.emit(ctx, code, model.MessageGameStart, playerID, room.HostName, "")
	return room, nil
}

// End moves the room to FINISHED and closes it to new joiners. Either player
// may end the match.
func (s *RoomService) End(ctx context.Context, code, playerID string) (model.MultiplayerRoom, error) {
	var name string
	room, err := s.rooms.Update(ctx, code, func(r *model.MultiplayerRoom) error {
		switch playerID {
		case r.HostID:
			name = r.HostName
		case r.JoinerID:
			name = r.JoinerName
		default:
			return ErrNotInRoom
		}
		r.GameState = model.GameStateFinished
		r.IsActive = false
		return nil
	})
	if err != nil {
		return model.MultiplayerRoom{}, err
	}
	s.emit(ctx, code, model.MessageGameEnd, playerID, name, "")
	return room, nil
}

// NextQuestion sets the current question index. Host only.
func (s *RoomService) NextQuestion(ctx context.Context, code, playerID string, index int) (model.MultiplayerRoom, error) {
	room, err := s.rooms.Update(ctx, code, func(r *model.MultiplayerRoom) error {
		if !r.IsHost(playerID) {
			return ErrNotRoomHost
		}
		r.CurrentQuestionIndex = index
		return nil
	})
	if err != nil {
		return model.MultiplayerRoom{}, err
	}
	s.emit(ctx, code, model.MessageQuestionChange, playerID, room.HostName, strconv.Itoa(index))
	return room, nil
}

// Watch streams change and removal events for one room.
func (s *RoomService) Watch(ctx context.Context, code string) (<-chan model.RoomEvent, error) {
	return s.rooms.Watch(ctx, code)
}

// ExpireDue deletes every room whose deadline has passed, in any state, and
// returns how many were swept.
func (s *RoomService) ExpireDue(ctx context.Context) (int, error) {
	codes, err := s.rooms.DueRooms(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list due rooms: %w", err)
	}
	swept := 0
	for _, code := range codes {
		if _, err := s.rooms.Delete(ctx, code); err != nil {
			s.log.Error().Err(err).Str("room", code).Msg("Failed to expire room")
			continue
		}
		swept++
	}
	return swept, nil
}

// emit appends a lifecycle message. The lifecycle change already happened,
// so a relay failure is logged rather than returned.
func (s *RoomService) emit(ctx context.Context, code string, typ model.MessageType, playerID, playerName, payload string) {
	_, err := s.relay.Send(ctx, code, model.GameMessage{
		Type:       typ,
		PlayerID:   playerID,
		PlayerName: playerName,
		Payload:    payload,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("room", code).Str("type", string(typ)).Msg("Failed to relay room message")
	}
}

func generateRoomCode() (string, error) {
	alphabet := validator.RoomCodeAlphabet
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, validator.RoomCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
