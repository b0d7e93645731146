package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/model"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room code already in use")
	ErrContention   = errors.New("room changed concurrently, retries exhausted")
)

const maxTxRetries = 8

// RoomStore keeps multiplayer room records in Redis hashes and fans out
// room events over Pub/Sub.
type RoomStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRoomStore creates a new RoomStore.
func NewRoomStore(rdb *redis.Client, log zerolog.Logger) *RoomStore {
	return &RoomStore{
		rdb: rdb,
		log: log.With().Str("component", "room_store").Logger(),
	}
}

// CreateIfAbsent writes room only when no record exists at its code.
// The record expires at room.ExpiresAt and is registered for the janitor.
func (s *RoomStore) CreateIfAbsent(ctx context.Context, room model.MultiplayerRoom) error {
	key := config.CacheKey.RoomKey(room.Code)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrRoomExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeRoom(room))
			pipe.ExpireAt(ctx, key, room.ExpiresAt)
			pipe.ZAdd(ctx, config.CacheKey.RoomExpiryKey(), redis.Z{
				Score:  float64(room.ExpiresAt.UnixMilli()),
				Member: room.Code,
			})
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrRoomExists) {
			return ErrRoomExists
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Someone wrote the key between WATCH and EXEC.
			return ErrRoomExists
		}
		return fmt.Errorf("create room %s: %w", room.Code, err)
	}

	s.publish(ctx, model.RoomEvent{Kind: model.RoomChanged, Code: room.Code, Room: &room})
	return nil
}

// Get reads the current room record.
func (s *RoomStore) Get(ctx context.Context, code string) (model.MultiplayerRoom, error) {
	h, err := s.rdb.HGetAll(ctx, config.CacheKey.RoomKey(code)).Result()
	if err != nil {
		return model.MultiplayerRoom{}, fmt.Errorf("get room %s: %w", code, err)
	}
	if len(h) == 0 {
		return model.MultiplayerRoom{}, ErrRoomNotFound
	}
	return decodeRoom(h)
}

// Update runs fn against the current record inside an optimistic transaction
// and writes the result back. If fn returns an error nothing is written and
// the error is returned unchanged.
func (s *RoomStore) Update(ctx context.Context, code string, fn func(*model.MultiplayerRoom) error) (model.MultiplayerRoom, error) {
	key := config.CacheKey.RoomKey(code)
	var updated model.MultiplayerRoom

	txf := func(tx *redis.Tx) error {
		h, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return ErrRoomNotFound
		}
		room, err := decodeRoom(h)
		if err != nil {
			return err
		}
		if err := fn(&room); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeRoom(room))
			return nil
		})
		if err == nil {
			updated = room
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			s.publish(ctx, model.RoomEvent{Kind: model.RoomChanged, Code: code, Room: &updated})
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.MultiplayerRoom{}, err
	}
	return model.MultiplayerRoom{}, ErrContention
}

// Delete removes the room, its message log and its expiry entry.
// It reports whether a room record was present.
func (s *RoomStore) Delete(ctx context.Context, code string) (bool, error) {
	pipe := s.rdb.TxPipeline()
	delRoom := pipe.Del(ctx, config.CacheKey.RoomKey(code))
	pipe.Del(ctx, config.CacheKey.RoomMessagesKey(code))
	pipe.ZRem(ctx, config.CacheKey.RoomExpiryKey(), code)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete room %s: %w", code, err)
	}

	// The hash shares the sweep deadline as its TTL, so a swept room is
	// usually gone already. Watchers are told either way.
	s.publish(ctx, model.RoomEvent{Kind: model.RoomRemoved, Code: code})
	return delRoom.Val() > 0, nil
}

// DueRooms returns codes whose deadline is at or before now.
func (s *RoomStore) DueRooms(ctx context.Context, now time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, config.CacheKey.RoomExpiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
}

// Count returns the number of rooms not yet swept.
func (s *RoomStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, config.CacheKey.RoomExpiryKey()).Result()
}

// Watch subscribes to events of one room. The channel closes when ctx ends
// or the subscription drops.
func (s *RoomStore) Watch(ctx context.Context, code string) (<-chan model.RoomEvent, error) {
	sub := s.rdb.Subscribe(ctx, config.CacheKey.RoomEventsChannel(code))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", code, err)
	}

	out := make(chan model.RoomEvent, 8)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev model.RoomEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					s.log.Warn().Err(err).Str("room", code).Msg("bad room event payload")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *RoomStore) publish(ctx context.Context, ev model.RoomEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Str("room", ev.Code).Msg("encode room event")
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.RoomEventsChannel(ev.Code), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("room", ev.Code).Msg("publish room event")
	}
}
