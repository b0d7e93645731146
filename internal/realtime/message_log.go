package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/model"
)

const (
	// StartID reads a stream from its first entry.
	StartID = "0"

	listenBlock   = 2 * time.Second
	listenBatch   = 100
	listenBackoff = 500 * time.Millisecond
)

// MessageLog is the append-only per-room event log, one Redis stream per
// room. Entry ids are assigned by Redis and strictly increase.
type MessageLog struct {
	rdb  *redis.Client
	keep int64
	ttl  time.Duration
	log  zerolog.Logger
}

// NewMessageLog creates a MessageLog. keep bounds Trim; ttl is refreshed on
// every append so abandoned logs disappear on their own.
func NewMessageLog(rdb *redis.Client, keep int64, ttl time.Duration, log zerolog.Logger) *MessageLog {
	return &MessageLog{
		rdb:  rdb,
		keep: keep,
		ttl:  ttl,
		log:  log.With().Str("component", "message_log").Logger(),
	}
}

// Append writes one entry and returns its id.
func (l *MessageLog) Append(ctx context.Context, code string, msg model.GameMessage) (string, error) {
	key := config.CacheKey.RoomMessagesKey(code)

	pipe := l.rdb.TxPipeline()
	add := pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		ID:     "*",
		Values: encodeMessage(msg),
	})
	pipe.Expire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("append message to %s: %w", code, err)
	}
	return add.Val(), nil
}

// History returns every entry currently in the log, oldest first.
func (l *MessageLog) History(ctx context.Context, code string) ([]model.GameMessage, error) {
	entries, err := l.rdb.XRange(ctx, config.CacheKey.RoomMessagesKey(code), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read messages of %s: %w", code, err)
	}
	msgs := make([]model.GameMessage, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, decodeMessage(e))
	}
	return msgs, nil
}

// ListenFrom streams every entry after afterID, then every entry appended
// later, in id order. Pass StartID to include the whole log. The channel is
// closed once ctx is done; cancelling never touches the stored log.
func (l *MessageLog) ListenFrom(ctx context.Context, code, afterID string) <-chan model.GameMessage {
	key := config.CacheKey.RoomMessagesKey(code)
	out := make(chan model.GameMessage, listenBatch)
	if afterID == "" {
		afterID = StartID
	}

	go func() {
		defer close(out)
		last := afterID

		for ctx.Err() == nil {
			streams, err := l.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, last},
				Count:   listenBatch,
				Block:   listenBlock,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				l.log.Warn().Err(err).Str("room", code).Msg("XRead failed")
				select {
				case <-time.After(listenBackoff):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, st := range streams {
				for _, e := range st.Messages {
					last = e.ID
					select {
					case out <- decodeMessage(e):
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}

// Trim keeps only the newest entries of a room's log and returns how many
// were removed.
func (l *MessageLog) Trim(ctx context.Context, code string) (int64, error) {
	n, err := l.rdb.XTrimMaxLen(ctx, config.CacheKey.RoomMessagesKey(code), l.keep).Result()
	if err != nil {
		return 0, fmt.Errorf("trim messages of %s: %w", code, err)
	}
	return n, nil
}

// Keep is the number of entries Trim retains.
func (l *MessageLog) Keep() int64 {
	return l.keep
}
