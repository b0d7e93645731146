package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/model"
)

const (
	HistoryBatchSize    = 50
	HistoryBatchTimeout = 2 * time.Second
	HistoryPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SessionHistoryQueue pushes completed sessions onto the Redis work queue.
type SessionHistoryQueue struct {
	rdb *redis.Client
}

// NewSessionHistoryQueue creates a new SessionHistoryQueue.
func NewSessionHistoryQueue(rdb *redis.Client) *SessionHistoryQueue {
	return &SessionHistoryQueue{rdb: rdb}
}

// Enqueue appends rec to the queue.
func (q *SessionHistoryQueue) Enqueue(ctx context.Context, rec model.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistSessionHistoryQueue, raw).Err()
}

// Len reports the number of records waiting.
func (q *SessionHistoryQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.WorkerKey.PersistSessionHistoryQueue).Result()
}

// HistoryWriter persists session records.
type HistoryWriter interface {
	CopyBatch(ctx context.Context, records []model.SessionRecord) (int64, error)
	Insert(ctx context.Context, rec model.SessionRecord) error
}

// SessionHistoryWorker drains the session history queue into PostgreSQL in
// batches.
type SessionHistoryWorker struct {
	writer HistoryWriter
	rdb    *redis.Client
	log    zerolog.Logger
}

func NewSessionHistoryWorker(writer HistoryWriter, rdb *redis.Client, log zerolog.Logger) *SessionHistoryWorker {
	return &SessionHistoryWorker{
		writer: writer,
		rdb:    rdb,
		log:    log.With().Str("component", "session_history_worker").Logger(),
	}
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *SessionHistoryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SessionHistoryWorker started")

	batch := make([]model.SessionRecord, 0, HistoryBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= HistoryBatchSize || time.Since(lastFlush) >= HistoryBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, HistoryPollTimeout, config.WorkerKey.PersistSessionHistoryQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var rec model.SessionRecord
			if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, rec)
		}
	}
}

// flushSafe writes a batch with COPY and falls back to row inserts. Rows the
// database rejects for their content are dropped; the rest are requeued.
func (w *SessionHistoryWorker) flushSafe(ctx context.Context, batch []model.SessionRecord) {
	if len(batch) == 0 {
		return
	}

	n, err := w.writer.CopyBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int64("rows", n).Msg("Session history batch written")
		return
	}

	w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk history insert failed, using fallback")
	for _, rec := range batch {
		err := w.writer.Insert(ctx, rec)
		if err == nil {
			continue
		}
		if isPermanent(err) {
			w.log.Error().Err(err).Str("uid", rec.UID).Msg("history record rejected, dropping")
			continue
		}

		w.log.Error().Err(err).Str("uid", rec.UID).Msg("history insert failed, requeueing")
		raw, err := json.Marshal(rec)
		if err != nil {
			w.log.Error().Err(err).Str("uid", rec.UID).Msg("encode history record failed")
			continue
		}
		if err := w.rdb.RPush(ctx, config.WorkerKey.PersistSessionHistoryQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Str("uid", rec.UID).Msg("requeue history record failed, record lost")
		}
	}
}

// isPermanent reports errors that retrying the same row can never fix:
// data exceptions (class 22) and integrity violations such as a foreign key
// to a removed student (class 23).
func isPermanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "22", "23":
		return true
	}
	return false
}
