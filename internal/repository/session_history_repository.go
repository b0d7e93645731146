package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/signquest-backend/internal/model"
)

// SessionHistoryRepository stores completed session rows.
type SessionHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewSessionHistoryRepository creates a new SessionHistoryRepository.
func NewSessionHistoryRepository(pool *pgxpool.Pool) *SessionHistoryRepository {
	return &SessionHistoryRepository{pool: pool}
}

var sessionHistoryColumns = []string{
	"uid", "mode", "accuracy", "time_spent_seconds", "letters_completed", "xp_gained", "score_gained", "created_at",
}

// CopyBatch bulk-inserts records with the COPY protocol.
func (r *SessionHistoryRepository) CopyBatch(ctx context.Context, records []model.SessionRecord) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"session_history"},
		sessionHistoryColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			rec := records[i]
			return []interface{}{
				rec.UID, string(rec.Mode), rec.Accuracy, rec.TimeSpentSeconds,
				rec.LettersCompleted, rec.XPGained, rec.ScoreGained, rec.CreatedAt,
			}, nil
		}),
	)
}

// Insert writes a single record.
func (r *SessionHistoryRepository) Insert(ctx context.Context, rec model.SessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_history
			(uid, mode, accuracy, time_spent_seconds, letters_completed, xp_gained, score_gained, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.UID, string(rec.Mode), rec.Accuracy, rec.TimeSpentSeconds,
		rec.LettersCompleted, rec.XPGained, rec.ScoreGained, rec.CreatedAt,
	)
	return err
}

// ListRecent returns a student's newest sessions first.
func (r *SessionHistoryRepository) ListRecent(ctx context.Context, uid string, limit int) ([]model.SessionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, uid, mode, accuracy, time_spent_seconds, letters_completed, xp_gained, score_gained, created_at
		 FROM session_history
		 WHERE uid = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		uid, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.SessionRecord, 0, limit)
	for rows.Next() {
		var rec model.SessionRecord
		var mode string
		if err := rows.Scan(&rec.ID, &rec.UID, &mode, &rec.Accuracy, &rec.TimeSpentSeconds,
			&rec.LettersCompleted, &rec.XPGained, &rec.ScoreGained, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Mode = model.SessionMode(mode)
		records = append(records, rec)
	}
	return records, rows.Err()
}
