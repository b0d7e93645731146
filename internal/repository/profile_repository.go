package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/signquest-backend/internal/model"
)

var (
	ErrProfileNotFound   = errors.New("student profile not found")
	ErrDuplicateUsername = errors.New("student with this username already exists")
)

const profileColumns = `uid, username, display_name, total_score, total_xp, level, practice_sessions,
	average_accuracy, letters_learned, streak_days, last_streak_date, last_active, achievements,
	teacher_id, grade, emoji, email, created_at`

// ProfileRepository is the document store for student profiles.
// Writes always carry the whole profile; there is deliberately no
// single-column update.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Create inserts a new profile with its password hash.
func (r *ProfileRepository) Create(ctx context.Context, p model.StudentProfile, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO students (`+profileColumns+`, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		append(profileArgs(p), passwordHash)...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// GetByUsername looks up exactly one profile.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (model.StudentProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM students WHERE username = $1`, username)
	return scanProfile(row)
}

// GetCredentials returns the profile and password hash for a login attempt.
func (r *ProfileRepository) GetCredentials(ctx context.Context, username string) (model.StudentProfile, string, error) {
	var hash string
	row := r.pool.QueryRow(ctx, `SELECT password_hash, `+profileColumns+` FROM students WHERE username = $1`, username)
	p, err := scanProfileWith(row, &hash)
	return p, hash, err
}

// Replace overwrites the stored profile with p, keyed by p.UID.
func (r *ProfileRepository) Replace(ctx context.Context, p model.StudentProfile) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET
			username = $2, display_name = $3, total_score = $4, total_xp = $5, level = $6,
			practice_sessions = $7, average_accuracy = $8, letters_learned = $9, streak_days = $10,
			last_streak_date = $11, last_active = $12, achievements = $13, teacher_id = $14,
			grade = $15, emoji = $16, email = $17, created_at = $18
		 WHERE uid = $1`,
		profileArgs(p)...,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ListByTeacher returns a teacher's students ordered by display name.
func (r *ProfileRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.StudentProfile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM students WHERE teacher_id = $1 ORDER BY display_name, username`,
		teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.StudentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// TopByScore returns the highest scoring profiles, ties broken by XP.
func (r *ProfileRepository) TopByScore(ctx context.Context, limit int) ([]model.StudentProfile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM students
		 ORDER BY total_score DESC, total_xp DESC, username
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.StudentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteForTeacher removes a student only when it is enrolled with teacherID.
func (r *ProfileRepository) DeleteForTeacher(ctx context.Context, username string, teacherID int) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM students WHERE username = $1 AND teacher_id = $2`,
		username, teacherID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func profileArgs(p model.StudentProfile) []interface{} {
	achievements := p.Achievements
	if achievements == nil {
		achievements = []string{}
	}
	return []interface{}{
		p.UID, p.Username, p.DisplayName, p.TotalScore, p.TotalXP, p.Level, p.PracticeSessions,
		p.AverageAccuracy, p.LettersLearned, p.StreakDays, p.LastStreakDate, p.LastActive, achievements,
		p.TeacherID, p.Grade, p.Emoji, p.Email, p.CreatedAt,
	}
}

func scanProfile(row pgx.Row) (model.StudentProfile, error) {
	return scanProfileWith(row)
}

// scanProfileWith scans extra leading columns into lead before the profile columns.
func scanProfileWith(row pgx.Row, lead ...interface{}) (model.StudentProfile, error) {
	var p model.StudentProfile
	dest := append(lead,
		&p.UID, &p.Username, &p.DisplayName, &p.TotalScore, &p.TotalXP, &p.Level, &p.PracticeSessions,
		&p.AverageAccuracy, &p.LettersLearned, &p.StreakDays, &p.LastStreakDate, &p.LastActive, &p.Achievements,
		&p.TeacherID, &p.Grade, &p.Emoji, &p.Email, &p.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StudentProfile{}, ErrProfileNotFound
		}
		return model.StudentProfile{}, err
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	return p, nil
}
