package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/progress"
	"github.com/stemsi/signquest-backend/internal/repository"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 50
	DefaultHistorySize     = 20
	MaxHistorySize         = 100
)

// StudentDirectory is everything the API needs from the profile store.
type StudentDirectory interface {
	ProfileStore
	Create(ctx context.Context, p model.StudentProfile, passwordHash string) error
	GetCredentials(ctx context.Context, username string) (model.StudentProfile, string, error)
	ListByTeacher(ctx context.Context, teacherID int) ([]model.StudentProfile, error)
	TopByScore(ctx context.Context, limit int) ([]model.StudentProfile, error)
	DeleteForTeacher(ctx context.Context, username string, teacherID int) error
}

// HistoryReader lists persisted session history.
type HistoryReader interface {
	ListRecent(ctx context.Context, uid string, limit int) ([]model.SessionRecord, error)
}

// ProfileService handles student accounts, profile reads and the leaderboard.
type ProfileService struct {
	students StudentDirectory
	history  HistoryReader
	auth     *AuthService
	rdb      *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewProfileService creates a new ProfileService. rdb may be nil, which
// disables leaderboard caching.
func NewProfileService(
	students StudentDirectory,
	history HistoryReader,
	auth *AuthService,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *ProfileService {
	return &ProfileService{
		students: students,
		history:  history,
		auth:     auth,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		now:      time.Now,
		log:      log.With().Str("component", "profile_service").Logger(),
	}
}

// Register creates a student with zero progress.
func (s *ProfileService) Register(ctx context.Context, req model.RegisterStudentRequest) (model.StudentProfile, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return model.StudentProfile{}, fmt.Errorf("hash password: %w", err)
	}

	p := model.NewStudentProfile(uuid.New().String(), req.Username, req.DisplayName, s.now().UTC())
	p.TeacherID = req.TeacherID
	p.Grade = req.Grade
	p.Emoji = req.Emoji
	p.Email = req.Email

	if err := s.students.Create(ctx, p, hash); err != nil {
		return model.StudentProfile{}, err
	}
	s.log.Info().Str("username", p.Username).Msg("Student registered")
	return p, nil
}

// Authenticate checks a student's password. Unknown usernames and wrong
// passwords both come back as ErrInvalidCredentials.
func (s *ProfileService) Authenticate(ctx context.Context, username, password string) (model.StudentProfile, error) {
	p, hash, err := s.students.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return model.StudentProfile{}, ErrInvalidCredentials
		}
		return model.StudentProfile{}, err
	}
	if err := s.auth.CheckPassword(hash, password); err != nil {
		return model.StudentProfile{}, err
	}
	return p, nil
}

// Get returns a student's profile.
func (s *ProfileService) Get(ctx context.Context, username string) (model.StudentProfile, error) {
	return s.students.GetByUsername(ctx, username)
}

// Achievements returns the full catalogue flagged for username.
func (s *ProfileService) Achievements(ctx context.Context, username string) ([]progress.Achievement, error) {
	p, err := s.students.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return progress.Catalog(p.Achievements), nil
}

// History returns a student's most recent sessions.
func (s *ProfileService) History(ctx context.Context, uid string, limit int) ([]model.SessionRecord, error) {
	limit = clamp(limit, DefaultHistorySize, MaxHistorySize)
	return s.history.ListRecent(ctx, uid, limit)
}

// Leaderboard returns the top students by score. Results are cached in Redis
// for the configured TTL; cache failures fall through to the store.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	limit = clamp(limit, DefaultLeaderboardSize, MaxLeaderboardSize)
	key := config.CacheKey.LeaderboardKey(limit)

	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var entries []model.LeaderboardEntry
			if err := json.Unmarshal(data, &entries); err == nil {
				return entries, nil
			}
			s.log.Warn().Str("key", key).Msg("Corrupt leaderboard cache, rebuilding")
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Msg("Leaderboard cache read failed")
		}
	}

	profiles, err := s.students.TopByScore(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, model.LeaderboardEntry{
			Rank:        i + 1,
			Username:    p.Username,
			DisplayName: p.DisplayName,
			Emoji:       p.Emoji,
			TotalScore:  p.TotalScore,
			TotalXP:     p.TotalXP,
			Level:       p.Level,
		})
	}

	if s.rdb != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(entries); err == nil {
			if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.log.Warn().Err(err).Msg("Leaderboard cache write failed")
			}
		}
	}
	return entries, nil
}

func clamp(n, def, max int) int {
	if n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
