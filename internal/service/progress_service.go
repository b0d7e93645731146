package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/observability"
	"github.com/stemsi/signquest-backend/internal/progress"
)

// ProfileStore is the document store contract for student profiles. Every
// write replaces the whole profile; there is no partial update.
type ProfileStore interface {
	GetByUsername(ctx context.Context, username string) (model.StudentProfile, error)
	Replace(ctx context.Context, p model.StudentProfile) error
}

// HistoryQueue accepts completed sessions for asynchronous persistence.
type HistoryQueue interface {
	Enqueue(ctx context.Context, rec model.SessionRecord) error
}

// ProgressService applies session results and logins to student profiles.
type ProgressService struct {
	profiles ProfileStore
	history  HistoryQueue
	loc      *time.Location
	now      func() time.Time
	tracer   trace.Tracer
	log      zerolog.Logger
}

// NewProgressService creates a new ProgressService. loc decides where a
// calendar day starts for login streaks.
func NewProgressService(profiles ProfileStore, history HistoryQueue, loc *time.Location, log zerolog.Logger) *ProgressService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressService{
		profiles: profiles,
		history:  history,
		loc:      loc,
		now:      time.Now,
		tracer:   observability.Tracer(),
		log:      log.With().Str("component", "progress_service").Logger(),
	}
}

// UpdateProgress scores a finished session and writes the resulting profile
// back as one whole value. The returned update lists only the achievements
// this session newly unlocked.
func (s *ProgressService) UpdateProgress(ctx context.Context, username string, session model.SessionResult) (model.ProgressUpdate, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.UpdateProgress", trace.WithAttributes(
		attribute.String("student.username", username),
		attribute.String("session.mode", string(session.Mode)),
	))
	defer span.End()

	prev, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load profile")
		return model.ProgressUpdate{}, fmt.Errorf("load profile %s: %w", username, err)
	}

	update := progress.CalculateProgress(session)
	forfeited := session.Mode == model.ModeMultiplayer && (session.ActualScore == nil || *session.ActualScore <= 0)

	// Start from the stored value so every field is carried forward.
	next := prev

	if session.Mode == model.ModeEvaluation {
		next.LettersLearned = prev.LettersLearned + session.LettersCompleted
		if next.LettersLearned > model.MaxLetters {
			next.LettersLearned = model.MaxLetters
		}
		if next.LettersLearned < prev.LettersLearned {
			next.LettersLearned = prev.LettersLearned
		}
	}
	lettersGained := next.LettersLearned - prev.LettersLearned

	earned := make([]string, 0, len(update.AchievementsUnlocked)+4)
	earned = append(earned, update.AchievementsUnlocked...)
	if session.Mode != model.ModeTutorial && !forfeited {
		earned = append(earned, progress.CumulativeAchievements(prev, lettersGained)...)
	}

	if session.Mode != model.ModeTutorial {
		next.PracticeSessions = prev.PracticeSessions + 1
		next.AverageAccuracy = (prev.AverageAccuracy*float64(prev.PracticeSessions) + session.Accuracy) /
			float64(next.PracticeSessions)
	}

	next.TotalXP = prev.TotalXP + update.XPGained
	next.TotalScore = prev.TotalScore + update.ScoreGained
	next.Level = progress.LevelForXP(next.TotalXP)
	next.LastActive = s.now()
	next = next.WithAchievements(earned...)

	update.AchievementsUnlocked = newlyUnlocked(prev, next)
	update.LevelUp = false
	update.NewLevel = nil
	if next.Level > prev.Level {
		level := next.Level
		update.LevelUp = true
		update.NewLevel = &level
	}

	if err := s.profiles.Replace(ctx, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace profile")
		return model.ProgressUpdate{}, fmt.Errorf("save profile %s: %w", username, err)
	}

	span.SetAttributes(
		attribute.Int("progress.xp_gained", update.XPGained),
		attribute.Int("progress.score_gained", update.ScoreGained),
		attribute.Int("progress.unlocked", len(update.AchievementsUnlocked)),
	)

	if s.history != nil {
		rec := model.SessionRecord{
			UID:              next.UID,
			Mode:             session.Mode,
			Accuracy:         session.Accuracy,
			TimeSpentSeconds: session.TimeSpentSeconds,
			LettersCompleted: session.LettersCompleted,
			XPGained:         update.XPGained,
			ScoreGained:      update.ScoreGained,
			CreatedAt:        next.LastActive,
		}
		if err := s.history.Enqueue(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("Failed to enqueue session history")
		}
	}

	return update, nil
}

// RecordLogin advances the login streak. Call it once per login, not per
// screen view; repeated calls on the same calendar day change nothing but
// LastActive.
func (s *ProgressService) RecordLogin(ctx context.Context, username string) (model.StudentProfile, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.RecordLogin", trace.WithAttributes(
		attribute.String("student.username", username),
	))
	defer span.End()

	prev, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return model.StudentProfile{}, fmt.Errorf("load profile %s: %w", username, err)
	}

	now := s.now()
	streak, date := progress.NextStreak(prev.StreakDays, prev.LastStreakDate, now, s.loc)

	next := prev
	next.StreakDays = streak
	next.LastStreakDate = &date
	next.LastActive = now

	if err := s.profiles.Replace(ctx, next); err != nil {
		span.RecordError(err)
		return model.StudentProfile{}, fmt.Errorf("save profile %s: %w", username, err)
	}
	return next, nil
}

func newlyUnlocked(prev, next model.StudentProfile) []string {
	added := []string{}
	for _, id := range next.Achievements {
		if !prev.HasAchievement(id) {
			added = append(added, id)
		}
	}
	return added
}
