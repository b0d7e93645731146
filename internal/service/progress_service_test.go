package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/progress"
	"github.com/stemsi/signquest-backend/internal/repository"
)

type fakeProfileStore struct {
	mu         sync.Mutex
	profiles   map[string]model.StudentProfile
	replaced   []model.StudentProfile
	replaceErr error
	hashes     map[string]string
	topCalls   int
}

func newFakeProfileStore(profiles ...model.StudentProfile) *fakeProfileStore {
	f := &fakeProfileStore{
		profiles: make(map[string]model.StudentProfile),
		hashes:   make(map[string]string),
	}
	for _, p := range profiles {
		f.profiles[p.Username] = p
	}
	return f
}

func (f *fakeProfileStore) GetByUsername(_ context.Context, username string) (model.StudentProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[username]
	if !ok {
		return model.StudentProfile{}, repository.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) Replace(_ context.Context, p model.StudentProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.profiles[p.Username] = p
	f.replaced = append(f.replaced, p)
	return nil
}

type fakeHistoryQueue struct {
	records []model.SessionRecord
}

func (f *fakeHistoryQueue) Enqueue(_ context.Context, rec model.SessionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestProgressService(store ProfileStore, queue HistoryQueue) *ProgressService {
	s := NewProgressService(store, queue, time.UTC, zerolog.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

func sampleProfile() model.StudentProfile {
	teacherID := 7
	streakDate := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	p := model.NewStudentProfile("uid-1", "mia", "Mia", time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	p.TotalXP = 80
	p.TotalScore = 900
	p.Level = 1
	p.PracticeSessions = 3
	p.AverageAccuracy = 0.8
	p.LettersLearned = 8
	p.StreakDays = 2
	p.LastStreakDate = &streakDate
	p.TeacherID = &teacherID
	p.Grade = "K2"
	p.Emoji = "🦊"
	p.Email = "parent@example.com"
	p.Achievements = []string{progress.BeginnerBadge, progress.FirstSteps}
	return p
}

func TestUpdateProgressEvaluationCrossesGoal(t *testing.T) {
	store := newFakeProfileStore(sampleProfile())
	queue := &fakeHistoryQueue{}
	svc := newTestProgressService(store, queue)

	update, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{
		Mode:             model.ModeEvaluation,
		Accuracy:         0.95,
		TimeSpentSeconds: 120,
		LettersCompleted: 5,
	})
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	if update.XPGained != 41 || update.ScoreGained != 410 {
		t.Fatalf("xp/score = %d/%d, want 41/410", update.XPGained, update.ScoreGained)
	}
	wantUnlocked := []string{progress.EvaluationExpert, progress.ExcellentAccuracy, progress.GoalGetter}
	if !reflect.DeepEqual(update.AchievementsUnlocked, wantUnlocked) {
		t.Fatalf("unlocked = %v, want %v", update.AchievementsUnlocked, wantUnlocked)
	}
	if !update.LevelUp || update.NewLevel == nil || *update.NewLevel != 2 {
		t.Fatalf("level change = %v/%v, want level up to 2", update.LevelUp, update.NewLevel)
	}

	got := store.profiles["mia"]
	if got.LettersLearned != 13 {
		t.Errorf("LettersLearned = %d, want 13", got.LettersLearned)
	}
	if got.PracticeSessions != 4 {
		t.Errorf("PracticeSessions = %d, want 4", got.PracticeSessions)
	}
	if math.Abs(got.AverageAccuracy-0.8375) > 1e-9 {
		t.Errorf("AverageAccuracy = %v, want 0.8375", got.AverageAccuracy)
	}
	if got.TotalXP != 121 || got.TotalScore != 1310 || got.Level != 2 {
		t.Errorf("totals = xp %d score %d level %d", got.TotalXP, got.TotalScore, got.Level)
	}
	if !got.HasAchievement(progress.FirstSteps) || !got.HasAchievement(progress.GoalGetter) {
		t.Errorf("achievements = %v", got.Achievements)
	}

	if len(queue.records) != 1 || queue.records[0].XPGained != 41 || queue.records[0].UID != "uid-1" {
		t.Fatalf("history records = %+v", queue.records)
	}
}

func TestUpdateProgressCarriesEveryField(t *testing.T) {
	prev := sampleProfile()
	store := newFakeProfileStore(prev)
	svc := newTestProgressService(store, nil)

	if _, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{
		Mode:             model.ModePractice,
		Accuracy:         0.6,
		TimeSpentSeconds: 400,
		LettersCompleted: 2,
	}); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	if len(store.replaced) != 1 {
		t.Fatalf("Replace called %d times, want 1", len(store.replaced))
	}
	got := store.replaced[0]

	if got.UID != prev.UID || got.DisplayName != prev.DisplayName || got.Grade != prev.Grade ||
		got.Emoji != prev.Emoji || got.Email != prev.Email || !got.CreatedAt.Equal(prev.CreatedAt) {
		t.Errorf("identity fields changed: %+v", got)
	}
	if got.TeacherID == nil || *got.TeacherID != 7 {
		t.Errorf("TeacherID = %v, want 7", got.TeacherID)
	}
	if got.StreakDays != prev.StreakDays || got.LastStreakDate == nil || !got.LastStreakDate.Equal(*prev.LastStreakDate) {
		t.Errorf("streak changed: %d %v", got.StreakDays, got.LastStreakDate)
	}
	if got.LettersLearned != prev.LettersLearned {
		t.Errorf("practice moved LettersLearned to %d", got.LettersLearned)
	}
	if !got.LastActive.Equal(testNow) {
		t.Errorf("LastActive = %v, want %v", got.LastActive, testNow)
	}
}

func TestUpdateProgressTutorialSkipsCumulative(t *testing.T) {
	prev := sampleProfile()
	prev.LettersLearned = 0
	prev.Achievements = []string{}
	prev.StreakDays = 5
	store := newFakeProfileStore(prev)
	svc := newTestProgressService(store, nil)

	update, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{
		Mode:             model.ModeTutorial,
		Accuracy:         1.0,
		TimeSpentSeconds: 20,
		LettersCompleted: 26,
	})
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	for _, id := range []string{progress.FirstSteps, progress.GoalGetter, progress.AlphabetMaster, progress.HotStreak} {
		for _, got := range update.AchievementsUnlocked {
			if got == id {
				t.Errorf("tutorial unlocked cumulative %s", id)
			}
		}
	}
	for _, id := range []string{progress.BeginnerBadge, progress.TutorialMaster, progress.PerfectSession, progress.SpeedDemon} {
		found := false
		for _, got := range update.AchievementsUnlocked {
			found = found || got == id
		}
		if !found {
			t.Errorf("missing session achievement %s in %v", id, update.AchievementsUnlocked)
		}
	}

	got := store.profiles["mia"]
	if got.LettersLearned != 0 {
		t.Errorf("tutorial moved LettersLearned to %d", got.LettersLearned)
	}
	if got.PracticeSessions != prev.PracticeSessions || got.AverageAccuracy != prev.AverageAccuracy {
		t.Errorf("tutorial touched practice stats: %d %v", got.PracticeSessions, got.AverageAccuracy)
	}
}

func TestUpdateProgressLettersCapped(t *testing.T) {
	prev := sampleProfile()
	prev.LettersLearned = 24
	store := newFakeProfileStore(prev)
	svc := newTestProgressService(store, nil)

	update, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{
		Mode:             model.ModeEvaluation,
		Accuracy:         0.5,
		TimeSpentSeconds: 500,
		LettersCompleted: 10,
	})
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got := store.profiles["mia"].LettersLearned; got != model.MaxLetters {
		t.Fatalf("LettersLearned = %d, want %d", got, model.MaxLetters)
	}
	found := false
	for _, id := range update.AchievementsUnlocked {
		found = found || id == progress.AlphabetMaster
	}
	if !found {
		t.Fatalf("alphabet_master not unlocked: %v", update.AchievementsUnlocked)
	}
}

func TestUpdateProgressMultiplayerLossEarnsNothing(t *testing.T) {
	prev := sampleProfile()
	prev.StreakDays = 4
	store := newFakeProfileStore(prev)
	svc := newTestProgressService(store, nil)

	zero := 0
	update, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{
		Mode:             model.ModeMultiplayer,
		Accuracy:         1.0,
		TimeSpentSeconds: 10,
		LettersCompleted: 12,
		ActualScore:      &zero,
	})
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if update.XPGained != 0 || update.ScoreGained != 0 || len(update.AchievementsUnlocked) != 0 || update.LevelUp {
		t.Fatalf("update = %+v, want zero", update)
	}

	got := store.profiles["mia"]
	if got.TotalXP != prev.TotalXP || got.TotalScore != prev.TotalScore {
		t.Errorf("totals moved: %d %d", got.TotalXP, got.TotalScore)
	}
	if got.HasAchievement(progress.HotStreak) {
		t.Errorf("forfeited match unlocked hot_streak")
	}
	if got.PracticeSessions != prev.PracticeSessions+1 {
		t.Errorf("PracticeSessions = %d, want %d", got.PracticeSessions, prev.PracticeSessions+1)
	}
}

func TestUpdateProgressStreakAchievementOnce(t *testing.T) {
	prev := sampleProfile()
	prev.StreakDays = 3
	store := newFakeProfileStore(prev)
	svc := newTestProgressService(store, nil)

	session := model.SessionResult{Mode: model.ModePractice, Accuracy: 0.3, TimeSpentSeconds: 600, LettersCompleted: 1}

	first, err := svc.UpdateProgress(context.Background(), "mia", session)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if !reflect.DeepEqual(first.AchievementsUnlocked, []string{progress.HotStreak}) {
		t.Fatalf("first unlocked = %v, want [hot_streak]", first.AchievementsUnlocked)
	}

	second, err := svc.UpdateProgress(context.Background(), "mia", session)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if len(second.AchievementsUnlocked) != 0 {
		t.Fatalf("second unlocked = %v, want none", second.AchievementsUnlocked)
	}

	count := 0
	for _, id := range store.profiles["mia"].Achievements {
		if id == progress.HotStreak {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("hot_streak stored %d times", count)
	}
}

func TestUpdateProgressFailures(t *testing.T) {
	t.Run("missing profile", func(t *testing.T) {
		svc := newTestProgressService(newFakeProfileStore(), nil)
		_, err := svc.UpdateProgress(context.Background(), "ghost", model.SessionResult{Mode: model.ModePractice})
		if !errors.Is(err, repository.ErrProfileNotFound) {
			t.Fatalf("error = %v, want ErrProfileNotFound", err)
		}
	})

	t.Run("write failure", func(t *testing.T) {
		store := newFakeProfileStore(sampleProfile())
		store.replaceErr = errors.New("connection reset")
		queue := &fakeHistoryQueue{}
		svc := newTestProgressService(store, queue)

		_, err := svc.UpdateProgress(context.Background(), "mia", model.SessionResult{Mode: model.ModePractice, Accuracy: 1})
		if !errors.Is(err, store.replaceErr) {
			t.Fatalf("error = %v, want wrapped write error", err)
		}
		if len(queue.records) != 0 {
			t.Fatalf("history enqueued after failed write")
		}
	})
}

func TestRecordLogin(t *testing.T) {
	tests := []struct {
		name       string
		streak     int
		last       *time.Time
		wantStreak int
	}{
		{name: "first login", streak: 0, last: nil, wantStreak: 1},
		{name: "same day", streak: 4, last: timePtr(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)), wantStreak: 4},
		{name: "next day", streak: 4, last: timePtr(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)), wantStreak: 5},
		{name: "gap", streak: 4, last: timePtr(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)), wantStreak: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := sampleProfile()
			prev.StreakDays = tt.streak
			prev.LastStreakDate = tt.last
			store := newFakeProfileStore(prev)
			svc := newTestProgressService(store, nil)

			got, err := svc.RecordLogin(context.Background(), "mia")
			if err != nil {
				t.Fatalf("RecordLogin() error = %v", err)
			}
			if got.StreakDays != tt.wantStreak {
				t.Fatalf("StreakDays = %d, want %d", got.StreakDays, tt.wantStreak)
			}
			if !got.LastActive.Equal(testNow) {
				t.Fatalf("LastActive = %v", got.LastActive)
			}
			if got.TotalXP != prev.TotalXP || got.Grade != prev.Grade || len(got.Achievements) != len(prev.Achievements) {
				t.Fatalf("login dropped fields: %+v", got)
			}
			if !reflect.DeepEqual(store.profiles["mia"], got) {
				t.Fatalf("stored profile differs from returned profile")
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
