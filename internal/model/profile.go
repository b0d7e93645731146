package model

import (
	"sort"
	"time"
)

// MaxLetters is the size of the ASL fingerspelling alphabet.
const MaxLetters = 26

// StudentProfile is a student's persisted cumulative learning record.
// It is always written as a whole value; stores expose no partial update.
type StudentProfile struct {
	UID              string     `json:"uid"`
	Username         string     `json:"username"`
	DisplayName      string     `json:"display_name"`
	TotalScore       int        `json:"total_score"`
	TotalXP          int        `json:"total_xp"`
	Level            int        `json:"level"`
	PracticeSessions int        `json:"practice_sessions"`
	AverageAccuracy  float64    `json:"average_accuracy"`
	LettersLearned   int        `json:"letters_learned"`
	StreakDays       int        `json:"streak_days"`
	LastStreakDate   *time.Time `json:"last_streak_date"`
	LastActive       time.Time  `json:"last_active"`
	Achievements     []string   `json:"achievements"`
	TeacherID        *int       `json:"teacher_id,omitempty"`
	Grade            string     `json:"grade,omitempty"`
	Emoji            string     `json:"emoji,omitempty"`
	Email            string     `json:"email,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewStudentProfile returns a freshly registered profile with zero-valued stats.
func NewStudentProfile(uid, username, displayName string, now time.Time) StudentProfile {
	return StudentProfile{
		UID:          uid,
		Username:     username,
		DisplayName:  displayName,
		Level:        1,
		LastActive:   now,
		Achievements: []string{},
		CreatedAt:    now,
	}
}

// HasAchievement reports whether id is already unlocked.
func (p StudentProfile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// WithAchievements returns a copy of p whose achievement set is the union of
// the existing ids and ids. The returned slice is sorted and deduplicated.
func (p StudentProfile) WithAchievements(ids ...string) StudentProfile {
	set := make(map[string]struct{}, len(p.Achievements)+len(ids))
	for _, a := range p.Achievements {
		set[a] = struct{}{}
	}
	for _, a := range ids {
		if a != "" {
			set[a] = struct{}{}
		}
	}
	merged := make([]string, 0, len(set))
	for a := range set {
		merged = append(merged, a)
	}
	sort.Strings(merged)
	p.Achievements = merged
	return p
}

// RegisterStudentRequest is the payload for creating a student account.
type RegisterStudentRequest struct {
	Username    string `json:"username" binding:"required,alphanum,min=3,max=32"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=64"`
	Password    string `json:"password" binding:"required,min=4,max=128"`
	TeacherID   *int   `json:"teacher_id" binding:"omitempty,min=1"`
	Grade       string `json:"grade" binding:"omitempty,max=16"`
	Emoji       string `json:"emoji" binding:"omitempty,max=16"`
	Email       string `json:"email" binding:"omitempty,email"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after a successful student login.
type StudentLoginResponse struct {
	Token   string         `json:"token"`
	Profile StudentProfile `json:"profile"`
}

// LeaderboardEntry is one row of the score leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Emoji       string `json:"emoji,omitempty"`
	TotalScore  int    `json:"total_score"`
	TotalXP     int    `json:"total_xp"`
	Level       int    `json:"level"`
}
