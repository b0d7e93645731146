package model

import "time"

// SessionMode tags the kind of activity a session result came from.
type SessionMode string

const (
	ModeTutorial    SessionMode = "tutorial"
	ModePractice    SessionMode = "practice"
	ModeEvaluation  SessionMode = "evaluation"
	ModeMultiplayer SessionMode = "multiplayer"
)

// SessionResult is the outcome of one completed activity. It is consumed once.
type SessionResult struct {
	Mode             SessionMode `json:"mode" binding:"required,session_mode"`
	Accuracy         float64     `json:"accuracy" binding:"gte=0,lte=1"`
	TimeSpentSeconds int         `json:"time_spent_seconds" binding:"gte=0"`
	LettersCompleted int         `json:"letters_completed" binding:"gte=0,lte=1000"`
	PerfectSigns     int         `json:"perfect_signs" binding:"gte=0,lte=1000"`
	Mistakes         int         `json:"mistakes" binding:"gte=0,lte=1000"`
	// ActualScore is set when the score was measured outside the rules engine
	// (multiplayer matches). Zero or negative marks a forfeit.
	ActualScore *int `json:"actual_score" binding:"omitempty,gte=-100000,lte=100000"`
}

// ProgressUpdate is what a session earned, returned to the client for celebration.
type ProgressUpdate struct {
	XPGained             int      `json:"xp_gained"`
	ScoreGained          int      `json:"score_gained"`
	AchievementsUnlocked []string `json:"achievements_unlocked"`
	LevelUp              bool     `json:"level_up"`
	NewLevel             *int     `json:"new_level"`
}

// SessionRecord is a persisted history row for a completed session.
type SessionRecord struct {
	ID               int64       `json:"id"`
	UID              string      `json:"uid"`
	Mode             SessionMode `json:"mode"`
	Accuracy         float64     `json:"accuracy"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	LettersCompleted int         `json:"letters_completed"`
	XPGained         int         `json:"xp_gained"`
	ScoreGained      int         `json:"score_gained"`
	CreatedAt        time.Time   `json:"created_at"`
}
