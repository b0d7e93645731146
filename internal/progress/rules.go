// Package progress holds the pure scoring rules: XP and score for a session,
// session and cumulative achievements, levels and login streaks.
// Nothing here touches a store.
package progress

import (
	"math"

	"github.com/stemsi/signquest-backend/internal/model"
)

// Base XP per mode. Unknown modes earn the tutorial rate.
const (
	baseXPTutorial    = 10
	baseXPPractice    = 15
	baseXPEvaluation  = 25
	baseXPMultiplayer = 20
	baseXPDefault     = 10
)

const (
	perfectSignBonus = 5
	mistakePenalty   = 2
	scorePerXP       = 10
	xpPerLevel       = 100
)

// CalculateProgress scores one session. It never fails: out-of-range input
// lands in the lowest bracket.
func CalculateProgress(s model.SessionResult) model.ProgressUpdate {
	if s.Mode == model.ModeMultiplayer && actualScore(s) <= 0 {
		return model.ProgressUpdate{AchievementsUnlocked: []string{}}
	}

	xp := int(math.Floor(float64(baseXP(s.Mode)) * accuracyMultiplier(s.Accuracy) * timeMultiplier(s.TimeSpentSeconds)))

	score := actualScore(s)
	if score <= 0 {
		score = xp*scorePerXP + s.PerfectSigns*perfectSignBonus - s.Mistakes*mistakePenalty
		if score < 0 {
			score = 0
		}
	}

	return model.ProgressUpdate{
		XPGained:             xp,
		ScoreGained:          score,
		AchievementsUnlocked: SessionAchievements(s),
	}
}

// LevelForXP maps cumulative XP to a level, starting at 1.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return totalXP/xpPerLevel + 1
}

func actualScore(s model.SessionResult) int {
	if s.ActualScore == nil {
		return 0
	}
	return *s.ActualScore
}

func baseXP(mode model.SessionMode) int {
	switch mode {
	case model.ModeTutorial:
		return baseXPTutorial
	case model.ModePractice:
		return baseXPPractice
	case model.ModeEvaluation:
		return baseXPEvaluation
	case model.ModeMultiplayer:
		return baseXPMultiplayer
	default:
		return baseXPDefault
	}
}

func accuracyMultiplier(accuracy float64) float64 {
	switch {
	case accuracy >= 0.9:
		return 1.5
	case accuracy >= 0.7:
		return 1.2
	case accuracy >= 0.5:
		return 1.0
	default:
		return 0.7
	}
}

func timeMultiplier(seconds int) float64 {
	switch {
	case seconds < 0:
		return 1.0
	case seconds < 60:
		return 1.3
	case seconds < 300:
		return 1.1
	default:
		return 1.0
	}
}
