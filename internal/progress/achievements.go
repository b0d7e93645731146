package progress

import "github.com/stemsi/signquest-backend/internal/model"

// Achievement ids. These strings are persisted in profiles; never rename one.
const (
	PerfectSession    = "perfect_session"
	ExcellentAccuracy = "excellent_accuracy"
	GoodAccuracy      = "good_accuracy"
	SpeedDemon        = "speed_demon"
	QuickLearner      = "quick_learner"

	BeginnerBadge    = "beginner_badge"
	TutorialExplorer = "tutorial_explorer"
	TutorialMaster   = "tutorial_master"

	PracticeRookie        = "practice_rookie"
	PracticeEnthusiast    = "practice_enthusiast"
	PracticePerfectionist = "practice_perfectionist"

	EvaluationExpert   = "evaluation_expert"
	EvaluationAchiever = "evaluation_achiever"
	EvaluationMaster   = "evaluation_master"

	MultiplayerDebut    = "multiplayer_debut"
	MultiplayerAce      = "multiplayer_ace"
	MultiplayerMarathon = "multiplayer_marathon"

	FirstSteps       = "first_steps"
	GoalGetter       = "goal_getter"
	AlphabetMaster   = "alphabet_master"
	HotStreak        = "hot_streak"
	PracticeChampion = "practice_champion"
)

// Achievement describes an unlockable badge for the client catalogue.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

var catalog = []Achievement{
	{ID: PerfectSession, Title: "Perfect!", Description: "Finish a session with every sign right"},
	{ID: ExcellentAccuracy, Title: "Super Signer", Description: "Get 9 out of 10 signs right"},
	{ID: GoodAccuracy, Title: "Good Job", Description: "Get 8 out of 10 signs right"},
	{ID: SpeedDemon, Title: "Speed Demon", Description: "Finish a session in under 30 seconds"},
	{ID: QuickLearner, Title: "Quick Learner", Description: "Finish a session in under a minute"},
	{ID: BeginnerBadge, Title: "Beginner", Description: "Complete the tutorial"},
	{ID: TutorialExplorer, Title: "Explorer", Description: "Try 10 letters in one tutorial"},
	{ID: TutorialMaster, Title: "Tutorial Master", Description: "Try all 26 letters in one tutorial"},
	{ID: PracticeRookie, Title: "Practice Rookie", Description: "Practice 5 letters in one session"},
	{ID: PracticeEnthusiast, Title: "Practice Fan", Description: "Practice 15 letters in one session"},
	{ID: PracticePerfectionist, Title: "Practice Star", Description: "Practice with 90% accuracy"},
	{ID: EvaluationExpert, Title: "Test Expert", Description: "Pass a test with 90% accuracy"},
	{ID: EvaluationAchiever, Title: "Test Achiever", Description: "Sign 10 letters in one test"},
	{ID: EvaluationMaster, Title: "Test Master", Description: "Sign all 26 letters in one test"},
	{ID: MultiplayerDebut, Title: "Game On", Description: "Score points in a match"},
	{ID: MultiplayerAce, Title: "Match Ace", Description: "Play a match with 90% accuracy"},
	{ID: MultiplayerMarathon, Title: "Marathon", Description: "Answer 10 letters in one match"},
	{ID: FirstSteps, Title: "First Steps", Description: "Learn your first letter"},
	{ID: GoalGetter, Title: "Goal Getter", Description: "Learn 10 letters"},
	{ID: AlphabetMaster, Title: "Alphabet Master", Description: "Learn all 26 letters"},
	{ID: HotStreak, Title: "Hot Streak", Description: "Sign in 3 days in a row"},
	{ID: PracticeChampion, Title: "Champion", Description: "Sign in 7 days in a row"},
}

// Catalog returns every achievement, flagged against the unlocked ids.
func Catalog(unlocked []string) []Achievement {
	have := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		have[id] = struct{}{}
	}
	out := make([]Achievement, len(catalog))
	for i, a := range catalog {
		_, a.Unlocked = have[a.ID]
		out[i] = a
	}
	return out
}

// SessionAchievements evaluates badges earned by a single session,
// independent of the student's history.
func SessionAchievements(s model.SessionResult) []string {
	ids := make([]string, 0, 6)

	switch {
	case s.Accuracy >= 1.0:
		ids = append(ids, PerfectSession)
	case s.Accuracy >= 0.9:
		ids = append(ids, ExcellentAccuracy)
	case s.Accuracy >= 0.8:
		ids = append(ids, GoodAccuracy)
	}

	if s.TimeSpentSeconds >= 0 {
		switch {
		case s.TimeSpentSeconds < 30:
			ids = append(ids, SpeedDemon)
		case s.TimeSpentSeconds < 60:
			ids = append(ids, QuickLearner)
		}
	}

	switch s.Mode {
	case model.ModeTutorial:
		ids = append(ids, BeginnerBadge)
		if s.LettersCompleted >= 10 {
			ids = append(ids, TutorialExplorer)
		}
		if s.LettersCompleted >= model.MaxLetters {
			ids = append(ids, TutorialMaster)
		}
	case model.ModePractice:
		if s.LettersCompleted >= 5 {
			ids = append(ids, PracticeRookie)
		}
		if s.LettersCompleted >= 15 {
			ids = append(ids, PracticeEnthusiast)
		}
		if s.Accuracy >= 0.9 {
			ids = append(ids, PracticePerfectionist)
		}
	case model.ModeEvaluation:
		if s.Accuracy >= 0.9 {
			ids = append(ids, EvaluationExpert)
		}
		if s.LettersCompleted >= 10 {
			ids = append(ids, EvaluationAchiever)
		}
		if s.LettersCompleted >= model.MaxLetters {
			ids = append(ids, EvaluationMaster)
		}
	case model.ModeMultiplayer:
		ids = append(ids, MultiplayerDebut)
		if s.Accuracy >= 0.9 {
			ids = append(ids, MultiplayerAce)
		}
		if s.LettersCompleted >= 10 {
			ids = append(ids, MultiplayerMarathon)
		}
	}

	return ids
}

// CumulativeAchievements checks history-based unlocks. prev is the profile as
// it was before the session; lettersGained is how far lettersLearned moved.
// Ids already on the profile are never returned again.
func CumulativeAchievements(prev model.StudentProfile, lettersGained int) []string {
	var ids []string
	before := prev.LettersLearned
	after := before + lettersGained

	unlock := func(id string, cond bool) {
		if cond && !prev.HasAchievement(id) {
			ids = append(ids, id)
		}
	}

	unlock(FirstSteps, before == 0 && lettersGained > 0)
	unlock(GoalGetter, before < 10 && after >= 10)
	unlock(AlphabetMaster, before < model.MaxLetters && after >= model.MaxLetters)
	unlock(HotStreak, prev.StreakDays >= 3)
	unlock(PracticeChampion, prev.StreakDays >= 7)

	return ids
}
