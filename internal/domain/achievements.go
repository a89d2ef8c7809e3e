package domain

// Achievement ids.
const (
	AchievementFirstQuiz    = "FIRST_QUIZ"
	AchievementPerfectScore = "PERFECT_SCORE"
)

// Achievement is an entry of the static catalog.
type Achievement struct {
	ID          string
	Name        string
	Description string
}

var achievementCatalog = map[string]Achievement{
	AchievementFirstQuiz: {
		ID:          AchievementFirstQuiz,
		Name:        "First Steps",
		Description: "Complete your first quiz",
	},
	AchievementPerfectScore: {
		ID:          AchievementPerfectScore,
		Name:        "Flawless",
		Description: "Answer every question of a quiz correctly",
	},
}

// LookupAchievement returns the catalog entry for id.
func LookupAchievement(id string) (Achievement, bool) {
	a, ok := achievementCatalog[id]
	return a, ok
}
