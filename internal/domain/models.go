package domain

import (
	"strings"
	"time"
)

// RemediationCategory is the pseudo-category that replays previously missed questions.
const RemediationCategory = "wrong_answers"

// PointsPerCorrect is awarded for every correctly answered question.
const PointsPerCorrect = 10

// ValidCategoryID reports whether id can name a category. Ids are used verbatim as
// document field names, so dots and a leading dollar sign are refused.
func ValidCategoryID(id string) bool {
	return id != "" && !strings.Contains(id, ".") && !strings.HasPrefix(id, "$")
}

// Mode selects how the session timer behaves across questions.
type Mode string

const (
	// ModeClassic runs one countdown for the whole session.
	ModeClassic Mode = "classic"
	// ModeTimeAttack restarts the countdown on every question.
	ModeTimeAttack Mode = "time_attack"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeClassic || m == ModeTimeAttack
}

// Question models an MCQ question. Correct indexes into Options.
type Question struct {
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// CorrectOption returns the text of the correct option, or "" if Correct is out of range.
func (q Question) CorrectOption() string {
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return ""
	}
	return q.Options[q.Correct]
}

// ChallengeSpec is attached to a session launched to answer a score duel.
type ChallengeSpec struct {
	ChallengeID    string `json:"challengeId"`
	TargetScore    int    `json:"targetScore"`
	ChallengerName string `json:"challengerName"`
}

// SessionConfig is fixed for the lifetime of a session.
type SessionConfig struct {
	CategoryID      string         `json:"categoryId"`
	Mode            Mode           `json:"mode"`
	QuestionCount   int            `json:"questionCount"` // <= 0 means every question in the pool
	DurationSeconds int            `json:"durationSeconds"`
	Challenge       *ChallengeSpec `json:"challenge,omitempty"`
}

// IsRemediation reports whether the session replays the wrong-answer pool.
func (c SessionConfig) IsRemediation() bool {
	return c.CategoryID == RemediationCategory
}

// HighScoreKey is the key high scores are stored under.
func (c SessionConfig) HighScoreKey() string {
	return c.CategoryID + "-" + string(c.Mode)
}

// Identity is the signed-in player. A zero UserID means an anonymous practice run.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Anonymous reports whether no user is attached.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// StatsUpdate is recorded once per answered question.
type StatsUpdate struct {
	IsCorrect                bool
	IsFirstQuestionOfSession bool
}

// Stats are the lifetime counters of a player.
type Stats struct {
	QuizzesPlayed  int `json:"quizzesPlayed" bson:"quizzesPlayed"`
	TotalCorrect   int `json:"totalCorrect" bson:"totalCorrect"`
	TotalIncorrect int `json:"totalIncorrect" bson:"totalIncorrect"`
}

// Apply folds a single update into the counters.
func (s Stats) Apply(u StatsUpdate) Stats {
	if u.IsFirstQuestionOfSession {
		s.QuizzesPlayed++
	}
	if u.IsCorrect {
		s.TotalCorrect++
	} else {
		s.TotalIncorrect++
	}
	return s
}

// Progress is a player's standing across every finished session.
type Progress struct {
	Stats        Stats          `json:"stats"`
	HighScores   map[string]int `json:"highScores"`
	Achievements []string       `json:"achievements"`
}

// ChallengeResult is the duel verdict of a challenge session.
type ChallengeResult struct {
	ChallengeID string `json:"challengeId"`
	Won         bool   `json:"won"`
	Winner      string `json:"winner"`
	TargetScore int    `json:"targetScore"`
}

// Outcome is derived once when a session finishes.
type Outcome struct {
	FinalScore           int              `json:"finalScore"`
	Correct              int              `json:"correct"`
	Total                int              `json:"total"`
	HighScoreDelta       bool             `json:"highScoreDelta"`
	PreviousHighScore    int              `json:"previousHighScore"`
	AchievementsUnlocked []string         `json:"achievementsUnlocked"`
	ChallengeResult      *ChallengeResult `json:"challengeResult,omitempty"`
}

// Review is the read-only post-mortem payload of a finished session.
type Review struct {
	Questions []Question  `json:"questions"`
	Answers   map[int]int `json:"answers"`
}

// ChallengeStatus tracks a duel through its lifecycle.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeCompleted ChallengeStatus = "completed"
)

// Challenge is a score duel sent from one player to another.
type Challenge struct {
	ID             string          `json:"id"`
	ChallengerID   string          `json:"challengerId"`
	ChallengerName string          `json:"challengerName"`
	TargetID       string          `json:"targetId"`
	CategoryID     string          `json:"categoryId"`
	ScoreToBeat    int             `json:"scoreToBeat"`
	Status         ChallengeStatus `json:"status"`
	Winner         string          `json:"winner,omitempty"`
	FinalScore     int             `json:"finalScore"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// OutcomeEvent is broadcast to downstream consumers when a session finishes.
type OutcomeEvent struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId,omitempty"`
	CategoryID string    `json:"categoryId"`
	Mode       Mode      `json:"mode"`
	Reason     string    `json:"reason"`
	Outcome    Outcome   `json:"outcome"`
	FinishedAt time.Time `json:"finishedAt"`
}
