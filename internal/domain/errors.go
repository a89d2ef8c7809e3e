package domain

import "errors"

var (
	// ErrNoQuestions is the configuration error raised when a category has nothing to play.
	ErrNoQuestions = errors.New("no questions available for category")
	// ErrCategoryNotFound indicates the question bank for a category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidConfig is returned for malformed session settings.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrIdentityRequired is returned when an anonymous player starts a challenge.
	ErrIdentityRequired = errors.New("identity required")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionStarted is returned when Start is called on a controller twice.
	ErrSessionStarted = errors.New("quiz session already started")
	// ErrSessionNotActive is returned for play operations outside the active state.
	ErrSessionNotActive = errors.New("quiz session not active")
	// ErrSessionNotFinished is returned when results are requested too early.
	ErrSessionNotFinished = errors.New("quiz session not finished")
	// ErrQuestionNotAnswered is returned when advancing past an unanswered question.
	ErrQuestionNotAnswered = errors.New("current question not answered")
	// ErrChallengeNotFound indicates an unknown challenge id.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeClosed is returned when a completed challenge is played again.
	ErrChallengeClosed = errors.New("challenge already completed")
	// ErrNotChallengeTarget is returned when a player accepts a challenge sent to someone else.
	ErrNotChallengeTarget = errors.New("challenge addressed to another player")
)
