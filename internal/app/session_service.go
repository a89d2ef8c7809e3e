package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"quizmaster/internal/domain"
	"quizmaster/internal/metrics"
	"quizmaster/internal/quiz"
)

const (
	// DefaultDurationSeconds applies when a session does not ask for a duration.
	DefaultDurationSeconds = 120
	// ChallengeQuestionCount and ChallengeDurationSeconds fix the shape of a challenge set.
	ChallengeQuestionCount   = 10
	ChallengeDurationSeconds = 120

	publishTimeout = 5 * time.Second
)

// SessionRepository abstracts where live sessions are kept between player actions (in-memory, Redis, etc).
type SessionRepository interface {
	Save(session *quiz.Controller)
	Get(sessionID string) (*quiz.Controller, bool)
	Delete(sessionID string)
}

// QuestionRepository loads the question pool of a category (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, categoryID string) ([]domain.Question, error)
}

// ProgressRepository is the player progress store, including the remediation pool.
type ProgressRepository interface {
	quiz.ProgressStore
	ProgressReader
	// WrongAnswers returns every stored wrong answer of the user across all categories.
	WrongAnswers(ctx context.Context, userID string) ([]domain.Question, error)
}

// ProgressReader exposes the read side of player progress.
type ProgressReader interface {
	Stats(ctx context.Context, userID string) (domain.Stats, error)
	HighScores(ctx context.Context, userID string) (map[string]int, error)
}

// ChallengeRepository stores score duels. Sessions read the challenge they answer from it
// and resolve it when they finish.
type ChallengeRepository interface {
	quiz.ChallengeResolver
	Create(ctx context.Context, challenge domain.Challenge) error
	Get(ctx context.Context, challengeID string) (domain.Challenge, error)
}

// OutcomePublisher forwards finished sessions to downstream consumers.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event domain.OutcomeEvent) error
}

// Option customises a SessionService.
type Option func(*SessionService)

func WithProgress(progress ProgressRepository) Option {
	return func(s *SessionService) { s.progress = progress }
}

func WithChallenges(challenges ChallengeRepository) Option {
	return func(s *SessionService) { s.challenges = challenges }
}

func WithPublisher(publisher OutcomePublisher) Option {
	return func(s *SessionService) { s.publisher = publisher }
}

func WithFeedbackDelay(d time.Duration) Option {
	return func(s *SessionService) { s.feedbackDelay = d }
}

func WithDefaultDuration(seconds int) Option {
	return func(s *SessionService) { s.defaultDuration = seconds }
}

func WithClock(clock quiz.Clock) Option {
	return func(s *SessionService) { s.clock = clock }
}

// SessionService contains the quiz session use cases.
type SessionService struct {
	sessions        SessionRepository
	questions       QuestionRepository
	progress        ProgressRepository
	challenges      ChallengeRepository
	publisher       OutcomePublisher
	clock           quiz.Clock
	feedbackDelay   time.Duration
	defaultDuration int
	now             func() time.Time
}

func NewSessionService(sessions SessionRepository, questions QuestionRepository, opts ...Option) *SessionService {
	s := &SessionService{
		sessions:        sessions,
		questions:       questions,
		clock:           quiz.SystemClock{},
		feedbackDelay:   quiz.DefaultFeedbackDelay,
		defaultDuration: DefaultDurationSeconds,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts a new session. A category without playable questions fails with
// domain.ErrNoQuestions and nothing is stored. Challenge sessions take their category, target
// and challenger from the stored challenge; only the challenge id is read from config.
func (s *SessionService) Start(ctx context.Context, identity domain.Identity, config domain.SessionConfig) (quiz.View, error) {
	config, err := s.bindChallenge(ctx, identity, config)
	if err != nil {
		return quiz.View{}, err
	}
	config, err = s.normalize(identity, config)
	if err != nil {
		return quiz.View{}, err
	}

	pool, err := s.pool(ctx, identity, config)
	if err != nil {
		return quiz.View{}, fmt.Errorf("%w: %w", domain.ErrNoQuestions, err)
	}

	var progress quiz.ProgressStore
	if s.progress != nil {
		progress = s.progress
	}
	var challenges quiz.ChallengeResolver
	if s.challenges != nil {
		challenges = s.challenges
	}
	scorer := quiz.NewScorer(config, identity, progress, challenges)

	id := uuid.NewString()
	session := quiz.NewController(id, config, scorer,
		quiz.WithClock(s.clock),
		quiz.WithFeedbackDelay(s.feedbackDelay),
		quiz.WithFinishHook(s.finished(identity)),
	)
	if err := session.Start(ctx, pool); err != nil {
		return quiz.View{}, err
	}

	s.sessions.Save(session)
	metrics.SessionsStarted.WithLabelValues(string(config.Mode)).Inc()
	return session.View(), nil
}

// SelectOption answers the current question of a session.
func (s *SessionService) SelectOption(_ context.Context, sessionID string, option int) (quiz.AnswerFeedback, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return quiz.AnswerFeedback{}, domain.ErrSessionNotFound
	}
	return session.SelectOption(option)
}

// Advance moves a session to its next question.
func (s *SessionService) Advance(_ context.Context, sessionID string) (quiz.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return quiz.View{}, domain.ErrSessionNotFound
	}
	if err := session.Advance(); err != nil {
		return quiz.View{}, err
	}
	return session.View(), nil
}

// Exit abandons a session without an outcome and drops it.
func (s *SessionService) Exit(_ context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.abandon(session)
	s.sessions.Delete(sessionID)
	return nil
}

func (s *SessionService) View(_ context.Context, sessionID string) (quiz.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return quiz.View{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

func (s *SessionService) Outcome(_ context.Context, sessionID string) (domain.Outcome, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Outcome{}, domain.ErrSessionNotFound
	}
	return session.Outcome()
}

// Review returns the questions and answers of a finished session for post-mortem display.
func (s *SessionService) Review(_ context.Context, sessionID string) (domain.Review, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Review{}, domain.ErrSessionNotFound
	}
	return session.Review()
}

// Subscribe returns a channel that receives session events.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan quiz.Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Discard forgets a session. An unfinished session is abandoned first.
func (s *SessionService) Discard(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.abandon(session)
	s.sessions.Delete(sessionID)
}

func (s *SessionService) abandon(session *quiz.Controller) {
	live := session.Status() == quiz.StatusActive
	session.Exit()
	if live && session.Status() == quiz.StatusExited {
		metrics.SessionsExited.Inc()
	}
}

// bindChallenge replaces the challenge settings of config with the stored challenge.
func (s *SessionService) bindChallenge(ctx context.Context, identity domain.Identity, config domain.SessionConfig) (domain.SessionConfig, error) {
	if config.Challenge == nil {
		return config, nil
	}
	if identity.Anonymous() {
		return config, domain.ErrIdentityRequired
	}
	challengeID := config.Challenge.ChallengeID
	if challengeID == "" {
		return config, fmt.Errorf("%w: challenge id is required", domain.ErrInvalidConfig)
	}
	if s.challenges == nil {
		return config, domain.ErrChallengeNotFound
	}

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		return config, err
	}
	if challenge.Status != domain.ChallengePending {
		return config, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, domain.ErrChallengeClosed)
	}
	if challenge.TargetID != identity.UserID {
		return config, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, domain.ErrNotChallengeTarget)
	}

	config.CategoryID = challenge.CategoryID
	config.Challenge = &domain.ChallengeSpec{
		ChallengeID:    challenge.ID,
		TargetScore:    challenge.ScoreToBeat,
		ChallengerName: challenge.ChallengerName,
	}
	return config, nil
}

// SendChallenge records a pending duel from challenger to targetID on a category.
func (s *SessionService) SendChallenge(ctx context.Context, challenger domain.Identity, targetID, categoryID string, scoreToBeat int) (domain.Challenge, error) {
	if challenger.Anonymous() {
		return domain.Challenge{}, domain.ErrIdentityRequired
	}
	switch {
	case targetID == "" || targetID == challenger.UserID:
		return domain.Challenge{}, fmt.Errorf("%w: challenge needs another player as target", domain.ErrInvalidConfig)
	case !domain.ValidCategoryID(categoryID) || categoryID == domain.RemediationCategory:
		return domain.Challenge{}, fmt.Errorf("%w: malformed category %q", domain.ErrInvalidConfig, categoryID)
	case scoreToBeat < 0:
		return domain.Challenge{}, fmt.Errorf("%w: negative score to beat", domain.ErrInvalidConfig)
	case s.challenges == nil:
		return domain.Challenge{}, fmt.Errorf("%w: challenges are not configured", domain.ErrInvalidConfig)
	}

	challenge := domain.Challenge{
		ID:             uuid.NewString(),
		ChallengerID:   challenger.UserID,
		ChallengerName: challenger.DisplayName,
		TargetID:       targetID,
		CategoryID:     categoryID,
		ScoreToBeat:    scoreToBeat,
		Status:         domain.ChallengePending,
		CreatedAt:      s.now(),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return domain.Challenge{}, err
	}
	return challenge, nil
}

func (s *SessionService) Challenge(ctx context.Context, challengeID string) (domain.Challenge, error) {
	if s.challenges == nil {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return s.challenges.Get(ctx, challengeID)
}

// Progress returns the standing of a player. Without a progress store every player is new.
func (s *SessionService) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	progress := domain.Progress{HighScores: map[string]int{}, Achievements: []string{}}
	if s.progress == nil || userID == "" {
		return progress, nil
	}

	stats, err := s.progress.Stats(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	highScores, err := s.progress.HighScores(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	unlocked, err := s.progress.Achievements(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}

	progress.Stats = stats
	for key, score := range highScores {
		progress.HighScores[key] = score
	}
	for id := range unlocked {
		progress.Achievements = append(progress.Achievements, id)
	}
	sort.Strings(progress.Achievements)
	return progress, nil
}

// normalize fills defaults and forces the fixed shape of challenge sessions.
func (s *SessionService) normalize(identity domain.Identity, config domain.SessionConfig) (domain.SessionConfig, error) {
	if config.CategoryID == "" {
		return config, fmt.Errorf("%w: category is required", domain.ErrInvalidConfig)
	}
	if !domain.ValidCategoryID(config.CategoryID) {
		return config, fmt.Errorf("%w: malformed category %q", domain.ErrInvalidConfig, config.CategoryID)
	}
	if config.Mode == "" {
		config.Mode = domain.ModeClassic
	}
	if !config.Mode.Valid() {
		return config, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidConfig, config.Mode)
	}
	if config.QuestionCount < 0 {
		config.QuestionCount = 0
	}
	if config.DurationSeconds <= 0 {
		config.DurationSeconds = s.defaultDuration
	}

	if c := config.Challenge; c != nil {
		if identity.Anonymous() {
			return config, domain.ErrIdentityRequired
		}
		if config.IsRemediation() {
			return config, fmt.Errorf("%w: challenges cannot replay wrong answers", domain.ErrInvalidConfig)
		}
		spec := *c
		config.Challenge = &spec
		config.Mode = domain.ModeClassic
		config.QuestionCount = ChallengeQuestionCount
		config.DurationSeconds = ChallengeDurationSeconds
	}
	return config, nil
}

// pool resolves the questions a session draws from. The remediation pool belongs to the
// player, so anonymous players and stores without progress get an empty one.
func (s *SessionService) pool(ctx context.Context, identity domain.Identity, config domain.SessionConfig) ([]domain.Question, error) {
	if !config.IsRemediation() {
		return s.questions.GetQuestions(ctx, config.CategoryID)
	}
	if identity.Anonymous() || s.progress == nil {
		return nil, nil
	}
	return s.progress.WrongAnswers(ctx, identity.UserID)
}

func (s *SessionService) finished(identity domain.Identity) func(quiz.Report) {
	return func(r quiz.Report) {
		metrics.SessionsFinished.WithLabelValues(string(r.Config.Mode), string(r.Reason)).Inc()
		if s.publisher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := s.publisher.PublishOutcome(ctx, domain.OutcomeEvent{
			SessionID:  r.SessionID,
			UserID:     identity.UserID,
			CategoryID: r.Config.CategoryID,
			Mode:       r.Config.Mode,
			Reason:     string(r.Reason),
			Outcome:    r.Outcome,
			FinishedAt: s.now(),
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("publish outcome for session %s: %v", r.SessionID, err)
		}
	}
}
