package quiz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quizmaster/internal/domain"
)

// DefaultFeedbackDelay is how long answer feedback stays on screen before the session moves on.
const DefaultFeedbackDelay = 1200 * time.Millisecond

const persistTimeout = 15 * time.Second

// Status is the session lifecycle: loading -> active -> finished, or exited when abandoned.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusExited   Status = "exited"
)

// FinishReason tells which trigger ended the session.
type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishTimeout   FinishReason = "timeout"
)

// QuestionView is a question as shown during play, without its answer.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// View is a point-in-time snapshot of a session for display.
type View struct {
	SessionID     string        `json:"sessionId"`
	Status        Status        `json:"status"`
	CategoryID    string        `json:"categoryId"`
	Mode          domain.Mode   `json:"mode"`
	CurrentIndex  int           `json:"currentIndex"`
	Total         int           `json:"total"`
	Question      *QuestionView `json:"question,omitempty"`
	Selected      *int          `json:"selected,omitempty"`
	TimeRemaining int           `json:"timeRemaining"`
}

// AnswerFeedback is returned for every option selection. Accepted is false when the
// selection was ignored (already answered or option out of range).
type AnswerFeedback struct {
	QuestionIndex int    `json:"questionIndex"`
	Accepted      bool   `json:"accepted"`
	Answered      bool   `json:"answered"`
	Option        int    `json:"option"`
	Correct       bool   `json:"correct"`
	CorrectIndex  int    `json:"correctIndex"`
	Explanation   string `json:"explanation,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

// Report is handed to the finish hook once the outcome's side effects have been written.
type Report struct {
	SessionID  string
	Config     domain.SessionConfig
	Reason     FinishReason
	Outcome    domain.Outcome
	Review     domain.Review
	PersistErr error
}

// Option customises a Controller.
type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithRand(rnd *rand.Rand) Option {
	return func(c *Controller) { c.rnd = rnd }
}

func WithFeedbackDelay(d time.Duration) Option {
	return func(c *Controller) { c.feedbackDelay = d }
}

// WithFinishHook registers fn to run after a finished session has been persisted.
func WithFinishHook(fn func(Report)) Option {
	return func(c *Controller) { c.onFinish = fn }
}

// Controller owns one quiz session. It is safe for concurrent use; the timer, delayed
// feedback callbacks and player actions are serialised on its mutex, and the
// finished state acts as the single latch guarding outcome computation.
type Controller struct {
	id            string
	config        domain.SessionConfig
	scorer        *Scorer
	clock         Clock
	rnd           *rand.Rand
	feedbackDelay time.Duration
	onFinish      func(Report)
	events        *broadcaster
	settled       chan struct{}
	timer         *Timer

	mu            sync.Mutex
	status        Status
	questions     []domain.Question
	tracker       *AnswerTracker
	current       int
	timeRemaining int
	pending       Stopper
	pendingSeq    uint64
	outcome       *domain.Outcome
	review        *domain.Review
}

func NewController(id string, config domain.SessionConfig, scorer *Scorer, opts ...Option) *Controller {
	c := &Controller{
		id:            id,
		config:        config,
		scorer:        scorer,
		clock:         SystemClock{},
		feedbackDelay: DefaultFeedbackDelay,
		events:        newBroadcaster(),
		settled:       make(chan struct{}),
		status:        StatusLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = newRand()
	}
	c.timer = NewTimer(c.clock, c.handleTick, c.handleExpire)
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Config() domain.SessionConfig {
	return c.config
}

// Settled is closed once the session has ended and its side effects have been written.
func (c *Controller) Settled() <-chan struct{} {
	return c.settled
}

// Start builds the question set from pool and starts the clock. An empty set is a
// configuration error and leaves the session in loading.
func (c *Controller) Start(ctx context.Context, pool []domain.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusLoading:
	case StatusExited:
		return domain.ErrSessionNotActive
	default:
		return domain.ErrSessionStarted
	}

	questions := BuildQuestionSet(c.rnd, pool, c.config.QuestionCount)
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}
	c.scorer.LoadBaseline(ctx)

	c.questions = questions
	c.tracker = NewAnswerTracker(questions)
	c.current = 0
	c.status = StatusActive
	c.timeRemaining = c.config.DurationSeconds
	c.timer.Start(c.config.DurationSeconds)
	c.events.publish(Event{Type: EventStarted, View: c.viewLocked()})
	return nil
}

// SelectOption answers the current question. Repeated or out-of-range selections are ignored.
func (c *Controller) SelectOption(option int) (AnswerFeedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return AnswerFeedback{}, domain.ErrSessionNotActive
	}

	index := c.current
	if !c.tracker.Record(index, option) {
		return c.feedbackLocked(index, false), nil
	}
	feedback := c.feedbackLocked(index, true)
	c.events.publish(Event{Type: EventAnswered, View: c.viewLocked(), Feedback: &feedback})

	switch {
	case index == len(c.questions)-1:
		c.scheduleLocked(func() { c.finishLocked(FinishCompleted) })
	case c.config.Mode == domain.ModeTimeAttack:
		c.scheduleLocked(c.advanceLocked)
	}
	return feedback, nil
}

// Advance moves to the next question once the current one is answered. It is a no-op on
// the last question; finishing happens on its own after the last answer.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return domain.ErrSessionNotActive
	}
	if !c.tracker.IsAnswered(c.current) {
		return domain.ErrQuestionNotAnswered
	}
	if c.current >= len(c.questions)-1 {
		return nil
	}
	c.cancelPendingLocked()
	c.advanceLocked()
	return nil
}

// Exit abandons the session. No outcome is computed and nothing is persisted.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusFinished || c.status == StatusExited {
		return
	}
	c.status = StatusExited
	c.timer.Stop()
	c.cancelPendingLocked()
	close(c.settled)
	c.events.publish(Event{Type: EventExited, View: c.viewLocked()})
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Outcome() (domain.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return domain.Outcome{}, domain.ErrSessionNotFinished
	}
	return *c.outcome, nil
}

// Review returns the questions and recorded answers of a finished session.
func (c *Controller) Review() (domain.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.review == nil {
		return domain.Review{}, domain.ErrSessionNotFinished
	}
	return *c.review, nil
}

// Subscribe returns a channel primed with the current snapshot. The caller must invoke
// the returned cancel function; the channel is closed after the session ends.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.subscribe(Event{Type: EventSnapshot, View: c.viewLocked()})
}

func (c *Controller) handleTick(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return
	}
	c.timeRemaining = c.timer.Remaining()
	c.events.publish(Event{Type: EventTick, View: c.viewLocked()})
}

func (c *Controller) handleExpire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A time-attack reset may have restarted the countdown after this expiry fired.
	if c.timer.State() != TimerExpired {
		return
	}
	c.finishLocked(FinishTimeout)
}

func (c *Controller) advanceLocked() {
	if c.current >= len(c.questions)-1 {
		return
	}
	c.current++
	if c.config.Mode == domain.ModeTimeAttack {
		c.timer.Reset(c.config.DurationSeconds)
		c.timeRemaining = c.config.DurationSeconds
	}
	c.events.publish(Event{Type: EventQuestion, View: c.viewLocked()})
}

// finishLocked is the only way into the finished state.
func (c *Controller) finishLocked(reason FinishReason) {
	if c.status != StatusActive {
		return
	}
	c.status = StatusFinished
	c.timer.Stop()
	c.cancelPendingLocked()

	answers := c.tracker.Answers()
	outcome := c.scorer.Compute(c.questions, answers)
	review := domain.Review{Questions: c.questions, Answers: answers}
	c.outcome = &outcome
	c.review = &review

	go c.persist(review, outcome, reason)
	c.events.publish(Event{
		Type:    EventFinished,
		View:    c.viewLocked(),
		Outcome: &outcome,
		Review:  &review,
		Reason:  reason,
	})
}

func (c *Controller) persist(review domain.Review, outcome domain.Outcome, reason FinishReason) {
	defer close(c.settled)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := c.scorer.Persist(ctx, review.Questions, review.Answers, outcome)
	if c.onFinish != nil {
		c.onFinish(Report{
			SessionID:  c.id,
			Config:     c.config,
			Reason:     reason,
			Outcome:    outcome,
			Review:     review,
			PersistErr: err,
		})
	}
}

// scheduleLocked runs fn after the feedback delay unless the session leaves the active
// state or another callback is scheduled first.
func (c *Controller) scheduleLocked(fn func()) {
	c.cancelPendingLocked()
	seq := c.pendingSeq
	c.pending = c.clock.AfterFunc(c.feedbackDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if seq != c.pendingSeq || c.status != StatusActive {
			return
		}
		c.pending = nil
		fn()
	})
}

func (c *Controller) cancelPendingLocked() {
	c.pendingSeq++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) feedbackLocked(index int, accepted bool) AnswerFeedback {
	q := c.questions[index]
	feedback := AnswerFeedback{QuestionIndex: index, Accepted: accepted, Option: -1, CorrectIndex: -1}
	option, ok := c.tracker.Selected(index)
	if !ok {
		return feedback
	}
	feedback.Answered = true
	feedback.Option = option
	feedback.Correct = option == q.Correct
	feedback.CorrectIndex = q.Correct
	feedback.Explanation = q.Explanation
	feedback.Reference = q.Reference
	return feedback
}

func (c *Controller) viewLocked() View {
	v := View{
		SessionID:     c.id,
		Status:        c.status,
		CategoryID:    c.config.CategoryID,
		Mode:          c.config.Mode,
		CurrentIndex:  c.current,
		Total:         len(c.questions),
		TimeRemaining: c.timeRemaining,
	}
	if c.current < len(c.questions) {
		q := c.questions[c.current]
		v.Question = &QuestionView{Text: q.Text, Options: append([]string(nil), q.Options...)}
		if option, ok := c.tracker.Selected(c.current); ok {
			v.Selected = &option
		}
	}
	return v
}
