package quiz

import "quizmaster/internal/domain"

// AnswerTracker records at most one answer per question index. The first answer is final.
type AnswerTracker struct {
	questions []domain.Question
	answers   map[int]int
}

func NewAnswerTracker(questions []domain.Question) *AnswerTracker {
	return &AnswerTracker{
		questions: questions,
		answers:   make(map[int]int, len(questions)),
	}
}

// Record stores option for questionIndex. It reports false, changing nothing, when the
// question is already answered or either index is out of range.
func (t *AnswerTracker) Record(questionIndex, option int) bool {
	if questionIndex < 0 || questionIndex >= len(t.questions) {
		return false
	}
	if option < 0 || option >= len(t.questions[questionIndex].Options) {
		return false
	}
	if _, ok := t.answers[questionIndex]; ok {
		return false
	}
	t.answers[questionIndex] = option
	return true
}

func (t *AnswerTracker) IsAnswered(questionIndex int) bool {
	_, ok := t.answers[questionIndex]
	return ok
}

func (t *AnswerTracker) IsCorrect(questionIndex int) bool {
	option, ok := t.answers[questionIndex]
	if !ok {
		return false
	}
	return option == t.questions[questionIndex].Correct
}

// Selected returns the recorded option for questionIndex.
func (t *AnswerTracker) Selected(questionIndex int) (int, bool) {
	option, ok := t.answers[questionIndex]
	return option, ok
}

func (t *AnswerTracker) CorrectCount() int {
	n := 0
	for i := range t.answers {
		if t.IsCorrect(i) {
			n++
		}
	}
	return n
}

// Answers returns a copy of the recorded answers.
func (t *AnswerTracker) Answers() map[int]int {
	out := make(map[int]int, len(t.answers))
	for k, v := range t.answers {
		out[k] = v
	}
	return out
}
