package quiz

import (
	"math/rand"
	"time"

	"quizmaster/internal/domain"
)

// newRand returns an independently seeded source; sessions are not reproducible.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// BuildQuestionSet draws count questions from pool (the whole pool when count <= 0 or
// count exceeds it), shuffles the options of every drawn question and finally shuffles
// the sequence itself. Questions repeating an earlier question text within the same
// category, or whose correct index does not point into their options, are dropped. pool
// is left untouched.
func BuildQuestionSet(rnd *rand.Rand, pool []domain.Question, count int) []domain.Question {
	candidates := usableQuestions(pool)
	if len(candidates) == 0 {
		return []domain.Question{}
	}

	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if count > 0 && count < len(candidates) {
		candidates = candidates[:count]
	}

	set := make([]domain.Question, len(candidates))
	for i, q := range candidates {
		set[i] = shuffleOptions(rnd, q)
	}
	rnd.Shuffle(len(set), func(i, j int) {
		set[i], set[j] = set[j], set[i]
	})
	return set
}

// questionKey identifies a question. The remediation pool mixes categories, so the same
// text may legitimately appear once per category.
type questionKey struct {
	category string
	text     string
}

func usableQuestions(pool []domain.Question) []domain.Question {
	seen := make(map[questionKey]struct{}, len(pool))
	out := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if len(q.Options) < 2 || q.Correct < 0 || q.Correct >= len(q.Options) {
			continue
		}
		key := questionKey{category: q.Category, text: q.Text}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// shuffleOptions permutes options while carrying the correct flag with each option, so the
// result stays right even when two options share the same text.
func shuffleOptions(rnd *rand.Rand, q domain.Question) domain.Question {
	type option struct {
		text    string
		correct bool
	}
	opts := make([]option, len(q.Options))
	for i, text := range q.Options {
		opts[i] = option{text: text, correct: i == q.Correct}
	}
	rnd.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})

	out := q
	out.Options = make([]string, len(opts))
	for i, o := range opts {
		out.Options[i] = o.text
		if o.correct {
			out.Correct = i
		}
	}
	return out
}
