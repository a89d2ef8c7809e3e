package memory

import (
	"context"
	"testing"

	"quizmaster/internal/domain"
)

func TestProgressStoreDeduplicatesWrongAnswersByText(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	q := sampleQuestions()[0]

	for i := 0; i < 3; i++ {
		if err := store.AppendWrongAnswer(ctx, "u1", "geography", q); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = store.AppendWrongAnswer(ctx, "u1", "history", q)

	pool, err := store.WrongAnswers(ctx, "u1")
	if err != nil {
		t.Fatalf("wrong answers: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected one entry per category, got %d", len(pool))
	}
	if pool[0].Category != "geography" || pool[1].Category != "history" {
		t.Fatalf("expected entries to remember their category, got %+v", pool)
	}
}

func TestProgressStoreStatsAndScores(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	_ = store.UpdateStats(ctx, "u1", domain.StatsUpdate{IsCorrect: true, IsFirstQuestionOfSession: true})
	_ = store.UpdateStats(ctx, "u1", domain.StatsUpdate{IsCorrect: false})
	_ = store.UpdateHighScore(ctx, "u1", "geography-classic", 40)
	_ = store.UnlockAchievement(ctx, "u1", domain.AchievementFirstQuiz)

	stats, _ := store.Stats(ctx, "u1")
	if stats != (domain.Stats{QuizzesPlayed: 1, TotalCorrect: 1, TotalIncorrect: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if score, _ := store.HighScore(ctx, "u1", "geography-classic"); score != 40 {
		t.Fatalf("expected high score 40, got %d", score)
	}
	scores, _ := store.HighScores(ctx, "u1")
	scores["geography-classic"] = 0
	if score, _ := store.HighScore(ctx, "u1", "geography-classic"); score != 40 {
		t.Fatalf("high scores must be returned as a copy, got %d", score)
	}
	unlocked, _ := store.Achievements(ctx, "u1")
	if !unlocked[domain.AchievementFirstQuiz] {
		t.Fatalf("expected FIRST_QUIZ unlocked")
	}
}

func TestChallengeStoreResolvesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewChallengeStore()
	_ = store.Create(ctx, domain.Challenge{ID: "ch-1", ChallengerName: "Bob", ScoreToBeat: 40})

	if err := store.ResolveChallenge(ctx, "ch-1", "Alice", 50); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := store.ResolveChallenge(ctx, "ch-1", "Bob", 0); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	challenge, _ := store.Get(ctx, "ch-1")
	if challenge.Status != domain.ChallengeCompleted || challenge.Winner != "Alice" || challenge.FinalScore != 50 {
		t.Fatalf("unexpected challenge %+v", challenge)
	}
	if challenge.CompletedAt == nil {
		t.Fatalf("expected completion time")
	}
	if err := store.ResolveChallenge(ctx, "missing", "Alice", 10); err != domain.ErrChallengeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
