package cli

import (
	"context"
	"testing"

	"quizmaster/internal/config"
)

func TestRootCommandWiring(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("CONFIG_PATH", "testdata/quiz.yaml")

	cmd := newRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["start"] || !names["migrate"] {
		t.Fatalf("expected start and migrate commands, got %v", names)
	}
	if got := cmd.PersistentFlags().Lookup("port").DefValue; got != "9191" {
		t.Fatalf("expected port from env, got %q", got)
	}
	if got := cmd.PersistentFlags().Lookup("config").DefValue; got != "testdata/quiz.yaml" {
		t.Fatalf("expected config path from env, got %q", got)
	}
}

func TestMigrationsNeedPostgres(t *testing.T) {
	if err := runMigrationsWithConfig(context.Background(), config.Config{}); err == nil {
		t.Fatalf("expected error without postgres url")
	}
}

func TestSampleQuestionBanksArePlayable(t *testing.T) {
	for category, questions := range sampleQuestionBanks() {
		for _, q := range questions {
			if q.CorrectOption() == "" || len(q.Options) < 2 {
				t.Fatalf("%s: unplayable question %q", category, q.Text)
			}
		}
	}
}
