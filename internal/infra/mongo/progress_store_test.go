package mongo

import (
	"context"
	"errors"
	"testing"

	"quizmaster/internal/domain"
)

func TestUpdateHighScoreRejectsFieldPathKeys(t *testing.T) {
	// The key is checked before the collection is touched, so no server is needed.
	store := &ProgressStore{}

	for _, key := range []string{"geo.graphy-classic", "$inc-classic", ""} {
		err := store.UpdateHighScore(context.Background(), "u1", key, 10)
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("key %q: expected invalid config, got %v", key, err)
		}
	}
}
