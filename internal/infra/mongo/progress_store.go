package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"quizmaster/internal/domain"
)

const (
	progressCollection     = "progress"
	wrongAnswersCollection = "wrong_answers"
)

// progressDocument is one player's aggregate. Maps are updated field by field, never replaced.
type progressDocument struct {
	UserID       string         `bson:"_id"`
	Stats        domain.Stats   `bson:"stats"`
	HighScores   map[string]int `bson:"highScores"`
	Achievements []string       `bson:"achievements"`
}

type wrongAnswerDocument struct {
	UserID      string   `bson:"userId"`
	CategoryID  string   `bson:"categoryId"`
	Text        string   `bson:"question"`
	Options     []string `bson:"options"`
	Correct     int      `bson:"correct"`
	Explanation string   `bson:"explanation,omitempty"`
	Reference   string   `bson:"reference,omitempty"`
}

// ProgressStore keeps player progress in MongoDB.
type ProgressStore struct {
	progress *mongo.Collection
	wrong    *mongo.Collection
}

func NewProgressStore(db *mongo.Database) *ProgressStore {
	return &ProgressStore{
		progress: db.Collection(progressCollection),
		wrong:    db.Collection(wrongAnswersCollection),
	}
}

// EnsureIndexes makes (userId, categoryId, question) unique so concurrent appends cannot duplicate.
func (s *ProgressStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.wrong.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "categoryId", Value: 1}, {Key: "question", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create wrong answer index: %w", err)
	}
	return nil
}

func (s *ProgressStore) load(ctx context.Context, userID string) (progressDocument, error) {
	var doc progressDocument
	err := s.progress.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return progressDocument{UserID: userID}, nil
	}
	if err != nil {
		return progressDocument{}, fmt.Errorf("find progress: %w", err)
	}
	return doc, nil
}

func (s *ProgressStore) HighScore(ctx context.Context, userID, key string) (int, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return doc.HighScores[key], nil
}

func (s *ProgressStore) HighScores(ctx context.Context, userID string) (map[string]int, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]int, len(doc.HighScores))
	for key, score := range doc.HighScores {
		scores[key] = score
	}
	return scores, nil
}

func (s *ProgressStore) Achievements(ctx context.Context, userID string) (map[string]bool, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[string]bool, len(doc.Achievements))
	for _, id := range doc.Achievements {
		unlocked[id] = true
	}
	return unlocked, nil
}

func (s *ProgressStore) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	return doc.Stats, nil
}

func (s *ProgressStore) upsert(ctx context.Context, userID string, update bson.M) error {
	_, err := s.progress.UpdateOne(ctx, bson.M{"_id": userID}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (s *ProgressStore) UpdateStats(ctx context.Context, userID string, update domain.StatsUpdate) error {
	inc := bson.M{}
	if update.IsFirstQuestionOfSession {
		inc["stats.quizzesPlayed"] = 1
	}
	if update.IsCorrect {
		inc["stats.totalCorrect"] = 1
	} else {
		inc["stats.totalIncorrect"] = 1
	}
	if err := s.upsert(ctx, userID, bson.M{"$inc": inc}); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}

// UpdateHighScore sets one field of the highScores map, so key must be a plain field name.
func (s *ProgressStore) UpdateHighScore(ctx context.Context, userID, key string, score int) error {
	if !domain.ValidCategoryID(key) {
		return fmt.Errorf("%w: high score key %q", domain.ErrInvalidConfig, key)
	}
	if err := s.upsert(ctx, userID, bson.M{"$set": bson.M{"highScores." + key: score}}); err != nil {
		return fmt.Errorf("update high score: %w", err)
	}
	return nil
}

func (s *ProgressStore) UnlockAchievement(ctx context.Context, userID, achievementID string) error {
	if err := s.upsert(ctx, userID, bson.M{"$addToSet": bson.M{"achievements": achievementID}}); err != nil {
		return fmt.Errorf("unlock achievement: %w", err)
	}
	return nil
}

// AppendWrongAnswer inserts the question only when no entry with the same text exists.
func (s *ProgressStore) AppendWrongAnswer(ctx context.Context, userID, categoryID string, q domain.Question) error {
	filter := bson.M{"userId": userID, "categoryId": categoryID, "question": q.Text}
	update := bson.M{"$setOnInsert": wrongAnswerDocument{
		UserID:      userID,
		CategoryID:  categoryID,
		Text:        q.Text,
		Options:     q.Options,
		Correct:     q.Correct,
		Explanation: q.Explanation,
		Reference:   q.Reference,
	}}
	_, err := s.wrong.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("append wrong answer: %w", err)
	}
	return nil
}

func (s *ProgressStore) WrongAnswers(ctx context.Context, userID string) ([]domain.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "categoryId", Value: 1}, {Key: "question", Value: 1}})
	cursor, err := s.wrong.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find wrong answers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []wrongAnswerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode wrong answers: %w", err)
	}
	questions := make([]domain.Question, 0, len(docs))
	for _, d := range docs {
		questions = append(questions, domain.Question{
			Text:        d.Text,
			Options:     d.Options,
			Correct:     d.Correct,
			Explanation: d.Explanation,
			Reference:   d.Reference,
			Category:    d.CategoryID,
		})
	}
	return questions, nil
}
