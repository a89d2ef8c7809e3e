package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizmaster/internal/domain"
)

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges"`

	ID             string     `bun:"id,pk"`
	ChallengerID   string     `bun:"challenger_id,notnull"`
	ChallengerName string     `bun:"challenger_name,notnull"`
	TargetID       string     `bun:"target_id,notnull"`
	CategoryID     string     `bun:"category_id,notnull"`
	ScoreToBeat    int        `bun:"score_to_beat,notnull"`
	Status         string     `bun:"status,notnull"`
	Winner         string     `bun:"winner,nullzero"`
	FinalScore     int        `bun:"final_score"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

func (r challengeRow) toDomain() domain.Challenge {
	return domain.Challenge{
		ID:             r.ID,
		ChallengerID:   r.ChallengerID,
		ChallengerName: r.ChallengerName,
		TargetID:       r.TargetID,
		CategoryID:     r.CategoryID,
		ScoreToBeat:    r.ScoreToBeat,
		Status:         domain.ChallengeStatus(r.Status),
		Winner:         r.Winner,
		FinalScore:     r.FinalScore,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
	}
}

// ChallengeRepository stores score duels with bun.
type ChallengeRepository struct {
	db  *bun.DB
	now func() time.Time
}

func NewChallengeRepository(db *bun.DB) *ChallengeRepository {
	return &ChallengeRepository{db: db, now: time.Now}
}

func (r *ChallengeRepository) Create(ctx context.Context, challenge domain.Challenge) error {
	row := challengeRow{
		ID:             challenge.ID,
		ChallengerID:   challenge.ChallengerID,
		ChallengerName: challenge.ChallengerName,
		TargetID:       challenge.TargetID,
		CategoryID:     challenge.CategoryID,
		ScoreToBeat:    challenge.ScoreToBeat,
		Status:         string(domain.ChallengePending),
		CreatedAt:      challenge.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.now()
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepository) Get(ctx context.Context, challengeID string) (domain.Challenge, error) {
	var row challengeRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", challengeID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return row.toDomain(), nil
}

// ResolveChallenge completes a pending challenge. Resolving an already completed
// challenge is a no-op, so a retried call never overwrites the first result.
func (r *ChallengeRepository) ResolveChallenge(ctx context.Context, challengeID, winnerDisplayName string, finalScore int) error {
	res, err := r.db.NewUpdate().
		Model((*challengeRow)(nil)).
		Set("status = ?", string(domain.ChallengeCompleted)).
		Set("winner = ?", winnerDisplayName).
		Set("final_score = ?", finalScore).
		Set("completed_at = ?", r.now()).
		Where("id = ?", challengeID).
		Where("status = ?", string(domain.ChallengePending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("resolve challenge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, challengeID); err != nil {
		return err
	}
	return nil
}
