package repository

import (
	"context"
	"errors"

	"qaforum/internal/cache"
	"qaforum/internal/models"

	"gorm.io/gorm"
)

// VoteResolver returns the value to store given the user's current vote
// (nil when none exists) and the requested one.
type VoteResolver func(existing *int, requested int) int

// VoteRepository stores votes and computes tallies.
type VoteRepository interface {
	Cast(ctx context.Context, userID uint, target models.Target, requested int, resolve VoteResolver) (stored, score int, err error)
	Score(ctx context.Context, target models.Target) (int, error)
	QuestionScores(ctx context.Context, questionIDs []uint) (map[uint]int, error)
	AnswerScores(ctx context.Context, answerIDs []uint) (map[uint]int, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Vote, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository returns a VoteRepository backed by GORM.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func targetColumn(t models.Target) string {
	if t.IsQuestion() {
		return "question_id"
	}
	return "answer_id"
}

func scoreKey(t models.Target) string {
	if t.IsQuestion() {
		return cache.QuestionScoreKey(t.ID())
	}
	return cache.AnswerScoreKey(t.ID())
}

// Cast performs the read-modify-write of one user's vote under a row lock
// and returns the stored value and the target's new tally. A concurrent
// first vote by the same user loses the unique index race and is retried
// once against the row the winner inserted.
func (r *voteRepository) Cast(ctx context.Context, userID uint, target models.Target, requested int, resolve VoteResolver) (int, int, error) {
	var stored, score int
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		stored, score, err = r.castOnce(ctx, userID, target, requested, resolve)
		if err == nil || !isUniqueConstraintError(err) {
			break
		}
	}
	if err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	cache.Invalidate(ctx, scoreKey(target))
	return stored, score, nil
}

func (r *voteRepository) castOnce(ctx context.Context, userID uint, target models.Target, requested int, resolve VoteResolver) (int, int, error) {
	col := targetColumn(target)
	var stored, score int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := forUpdate(tx).Where("user_id = ? AND "+col+" = ?", userID, target.ID()).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			stored = resolve(nil, requested)
			v := models.Vote{UserID: userID, VoteType: stored}
			id := target.ID()
			if target.IsQuestion() {
				v.QuestionID = &id
			} else {
				v.AnswerID = &id
			}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			current := existing.VoteType
			stored = resolve(&current, requested)
			if stored != current {
				if err := tx.Model(&existing).Update("vote_type", stored).Error; err != nil {
					return err
				}
			}
		}

		var sum int64
		if err := tx.Model(&models.Vote{}).
			Where(col+" = ?", target.ID()).
			Select("COALESCE(SUM(vote_type), 0)").
			Scan(&sum).Error; err != nil {
			return err
		}
		score = int(sum)
		return nil
	})
	return stored, score, err
}

// Score returns the cached tally for a target.
func (r *voteRepository) Score(ctx context.Context, target models.Target) (int, error) {
	var score int
	err := cache.Aside(ctx, scoreKey(target), &score, cache.ScoreTTL, func() error {
		var sum int64
		if err := readDB(r.db).WithContext(ctx).Model(&models.Vote{}).
			Where(targetColumn(target)+" = ?", target.ID()).
			Select("COALESCE(SUM(vote_type), 0)").
			Scan(&sum).Error; err != nil {
			return models.NewInternalError(err)
		}
		score = int(sum)
		return nil
	})
	return score, err
}

type scoreRow struct {
	TargetID uint
	Score    int
}

func (r *voteRepository) scores(ctx context.Context, col string, ids []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []scoreRow
	err := readDB(r.db).WithContext(ctx).Model(&models.Vote{}).
		Select(col+" AS target_id, COALESCE(SUM(vote_type), 0) AS score").
		Where(col+" IN ?", ids).
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = 0
	}
	for _, row := range rows {
		out[row.TargetID] = row.Score
	}
	return out, nil
}

func (r *voteRepository) QuestionScores(ctx context.Context, questionIDs []uint) (map[uint]int, error) {
	return r.scores(ctx, "question_id", questionIDs)
}

func (r *voteRepository) AnswerScores(ctx context.Context, answerIDs []uint) (map[uint]int, error) {
	return r.scores(ctx, "answer_id", answerIDs)
}

func (r *voteRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Vote, error) {
	q := readDB(r.db).WithContext(ctx).Where("user_id = ? AND vote_type <> 0", userID).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var votes []models.Vote
	if err := q.Find(&votes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return votes, nil
}
