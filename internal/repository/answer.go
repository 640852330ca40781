package repository

import (
	"context"

	"qaforum/internal/cache"
	"qaforum/internal/models"

	"gorm.io/gorm"
)

// AnswerRepository defines persistence operations for answers.
type AnswerRepository interface {
	Create(ctx context.Context, a *models.Answer) error
	Update(ctx context.Context, a *models.Answer) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	ListByQuestion(ctx context.Context, questionID uint, includeDisabled bool, page Page) ([]models.Answer, int64, error)
	RecentByQuestions(ctx context.Context, questionIDs []uint, perQuestion int, includeDisabled bool) (map[uint][]models.Answer, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Answer, error)
	DeleteCascade(ctx context.Context, id uint) error
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository returns an AnswerRepository backed by GORM.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Create(ctx context.Context, a *models.Answer) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *answerRepository) Update(ctx context.Context, a *models.Answer) error {
	res := r.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", a.ID).Updates(map[string]any{
		"content":   a.Content,
		"image_url": a.ImageURL,
	})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Answer", a.ID)
	}
	return nil
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	var a models.Answer
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Preload("Question").
		First(&a, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Answer", id)
	}
	return &a, nil
}

func visibleAnswers(includeDisabled bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if includeDisabled {
			return db
		}
		return db.Where("is_disabled = ?", false)
	}
}

// ListByQuestion returns answers newest first.
func (r *answerRepository) ListByQuestion(ctx context.Context, questionID uint, includeDisabled bool, page Page) ([]models.Answer, int64, error) {
	base := readDB(r.db).WithContext(ctx)
	scope := visibleAnswers(includeDisabled)

	var total int64
	if err := base.Model(&models.Answer{}).Where("question_id = ?", questionID).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var answers []models.Answer
	err := base.Where("question_id = ?", questionID).
		Scopes(scope, page.apply).
		Order("created_at DESC").Order("id DESC").
		Preload("User").
		Find(&answers).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return answers, total, nil
}

func (r *answerRepository) RecentByQuestions(ctx context.Context, questionIDs []uint, perQuestion int, includeDisabled bool) (map[uint][]models.Answer, error) {
	out := make(map[uint][]models.Answer, len(questionIDs))
	for _, qid := range questionIDs {
		answers, _, err := r.ListByQuestion(ctx, qid, includeDisabled, Page{Limit: perQuestion})
		if err != nil {
			return nil, err
		}
		out[qid] = answers
	}
	return out, nil
}

func (r *answerRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Answer, error) {
	q := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var answers []models.Answer
	if err := q.Preload("Question").Find(&answers).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return answers, nil
}

// DeleteCascade removes the answer's votes, notifications and reports, then
// the answer, inside one transaction.
func (r *answerRepository) DeleteCascade(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Answer
		if err := forUpdate(tx).Select("id").First(&a, id).Error; err != nil {
			return err
		}
		if err := deleteTargetRows(tx, "answer_id", []uint{id}); err != nil {
			return err
		}
		return tx.Delete(&models.Answer{}, id).Error
	})
	if err != nil {
		return notFoundOr(err, "Answer", id)
	}
	cache.Invalidate(ctx, cache.AnswerScoreKey(id))
	return nil
}
