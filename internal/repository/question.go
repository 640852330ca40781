package repository

import (
	"context"
	"strings"

	"qaforum/internal/cache"
	"qaforum/internal/models"

	"gorm.io/gorm"
)

// QuestionQuery filters and orders the question listing.
type QuestionQuery struct {
	Keyword         string
	Tag             string
	Username        string
	IncludeDisabled bool
	SortAsc         bool
	Page            Page
}

// QuestionRepository defines persistence operations for questions and tags.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question, tags []string) error
	Update(ctx context.Context, q *models.Question, tags []string) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	List(ctx context.Context, query QuestionQuery) ([]models.Question, int64, error)
	ListByUser(ctx context.Context, userID uint, includeDisabled bool, limit int) ([]models.Question, error)
	DeleteCascade(ctx context.Context, id uint) error
	ListTags(ctx context.Context) ([]models.Tag, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository returns a QuestionRepository backed by GORM.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func findOrCreateTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name}
		if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (r *questionRepository) Create(ctx context.Context, q *models.Question, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := findOrCreateTags(tx, tags)
		if err != nil {
			return err
		}
		q.Tags = found
		return tx.Create(q).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.TagListKey)
	return nil
}

func (r *questionRepository) Update(ctx context.Context, q *models.Question, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Question{}).Where("id = ?", q.ID).Updates(map[string]any{
			"title":     q.Title,
			"content":   q.Content,
			"image_url": q.ImageURL,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		found, err := findOrCreateTags(tx, tags)
		if err != nil {
			return err
		}
		if err := tx.Model(q).Association("Tags").Replace(found); err != nil {
			return err
		}
		q.Tags = found
		return nil
	})
	if err != nil {
		return notFoundOr(err, "Question", q.ID)
	}
	cache.Invalidate(ctx, cache.TagListKey)
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Preload("Tags").
		First(&q, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Question", id)
	}
	return &q, nil
}

func (query QuestionQuery) filter(db *gorm.DB) *gorm.DB {
	if !query.IncludeDisabled {
		db = db.Where("questions.is_disabled = ?", false)
	}
	if kw := strings.TrimSpace(query.Keyword); kw != "" {
		pattern := likePattern(kw)
		db = db.Where(`(LOWER(questions.title) LIKE ? ESCAPE '\' OR LOWER(questions.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if tag := strings.ToLower(strings.TrimSpace(query.Tag)); tag != "" {
		db = db.Where(`EXISTS (SELECT 1 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id WHERE qt.question_id = questions.id AND t.name = ?)`, tag)
	}
	if u := strings.TrimSpace(query.Username); u != "" {
		db = db.Where("questions.user_id IN (SELECT id FROM users WHERE username = ?)", u)
	}
	return db
}

// List orders by the latest answer (or creation time when unanswered), then
// by vote score.
func (r *questionRepository) List(ctx context.Context, query QuestionQuery) ([]models.Question, int64, error) {
	base := readDB(r.db).WithContext(ctx)

	var total int64
	if err := base.Model(&models.Question{}).Scopes(query.filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	dir := "DESC"
	if query.SortAsc {
		dir = "ASC"
	}

	var questions []models.Question
	err := base.Model(&models.Question{}).
		Select("questions.*").
		Joins("LEFT JOIN (SELECT question_id, MAX(created_at) AS last_answer_at FROM answers GROUP BY question_id) la ON la.question_id = questions.id").
		Joins("LEFT JOIN (SELECT question_id, SUM(vote_type) AS score FROM votes WHERE question_id IS NOT NULL GROUP BY question_id) vs ON vs.question_id = questions.id").
		Scopes(query.filter, query.Page.apply).
		Order("COALESCE(la.last_answer_at, questions.created_at) " + dir).
		Order("COALESCE(vs.score, 0) DESC").
		Order("questions.id " + dir).
		Preload("User").
		Preload("Tags").
		Find(&questions).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return questions, total, nil
}

func (r *questionRepository) ListByUser(ctx context.Context, userID uint, includeDisabled bool, limit int) ([]models.Question, error) {
	q := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID)
	if !includeDisabled {
		q = q.Where("is_disabled = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var questions []models.Question
	if err := q.Order("created_at DESC").Preload("Tags").Find(&questions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return questions, nil
}

// DeleteCascade removes a question and everything that references it, in
// dependency order, inside one transaction.
func (r *questionRepository) DeleteCascade(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := forUpdate(tx).Select("id").First(&q, id).Error; err != nil {
			return err
		}

		var answerIDs []uint
		if err := tx.Model(&models.Answer{}).Where("question_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if len(answerIDs) > 0 {
			if err := deleteTargetRows(tx, "answer_id", answerIDs); err != nil {
				return err
			}
			if err := tx.Where("id IN ?", answerIDs).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
		}

		if err := deleteTargetRows(tx, "question_id", []uint{id}); err != nil {
			return err
		}
		if err := tx.Model(&q).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Question{}, id).Error
	})
	if err != nil {
		return notFoundOr(err, "Question", id)
	}
	cache.Invalidate(ctx, cache.QuestionScoreKey(id), cache.TagListKey)
	return nil
}

// deleteTargetRows removes votes, notifications and reports pointing at ids
// through column.
func deleteTargetRows(tx *gorm.DB, column string, ids []uint) error {
	for _, model := range []any{&models.Vote{}, &models.Notification{}, &models.Report{}} {
		if err := tx.Where(column+" IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *questionRepository) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.TagListKey, &tags, cache.TagListTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}
