package repository

import (
	"context"
	"strings"

	"qaforum/internal/models"

	"gorm.io/gorm"
)

// MaterialTotals aggregates a user's uploads.
type MaterialTotals struct {
	Count     int64
	Downloads int64
}

// MaterialRepository defines persistence operations for study materials.
type MaterialRepository interface {
	Create(ctx context.Context, m *models.Material) error
	GetByID(ctx context.Context, id uint) (*models.Material, error)
	List(ctx context.Context, search string, page Page) ([]models.Material, int64, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Material, error)
	TotalsByUser(ctx context.Context, userID uint) (MaterialTotals, error)
	IncrementDownloads(ctx context.Context, id uint) (*models.Material, error)
	Delete(ctx context.Context, id uint) error
}

type materialRepository struct {
	db *gorm.DB
}

// NewMaterialRepository returns a MaterialRepository backed by GORM.
func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepository{db: db}
}

func (r *materialRepository) Create(ctx context.Context, m *models.Material) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *materialRepository) GetByID(ctx context.Context, id uint) (*models.Material, error) {
	var m models.Material
	if err := readDB(r.db).WithContext(ctx).Preload("User").First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "Material", id)
	}
	return &m, nil
}

func (r *materialRepository) List(ctx context.Context, search string, page Page) ([]models.Material, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(search); s != "" {
			pattern := likePattern(s)
			db = db.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
		return db
	}
	base := readDB(r.db).WithContext(ctx)

	var total int64
	if err := base.Model(&models.Material{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var items []models.Material
	err := base.Scopes(filter, page.apply).Order("created_at DESC").Order("id DESC").Preload("User").Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *materialRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Material, error) {
	q := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []models.Material
	if err := q.Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *materialRepository) TotalsByUser(ctx context.Context, userID uint) (MaterialTotals, error) {
	var totals MaterialTotals
	err := readDB(r.db).WithContext(ctx).Model(&models.Material{}).
		Select("COUNT(*) AS count, COALESCE(SUM(downloads), 0) AS downloads").
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return MaterialTotals{}, models.NewInternalError(err)
	}
	return totals, nil
}

// IncrementDownloads bumps the counter with a single UPDATE so concurrent
// downloads are never lost, then returns the fresh row.
func (r *materialRepository) IncrementDownloads(ctx context.Context, id uint) (*models.Material, error) {
	res := r.db.WithContext(ctx).Model(&models.Material{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Material", id)
	}

	var m models.Material
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "Material", id)
	}
	return &m, nil
}

func (r *materialRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Material{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Material", id)
	}
	return nil
}
