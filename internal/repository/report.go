package repository

import (
	"context"
	"errors"
	"strings"

	"qaforum/internal/models"

	"gorm.io/gorm"
)

// ReportQuery filters the moderation queue.
type ReportQuery struct {
	Status  models.ReportStatus
	Search  string
	SortAsc bool
	Page    Page
}

// StatusDecider inspects the locked report (with its target loaded) and
// returns the status to store.
type StatusDecider func(r *models.Report) (models.ReportStatus, error)

// ReportRepository defines persistence operations for reports.
type ReportRepository interface {
	Create(ctx context.Context, r *models.Report) error
	Exists(ctx context.Context, userID uint, target models.Target) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	ChangeStatus(ctx context.Context, id uint, decide StatusDecider) (report *models.Report, previous models.ReportStatus, err error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query ReportQuery) ([]models.Report, int64, error)
}

// ErrDuplicateReport is returned by Create when the unique index rejects a
// second report of the same target by the same user.
var ErrDuplicateReport = errors.New("duplicate report")

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository returns a ReportRepository backed by GORM.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateReport
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) Exists(ctx context.Context, userID uint, target models.Target) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Report{}).
		Where("user_id = ? AND "+targetColumn(target)+" = ?", userID, target.ID()).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func preloadReport(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Question.User").
		Preload("Answer.User").
		Preload("Answer.Question")
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := readDB(r.db).WithContext(ctx).Scopes(preloadReport).First(&report, id).Error; err != nil {
		return nil, notFoundOr(err, "Report", id)
	}
	return &report, nil
}

// ChangeStatus locks the report, lets decide pick the new status, then
// writes the status and the target's visibility in the same transaction.
// The target is hidden while any of its reports is Accepted.
// A decision equal to the current status writes nothing.
// Errors returned by decide are passed through unchanged.
func (r *reportRepository) ChangeStatus(ctx context.Context, id uint, decide StatusDecider) (*models.Report, models.ReportStatus, error) {
	var report models.Report
	var previous models.ReportStatus
	var decideErr error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&report, id).Error; err != nil {
			return notFoundOr(err, "Report", id)
		}
		if err := tx.Scopes(preloadReport).First(&report, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		previous = report.Status

		next, err := decide(&report)
		if err != nil {
			decideErr = err
			return err
		}

		if next == previous {
			return nil
		}
		if err := tx.Model(&models.Report{}).Where("id = ?", id).Update("status", next).Error; err != nil {
			return models.NewInternalError(err)
		}
		report.Status = next

		// Content stays hidden while any report on it is upheld.
		disabled := models.HidesContent(next)
		if !disabled {
			target := report.Target()
			var upheld int64
			err := tx.Model(&models.Report{}).
				Where(targetColumn(target)+" = ? AND status = ? AND id <> ?", target.ID(), models.ReportAccepted, id).
				Count(&upheld).Error
			if err != nil {
				return models.NewInternalError(err)
			}
			disabled = upheld > 0
		}
		switch {
		case report.QuestionID != nil:
			if err := tx.Model(&models.Question{}).Where("id = ?", *report.QuestionID).Update("is_disabled", disabled).Error; err != nil {
				return models.NewInternalError(err)
			}
			if report.Question != nil {
				report.Question.IsDisabled = disabled
			}
		case report.AnswerID != nil:
			if err := tx.Model(&models.Answer{}).Where("id = ?", *report.AnswerID).Update("is_disabled", disabled).Error; err != nil {
				return models.NewInternalError(err)
			}
			if report.Answer != nil {
				report.Answer.IsDisabled = disabled
			}
		}
		return nil
	})
	if decideErr != nil {
		return nil, "", decideErr
	}
	if err != nil {
		return nil, "", err
	}
	return &report, previous, nil
}

func (r *reportRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Report{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Report", id)
	}
	return nil
}

func (query ReportQuery) filter(db *gorm.DB) *gorm.DB {
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if s := strings.TrimSpace(query.Search); s != "" {
		db = db.Where(`LOWER(reason) LIKE ? ESCAPE '\'`, likePattern(s))
	}
	return db
}

func (r *reportRepository) List(ctx context.Context, query ReportQuery) ([]models.Report, int64, error) {
	base := readDB(r.db).WithContext(ctx)

	var total int64
	if err := base.Model(&models.Report{}).Scopes(query.filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := "reported_at DESC, id DESC"
	if query.SortAsc {
		order = "reported_at ASC, id ASC"
	}

	var reports []models.Report
	err := base.Scopes(query.filter, query.Page.apply, preloadReport).Order(order).Find(&reports).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reports, total, nil
}
