package repository

import (
	"context"
	"testing"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRepository_CreateDuplicate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "u")
	q := testutil.CreateQuestion(t, db, u.ID, "q")

	first := &models.Report{UserID: u.ID, QuestionID: &q.ID, Reason: "spam", Status: models.ReportPending, ReportedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, first))

	exists, err := repo.Exists(ctx, u.ID, models.QuestionTarget(q.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	second := &models.Report{UserID: u.ID, QuestionID: &q.ID, Reason: "again", Status: models.ReportPending, ReportedAt: time.Now()}
	assert.ErrorIs(t, repo.Create(ctx, second), ErrDuplicateReport)

	exists, err = repo.Exists(ctx, u.ID, models.AnswerTarget(q.ID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReportRepository_ChangeStatus(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	reporter := testutil.CreateUser(t, db, "reporter")
	q := testutil.CreateQuestion(t, db, author.ID, "q")
	a := testutil.CreateAnswer(t, db, q.ID, author.ID, "a")

	qr := &models.Report{UserID: reporter.ID, QuestionID: &q.ID, Reason: "r", Status: models.ReportPending, ReportedAt: time.Now()}
	ar := &models.Report{UserID: reporter.ID, AnswerID: &a.ID, Reason: "r", Status: models.ReportPending, ReportedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, qr))
	require.NoError(t, repo.Create(ctx, ar))

	to := func(s models.ReportStatus) StatusDecider {
		return func(*models.Report) (models.ReportStatus, error) { return s, nil }
	}
	disabled := func(model any, id uint) bool {
		var flag bool
		require.NoError(t, db.Model(model).Where("id = ?", id).Select("is_disabled").Scan(&flag).Error)
		return flag
	}

	got, prev, err := repo.ChangeStatus(ctx, qr.ID, to(models.ReportAccepted))
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, prev)
	assert.Equal(t, models.ReportAccepted, got.Status)
	require.NotNil(t, got.Question)
	assert.True(t, got.Question.IsDisabled)
	require.NotNil(t, got.Question.User)
	assert.Equal(t, "author", got.Question.User.Username)
	assert.True(t, disabled(&models.Question{}, q.ID))

	_, prev, err = repo.ChangeStatus(ctx, qr.ID, to(models.ReportPending))
	require.NoError(t, err)
	assert.Equal(t, models.ReportAccepted, prev)
	assert.False(t, disabled(&models.Question{}, q.ID))

	got, _, err = repo.ChangeStatus(ctx, ar.ID, to(models.ReportDisabled))
	require.NoError(t, err)
	require.NotNil(t, got.Answer)
	require.NotNil(t, got.Answer.Question)
	assert.False(t, disabled(&models.Answer{}, a.ID))

	refusal := models.NewValidationError("not allowed")
	_, _, err = repo.ChangeStatus(ctx, ar.ID, func(*models.Report) (models.ReportStatus, error) { return "", refusal })
	assert.ErrorIs(t, err, refusal)

	stored, err := repo.GetByID(ctx, ar.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportDisabled, stored.Status, "refused change leaves the row untouched")

	_, _, err = repo.ChangeStatus(ctx, 999, to(models.ReportAccepted))
	assert.True(t, models.IsNotFound(err))
}

func TestReportRepository_UpheldReportKeepsTargetHidden(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	first := testutil.CreateUser(t, db, "first")
	second := testutil.CreateUser(t, db, "second")
	third := testutil.CreateUser(t, db, "third")
	q := testutil.CreateQuestion(t, db, author.ID, "q")
	a := testutil.CreateAnswer(t, db, q.ID, author.ID, "a")

	newReport := func(userID uint) *models.Report {
		r := &models.Report{UserID: userID, AnswerID: &a.ID, Reason: "abuse", Status: models.ReportPending, ReportedAt: time.Now()}
		require.NoError(t, repo.Create(ctx, r))
		return r
	}
	upheld, open, other := newReport(first.ID), newReport(second.ID), newReport(third.ID)

	to := func(s models.ReportStatus) StatusDecider {
		return func(*models.Report) (models.ReportStatus, error) { return s, nil }
	}
	hidden := func() bool {
		var flag bool
		require.NoError(t, db.Model(&models.Answer{}).Where("id = ?", a.ID).Select("is_disabled").Scan(&flag).Error)
		return flag
	}

	_, _, err := repo.ChangeStatus(ctx, upheld.ID, to(models.ReportAccepted))
	require.NoError(t, err)
	require.True(t, hidden())

	// Re-saving a pending report as Pending is a no-op.
	got, prev, err := repo.ChangeStatus(ctx, open.ID, to(models.ReportPending))
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, prev)
	assert.Equal(t, models.ReportPending, got.Status)
	assert.True(t, hidden())

	got, _, err = repo.ChangeStatus(ctx, open.ID, to(models.ReportDisabled))
	require.NoError(t, err)
	assert.Equal(t, models.ReportDisabled, got.Status)
	require.NotNil(t, got.Answer)
	assert.True(t, got.Answer.IsDisabled)
	assert.True(t, hidden(), "dismissing one report keeps content hidden by another accepted report")

	_, _, err = repo.ChangeStatus(ctx, open.ID, to(models.ReportPending))
	require.NoError(t, err)
	assert.True(t, hidden(), "reopening one report keeps content hidden by another accepted report")

	_, _, err = repo.ChangeStatus(ctx, upheld.ID, to(models.ReportPending))
	require.NoError(t, err)
	assert.False(t, hidden(), "no accepted report left on the answer")

	// Reports on other targets do not count.
	q2 := testutil.CreateQuestion(t, db, author.ID, "q2")
	elsewhere := &models.Report{UserID: first.ID, QuestionID: &q2.ID, Reason: "abuse", Status: models.ReportPending, ReportedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, elsewhere))
	_, _, err = repo.ChangeStatus(ctx, elsewhere.ID, to(models.ReportAccepted))
	require.NoError(t, err)
	_, _, err = repo.ChangeStatus(ctx, other.ID, to(models.ReportDisabled))
	require.NoError(t, err)
	assert.False(t, hidden())
}
