package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/repository"
	"qaforum/internal/storage"
	"qaforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserServiceOnDB(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	images := NewImageService(storage.NewDiskStore(t.TempDir(), "/uploads"), nil)
	return NewUserService(
		repository.NewUserRepository(db),
		repository.NewQuestionRepository(db),
		repository.NewAnswerRepository(db),
		repository.NewVoteRepository(db),
		repository.NewMaterialRepository(db),
		images,
	), db
}

func TestUserService_Me(t *testing.T) {
	svc, db := newUserServiceOnDB(t)
	ctx := context.Background()
	me := testutil.CreateUser(t, db, "me")
	other := testutil.CreateUser(t, db, "other")

	base := time.Now().Add(-time.Hour)
	visible := testutil.CreateQuestion(t, db, me.ID, "Visible question")
	hidden := testutil.CreateQuestion(t, db, me.ID, "Hidden question")
	require.NoError(t, db.Model(hidden).Update("is_disabled", true).Error)
	require.NoError(t, db.Model(visible).Update("created_at", base).Error)

	theirs := testutil.CreateQuestion(t, db, other.ID, "Their question")
	answer := testutil.CreateAnswer(t, db, theirs.ID, me.ID, "<p>"+strings.Repeat("a", 60)+"</p>")
	require.NoError(t, db.Model(answer).Update("created_at", base.Add(time.Minute)).Error)

	qid := theirs.ID
	require.NoError(t, db.Create(&models.Vote{UserID: me.ID, QuestionID: &qid, VoteType: 1}).Error)

	profile, err := svc.Me(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, me.ID, profile.User.ID)
	require.Len(t, profile.Questions, 1, "disabled questions are left out")
	assert.Equal(t, visible.ID, profile.Questions[0].ID)

	require.Len(t, profile.Activity, 3)
	assert.Equal(t, ActivityVote, profile.Activity[0].Type)
	assert.Equal(t, "Voted on question: Their question", profile.Activity[0].Content)
	assert.Equal(t, theirs.ID, profile.Activity[0].QuestionID)
	assert.Equal(t, ActivityAnswer, profile.Activity[1].Type)
	assert.Equal(t, strings.Repeat("a", 50)+"...", profile.Activity[1].Content)
	assert.Equal(t, ActivityQuestion, profile.Activity[2].Type)
}

func TestUserService_UpdateProfile(t *testing.T) {
	svc, db := newUserServiceOnDB(t)
	ctx := context.Background()
	me := testutil.CreateUser(t, db, "me")
	testutil.CreateUser(t, db, "taken")

	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{UserID: me.ID, Email: "  "})
	assertValidationMessage(t, err, "Email is required.")

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: me.ID, Email: "not-an-email"})
	assertValidationError(t, err)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: me.ID, Email: "taken@example.com"})
	assertAppErrorCode(t, err, models.CodeConflict)

	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID: me.ID,
		Email:  "new@example.com",
		Avatar: &UploadImageInput{ContentType: "image/png", Content: testutil.TinyPNG(t, 16, 16)},
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Contains(t, updated.AvatarURL, "/uploads/images/avatars/")

	var stored models.User
	require.NoError(t, db.First(&stored, me.ID).Error)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.NotEmpty(t, stored.Password, "profile updates never touch the password hash")
}

func TestUserService_Public(t *testing.T) {
	svc, db := newUserServiceOnDB(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	uid := author.ID

	for i, downloads := range []int{3, 0, 5, 1, 2} {
		require.NoError(t, db.Create(&models.Material{
			Title:       "Material " + string(rune('A'+i)),
			Description: "d",
			FileLink:    "/uploads/m",
			Downloads:   downloads,
			UserID:      &uid,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	testutil.CreateQuestion(t, db, author.ID, "Public question")

	profile, err := svc.Public(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "author", profile.User.Username)
	assert.Len(t, profile.Materials, ProfileMaterialLimit)
	assert.Equal(t, "Material E", profile.Materials[0].Title)
	assert.Equal(t, int64(5), profile.MaterialCount)
	assert.Equal(t, int64(11), profile.TotalDownloads)
	assert.Len(t, profile.Questions, 1)

	_, err = svc.Public(ctx, 9999)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
