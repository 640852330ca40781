package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"qaforum/internal/database"
	"qaforum/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory database with the full schema.
// The pool is pinned to one connection so every query sees the same data.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:qaforum_test_%d?mode=memory&cache=private", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a unique username and email.
func CreateUser(t *testing.T, db *gorm.DB, username string, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderplace",
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Admin marks a fixture user as admin.
func Admin(u *models.User) { u.IsAdmin = true }

// Moderator marks a fixture user as moderator.
func Moderator(u *models.User) { u.IsModerator = true }

// CreateQuestion inserts a question owned by userID.
func CreateQuestion(t *testing.T, db *gorm.DB, userID uint, title string) *models.Question {
	t.Helper()
	q := &models.Question{UserID: userID, Title: title, Content: "<p>" + title + " body</p>"}
	require.NoError(t, db.Create(q).Error)
	return q
}

// CreateAnswer inserts an answer on questionID owned by userID.
func CreateAnswer(t *testing.T, db *gorm.DB, questionID, userID uint, content string) *models.Answer {
	t.Helper()
	a := &models.Answer{QuestionID: questionID, UserID: userID, Content: content}
	require.NoError(t, db.Create(a).Error)
	return a
}
