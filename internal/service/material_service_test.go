package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/repository"
	"qaforum/internal/storage"
	"qaforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type materialFixture struct {
	db    *gorm.DB
	svc   *MaterialService
	store *storage.DiskStore
	pub   *testutil.RecordingPublisher
}

func newMaterialFixture(t *testing.T) *materialFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	store := storage.NewDiskStore(t.TempDir(), "/uploads")
	pub := &testutil.RecordingPublisher{}
	return &materialFixture{
		db:    db,
		store: store,
		pub:   pub,
		svc: NewMaterialService(
			repository.NewMaterialRepository(db),
			repository.NewUserRepository(db),
			store,
			pub,
		),
	}
}

func (f *materialFixture) add(t *testing.T, userID uint, title string) *models.Material {
	t.Helper()
	m, err := f.svc.Add(context.Background(), AddMaterialInput{
		UserID:      userID,
		Title:       title,
		Description: title + " notes",
		Filename:    "My Notes (v2).pdf",
		Content:     []byte("%PDF-1.4 study notes"),
	})
	require.NoError(t, err)
	return m
}

func TestMaterialService_AddValidation(t *testing.T) {
	f := newMaterialFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	valid := func() AddMaterialInput {
		return AddMaterialInput{UserID: author.ID, Title: "t", Description: "d", Filename: "a.txt", Content: []byte("x")}
	}

	tests := []struct {
		name   string
		mutate func(*AddMaterialInput)
	}{
		{"missing title", func(in *AddMaterialInput) { in.Title = "" }},
		{"blank title", func(in *AddMaterialInput) { in.Title = "   " }},
		{"long title", func(in *AddMaterialInput) { in.Title = strings.Repeat("t", 101) }},
		{"missing description", func(in *AddMaterialInput) { in.Description = "" }},
		{"long description", func(in *AddMaterialInput) { in.Description = strings.Repeat("d", 501) }},
		{"missing file", func(in *AddMaterialInput) { in.Content = nil }},
		{"oversized file", func(in *AddMaterialInput) { in.Content = make([]byte, MaxMaterialSizeBytes+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.svc.Add(context.Background(), in)
			assertValidationError(t, err)
		})
	}
	assert.Empty(t, f.pub.Events())
}

func TestMaterialService_AddStoresFile(t *testing.T) {
	f := newMaterialFixture(t)
	author := testutil.CreateUser(t, f.db, "author")

	m := f.add(t, author.ID, "Concurrency cheatsheet")
	assert.NotZero(t, m.ID)
	assert.Zero(t, m.Downloads)
	require.NotNil(t, m.UserID)
	assert.Equal(t, author.ID, *m.UserID)
	assert.True(t, strings.HasPrefix(m.StorageKey, "materials/"))
	assert.True(t, strings.HasSuffix(m.StorageKey, "_My_Notes_v2.pdf"), m.StorageKey)
	assert.Equal(t, "/uploads/"+m.StorageKey, m.FileLink)

	data, err := os.ReadFile(filepath.Join(f.store.Root(), filepath.FromSlash(m.StorageKey)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 study notes", string(data))

	events := f.pub.Named(notifications.EventMaterialUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, notifications.AllGroup, events[0].Group)
	assert.Contains(t, string(events[0].Payload), `"action":"added"`)
}

func TestMaterialService_AddUnknownUser(t *testing.T) {
	f := newMaterialFixture(t)
	_, err := f.svc.Add(context.Background(), AddMaterialInput{
		UserID: 404, Title: "t", Description: "d", Filename: "a.txt", Content: []byte("x"),
	})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestMaterialService_RecordDownload(t *testing.T) {
	f := newMaterialFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	m := f.add(t, author.ID, "Guide")
	f.pub.Reset()

	for i := 1; i <= 3; i++ {
		got, err := f.svc.RecordDownload(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.Downloads)
		assert.Equal(t, m.FileLink, got.FileLink)
	}
	events := f.pub.Named(notifications.EventMaterialUpdate)
	require.Len(t, events, 3)
	assert.JSONEq(t, fmt.Sprintf(`{"action":"downloaded","material_id":%d,"downloads":3}`, m.ID), string(events[2].Payload))

	_, err := f.svc.RecordDownload(context.Background(), 999)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestMaterialService_ListAndSearch(t *testing.T) {
	f := newMaterialFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	for _, title := range []string{"Go channels", "SQL joins", "Go generics"} {
		f.add(t, author.ID, title)
	}

	page, err := f.svc.List(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaterialPageSize, page.PageSize)

	page, err = f.svc.List(context.Background(), 1, "  go ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "go", page.Search)

	page, err = f.svc.List(context.Background(), 5, "")
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)

	mine, err := f.svc.ListByUser(context.Background(), author.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestMaterialService_Delete(t *testing.T) {
	f := newMaterialFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	other := testutil.CreateUser(t, f.db, "other")
	admin := testutil.CreateUser(t, f.db, "boss", testutil.Admin)
	ctx := context.Background()

	first := f.add(t, owner.ID, "first")
	second := f.add(t, owner.ID, "second")

	assertAppErrorCode(t, f.svc.Delete(ctx, other.ID, first.ID), models.CodeForbidden)

	require.NoError(t, f.svc.Delete(ctx, owner.ID, first.ID))
	_, err := os.Stat(filepath.Join(f.store.Root(), filepath.FromSlash(first.StorageKey)))
	assert.True(t, os.IsNotExist(err), "stored file is removed")
	_, err = f.svc.Get(ctx, first.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	require.NoError(t, f.svc.Delete(ctx, admin.ID, second.ID))
	assertAppErrorCode(t, f.svc.Delete(ctx, admin.ID, second.ID), models.CodeNotFound)
}
