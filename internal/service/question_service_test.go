package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/repository"
	"qaforum/internal/storage"
	"qaforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"<p>&nbsp;</p>", ""},
		{"  &lt;tag&gt; &amp; more ", "<tag> & more"},
		{"<img src=x>", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), tt.in)
	}
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"go", "concurrency"}, ParseTags("go, Concurrency ,GO,, "))
	assert.Nil(t, ParseTags("  "))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"multibyte rune at the cut", strings.Repeat("a", 63) + "é", strings.Repeat("a", 63) + "é"},
		{"long vietnamese tag", strings.Repeat("ữ", 70), strings.Repeat("ữ", 64)},
		{"long ascii tag", strings.Repeat("b", 80), strings.Repeat("b", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.in)
			require.Len(t, got, 1)
			assert.True(t, utf8.ValidString(got[0]))
			assert.Equal(t, tt.want, got[0])
			assert.LessOrEqual(t, utf8.RuneCountInString(got[0]), maxTagLen)
		})
	}
}

func TestQuestionService_CreateValidation(t *testing.T) {
	svc := NewQuestionService(questionsByID(), answersByID(), newVoteRepoStub(), usersByID(), nil, nil)
	ctx := context.Background()

	long := make([]rune, maxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name string
		in   CreateQuestionInput
	}{
		{"missing title", CreateQuestionInput{UserID: 1, Content: "body"}},
		{"long title", CreateQuestionInput{UserID: 1, Title: string(long), Content: "body"}},
		{"markup only content", CreateQuestionInput{UserID: 1, Title: "t", Content: "<p>&nbsp;</p>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestQuestionService_CreateWithTagsAndImage(t *testing.T) {
	repo := questionsByID()
	var gotTags []string
	repo.createFn = func(_ context.Context, q *models.Question, tags []string) error {
		q.ID = 7
		gotTags = tags
		return nil
	}
	images := NewImageService(storage.NewDiskStore(t.TempDir(), "/uploads"), nil)
	svc := NewQuestionService(repo, answersByID(), newVoteRepoStub(), usersByID(), images, nil)

	q, err := svc.Create(context.Background(), CreateQuestionInput{
		UserID:  1,
		Title:   "  Why does my channel block?  ",
		Content: "<p>code</p>",
		Tags:    "Go, channels",
		Image:   &UploadImageInput{ContentType: "image/png", Content: testutil.TinyPNG(t, 8, 8)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Why does my channel block?", q.Title)
	assert.Equal(t, []string{"go", "channels"}, gotTags)
	assert.Contains(t, q.ImageURL, "/uploads/images/questions/")
}

func TestQuestionService_UpdateAndDeleteOwnership(t *testing.T) {
	q := &models.Question{ID: 10, UserID: 1, Title: "t", Content: "c"}
	repo := questionsByID(q)
	deleted := uint(0)
	repo.deleteCascadeFn = func(_ context.Context, id uint) error { deleted = id; return nil }
	pub := &testutil.RecordingPublisher{}
	svc := NewQuestionService(repo, answersByID(), newVoteRepoStub(), usersByID(), nil, pub)
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdateQuestionInput{UserID: 2, QuestionID: 10, Title: "x", Content: "y"})
	assertAppErrorCode(t, err, models.CodeForbidden)
	_, err = svc.Update(ctx, UpdateQuestionInput{UserID: 1, QuestionID: 99, Title: "x", Content: "y"})
	assertAppErrorCode(t, err, models.CodeNotFound)

	updated, err := svc.Update(ctx, UpdateQuestionInput{UserID: 1, QuestionID: 10, Title: "new", Content: "body", Tags: "a"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)

	assertAppErrorCode(t, svc.Delete(ctx, 2, 10), models.CodeForbidden)
	assert.Zero(t, deleted)

	require.NoError(t, svc.Delete(ctx, 1, 10))
	assert.Equal(t, uint(10), deleted)
	events := pub.Named(notifications.EventQuestionDelete)
	require.Len(t, events, 2)
	assert.Equal(t, notifications.QuestionGroup(10), events[0].Group)
	assert.Equal(t, notifications.AllGroup, events[1].Group)
	assert.JSONEq(t, `{"question_id":10}`, string(events[0].Payload))
}

func TestQuestionService_ListHidesDisabledFromRegularViewers(t *testing.T) {
	repo := questionsByID()
	var got repository.QuestionQuery
	repo.listFn = func(_ context.Context, q repository.QuestionQuery) ([]models.Question, int64, error) {
		got = q
		return []models.Question{{ID: 1}, {ID: 2}}, 2, nil
	}
	answers := answersByID()
	answers.recentFn = func(_ context.Context, ids []uint, per int, _ bool) (map[uint][]models.Answer, error) {
		assert.Equal(t, []uint{1, 2}, ids)
		assert.Equal(t, RecentAnswersPerQuestion, per)
		return map[uint][]models.Answer{1: {{ID: 9, QuestionID: 1}}}, nil
	}
	votes := newVoteRepoStub()
	votes.scores[2] = 3
	users := usersByID(&models.User{ID: 1}, &models.User{ID: 5, IsModerator: true})
	svc := NewQuestionService(repo, answers, votes, users, nil, nil)
	ctx := context.Background()

	page, err := svc.List(ctx, QuestionFilter{Keyword: "go", Page: 2})
	require.NoError(t, err)
	assert.False(t, got.IncludeDisabled)
	assert.Equal(t, "go", got.Keyword)
	assert.Equal(t, repository.Page{Limit: QuestionPageSize, Offset: QuestionPageSize}, got.Page)
	require.Len(t, page.Items, 2)
	assert.Len(t, page.Items[0].RecentAnswers, 1)
	assert.NotNil(t, page.Items[1].RecentAnswers)
	assert.Equal(t, 3, page.Items[1].Score)

	_, err = svc.List(ctx, QuestionFilter{ViewerID: 1})
	require.NoError(t, err)
	assert.False(t, got.IncludeDisabled)

	_, err = svc.List(ctx, QuestionFilter{ViewerID: 5})
	require.NoError(t, err)
	assert.True(t, got.IncludeDisabled)
}

func TestQuestionService_Details(t *testing.T) {
	q := &models.Question{ID: 10, UserID: 1, Title: "t", IsDisabled: true}
	answers := answersByID()
	var includeDisabled bool
	answers.listByQuestionFn = func(_ context.Context, qid uint, inc bool, page repository.Page) ([]models.Answer, int64, error) {
		includeDisabled = inc
		assert.Equal(t, repository.Page{Limit: AnswerPageSize}, page)
		return []models.Answer{{ID: 21, QuestionID: qid}, {ID: 22, QuestionID: qid}}, 7, nil
	}
	votes := newVoteRepoStub()
	votes.scores[10] = 4
	votes.scores[21] = -1
	svc := NewQuestionService(questionsByID(q), answers, votes, usersByID(&models.User{ID: 3, IsAdmin: true}), nil, nil)
	ctx := context.Background()

	d, err := svc.Details(ctx, 10, 0, 0)
	require.NoError(t, err)
	assert.True(t, d.Question.IsDisabled, "disabled questions stay addressable")
	assert.Equal(t, 4, d.Score)
	assert.Equal(t, map[uint]int{21: -1, 22: 0}, d.AnswerScores)
	assert.Equal(t, int64(7), d.AnswerTotal)
	assert.Equal(t, 1, d.AnswerPage)
	assert.False(t, includeDisabled)

	_, err = svc.Details(ctx, 10, 3, 1)
	require.NoError(t, err)
	assert.True(t, includeDisabled)

	_, err = svc.Details(ctx, 99, 0, 1)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
