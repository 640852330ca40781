package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertAppErrorCode asserts that err is an AppError carrying code.
func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertValidationMessage(t *testing.T, err error, msg string) {
	t.Helper()
	assertValidationError(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, msg, appErr.Message)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	getByLoginFn     func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	setLockedFn      func(context.Context, uint, *time.Time) error
	setRolesFn       func(context.Context, uint, bool, bool) error
	listFn           func(context.Context, string, repository.Page) ([]models.User, int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.getByLoginFn(ctx, login)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error { return s.updateFn(ctx, u) }
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) SetLockedUntil(ctx context.Context, id uint, until *time.Time) error {
	return s.setLockedFn(ctx, id, until)
}
func (s *userRepoStub) SetRoles(ctx context.Context, id uint, isAdmin, isModerator bool) error {
	return s.setRolesFn(ctx, id, isAdmin, isModerator)
}
func (s *userRepoStub) List(ctx context.Context, search string, page repository.Page) ([]models.User, int64, error) {
	return s.listFn(ctx, search, page)
}

// usersByID serves GetByID from a fixed set.
func usersByID(users ...*models.User) *userRepoStub {
	byID := map[uint]*models.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	find := func(match func(*models.User) bool) (*models.User, error) {
		for _, u := range byID {
			if match(u) {
				return u, nil
			}
		}
		return nil, nil
	}
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			if u, ok := byID[id]; ok {
				return u, nil
			}
			return nil, models.NewNotFoundError("User", id)
		},
		getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
			return find(func(u *models.User) bool { return u.Email == email })
		},
		getByUsernameFn: func(_ context.Context, name string) (*models.User, error) {
			return find(func(u *models.User) bool { return u.Username == name })
		},
		getByLoginFn: func(_ context.Context, login string) (*models.User, error) {
			return find(func(u *models.User) bool { return u.Username == login || u.Email == login })
		},
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		setLockedFn:      func(_ context.Context, _ uint, _ *time.Time) error { return nil },
		setRolesFn:       func(_ context.Context, _ uint, _, _ bool) error { return nil },
		listFn: func(_ context.Context, _ string, _ repository.Page) ([]models.User, int64, error) {
			return nil, 0, nil
		},
	}
}

// questionRepoStub is a stub for repository.QuestionRepository.
type questionRepoStub struct {
	createFn        func(context.Context, *models.Question, []string) error
	updateFn        func(context.Context, *models.Question, []string) error
	getByIDFn       func(context.Context, uint) (*models.Question, error)
	listFn          func(context.Context, repository.QuestionQuery) ([]models.Question, int64, error)
	listByUserFn    func(context.Context, uint, bool, int) ([]models.Question, error)
	deleteCascadeFn func(context.Context, uint) error
	listTagsFn      func(context.Context) ([]models.Tag, error)
}

func (s *questionRepoStub) Create(ctx context.Context, q *models.Question, tags []string) error {
	return s.createFn(ctx, q, tags)
}
func (s *questionRepoStub) Update(ctx context.Context, q *models.Question, tags []string) error {
	return s.updateFn(ctx, q, tags)
}
func (s *questionRepoStub) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	return s.getByIDFn(ctx, id)
}
func (s *questionRepoStub) List(ctx context.Context, q repository.QuestionQuery) ([]models.Question, int64, error) {
	return s.listFn(ctx, q)
}
func (s *questionRepoStub) ListByUser(ctx context.Context, userID uint, includeDisabled bool, limit int) ([]models.Question, error) {
	return s.listByUserFn(ctx, userID, includeDisabled, limit)
}
func (s *questionRepoStub) DeleteCascade(ctx context.Context, id uint) error {
	return s.deleteCascadeFn(ctx, id)
}
func (s *questionRepoStub) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.listTagsFn(ctx)
}

func questionsByID(questions ...*models.Question) *questionRepoStub {
	byID := map[uint]*models.Question{}
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &questionRepoStub{
		createFn: func(_ context.Context, q *models.Question, _ []string) error { q.ID = 100; return nil },
		updateFn: func(_ context.Context, _ *models.Question, _ []string) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Question, error) {
			if q, ok := byID[id]; ok {
				return q, nil
			}
			return nil, models.NewNotFoundError("Question", id)
		},
		listFn: func(_ context.Context, _ repository.QuestionQuery) ([]models.Question, int64, error) {
			return nil, 0, nil
		},
		listByUserFn:    func(_ context.Context, _ uint, _ bool, _ int) ([]models.Question, error) { return nil, nil },
		deleteCascadeFn: func(_ context.Context, _ uint) error { return nil },
		listTagsFn:      func(_ context.Context) ([]models.Tag, error) { return nil, nil },
	}
}

// answerRepoStub is a stub for repository.AnswerRepository.
type answerRepoStub struct {
	createFn         func(context.Context, *models.Answer) error
	updateFn         func(context.Context, *models.Answer) error
	getByIDFn        func(context.Context, uint) (*models.Answer, error)
	listByQuestionFn func(context.Context, uint, bool, repository.Page) ([]models.Answer, int64, error)
	recentFn         func(context.Context, []uint, int, bool) (map[uint][]models.Answer, error)
	listByUserFn     func(context.Context, uint, int) ([]models.Answer, error)
	deleteCascadeFn  func(context.Context, uint) error
}

func (s *answerRepoStub) Create(ctx context.Context, a *models.Answer) error { return s.createFn(ctx, a) }
func (s *answerRepoStub) Update(ctx context.Context, a *models.Answer) error { return s.updateFn(ctx, a) }
func (s *answerRepoStub) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	return s.getByIDFn(ctx, id)
}
func (s *answerRepoStub) ListByQuestion(ctx context.Context, questionID uint, includeDisabled bool, page repository.Page) ([]models.Answer, int64, error) {
	return s.listByQuestionFn(ctx, questionID, includeDisabled, page)
}
func (s *answerRepoStub) RecentByQuestions(ctx context.Context, ids []uint, per int, includeDisabled bool) (map[uint][]models.Answer, error) {
	return s.recentFn(ctx, ids, per, includeDisabled)
}
func (s *answerRepoStub) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Answer, error) {
	return s.listByUserFn(ctx, userID, limit)
}
func (s *answerRepoStub) DeleteCascade(ctx context.Context, id uint) error {
	return s.deleteCascadeFn(ctx, id)
}

func answersByID(answers ...*models.Answer) *answerRepoStub {
	byID := map[uint]*models.Answer{}
	for _, a := range answers {
		byID[a.ID] = a
	}
	return &answerRepoStub{
		createFn: func(_ context.Context, a *models.Answer) error { a.ID = 200; return nil },
		updateFn: func(_ context.Context, _ *models.Answer) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Answer, error) {
			if a, ok := byID[id]; ok {
				return a, nil
			}
			return nil, models.NewNotFoundError("Answer", id)
		},
		listByQuestionFn: func(_ context.Context, _ uint, _ bool, _ repository.Page) ([]models.Answer, int64, error) {
			return nil, 0, nil
		},
		recentFn: func(_ context.Context, _ []uint, _ int, _ bool) (map[uint][]models.Answer, error) {
			return map[uint][]models.Answer{}, nil
		},
		listByUserFn:    func(_ context.Context, _ uint, _ int) ([]models.Answer, error) { return nil, nil },
		deleteCascadeFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// voteRepoStub keeps votes in memory and resolves them like the real
// repository.
type voteRepoStub struct {
	votes   map[string]int
	scores  map[uint]int
	castErr error
}

func newVoteRepoStub() *voteRepoStub {
	return &voteRepoStub{votes: map[string]int{}, scores: map[uint]int{}}
}

func voteKey(userID uint, t models.Target) string {
	return fmt.Sprintf("%s:%d:%d", t.Kind(), userID, t.ID())
}

func (s *voteRepoStub) Cast(_ context.Context, userID uint, t models.Target, requested int, resolve repository.VoteResolver) (int, int, error) {
	if s.castErr != nil {
		return 0, 0, s.castErr
	}
	key := voteKey(userID, t)
	var existing *int
	if v, ok := s.votes[key]; ok {
		existing = &v
	}
	stored := resolve(existing, requested)
	prev := 0
	if existing != nil {
		prev = *existing
	}
	s.votes[key] = stored
	s.scores[t.ID()] += stored - prev
	return stored, s.scores[t.ID()], nil
}
func (s *voteRepoStub) Score(_ context.Context, t models.Target) (int, error) {
	return s.scores[t.ID()], nil
}
func (s *voteRepoStub) QuestionScores(_ context.Context, ids []uint) (map[uint]int, error) {
	out := map[uint]int{}
	for _, id := range ids {
		out[id] = s.scores[id]
	}
	return out, nil
}
func (s *voteRepoStub) AnswerScores(ctx context.Context, ids []uint) (map[uint]int, error) {
	return s.QuestionScores(ctx, ids)
}
func (s *voteRepoStub) ListByUser(_ context.Context, _ uint, _ int) ([]models.Vote, error) {
	return nil, nil
}

// notificationRepoStub keeps notifications in memory.
type notificationRepoStub struct {
	items     map[uint]*models.Notification
	nextID    uint
	createErr error
}

func newNotificationRepoStub() *notificationRepoStub {
	return &notificationRepoStub{items: map[uint]*models.Notification{}}
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	s.items[n.ID] = &cp
	return nil
}
func (s *notificationRepoStub) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	n, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("Notification", id)
	}
	cp := *n
	return &cp, nil
}
func (s *notificationRepoStub) SetRead(_ context.Context, id uint, read bool) error {
	if n, ok := s.items[id]; ok {
		n.IsRead = read
	}
	return nil
}
func (s *notificationRepoStub) SetReadOwned(_ context.Context, userID uint, ids []uint, read bool) (int64, error) {
	var n int64
	for _, id := range ids {
		if item, ok := s.items[id]; ok && item.UserID == userID {
			item.IsRead = read
			n++
		}
	}
	return n, nil
}
func (s *notificationRepoStub) DeleteOwned(_ context.Context, userID uint, ids []uint) (int64, error) {
	var n int64
	for _, id := range ids {
		if item, ok := s.items[id]; ok && item.UserID == userID {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
func (s *notificationRepoStub) List(_ context.Context, userID uint, page repository.Page) ([]models.Notification, int64, error) {
	var out []models.Notification
	for id := s.nextID; id > 0; id-- {
		if item, ok := s.items[id]; ok && item.UserID == userID {
			out = append(out, *item)
		}
	}
	total := int64(len(out))
	if page.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[page.Offset:]
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, total, nil
}
func (s *notificationRepoStub) UnreadCount(_ context.Context, userID uint) (int64, error) {
	var n int64
	for _, item := range s.items {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}
func (s *notificationRepoStub) CountNewerOnQuestion(_ context.Context, userID, questionID uint, after time.Time) (int64, error) {
	var n int64
	for _, item := range s.items {
		if item.UserID == userID && item.QuestionID != nil && *item.QuestionID == questionID && item.CreatedAt.After(after) {
			n++
		}
	}
	return n, nil
}

func (s *notificationRepoStub) forUser(userID uint) []models.Notification {
	items, _, _ := s.List(context.Background(), userID, repository.Page{})
	return items
}

// reportRepoStub is a stub for repository.ReportRepository.
type reportRepoStub struct {
	createFn       func(context.Context, *models.Report) error
	existsFn       func(context.Context, uint, models.Target) (bool, error)
	getByIDFn      func(context.Context, uint) (*models.Report, error)
	changeStatusFn func(context.Context, uint, repository.StatusDecider) (*models.Report, models.ReportStatus, error)
	deleteFn       func(context.Context, uint) error
	listFn         func(context.Context, repository.ReportQuery) ([]models.Report, int64, error)
}

func (s *reportRepoStub) Create(ctx context.Context, r *models.Report) error { return s.createFn(ctx, r) }
func (s *reportRepoStub) Exists(ctx context.Context, userID uint, t models.Target) (bool, error) {
	return s.existsFn(ctx, userID, t)
}
func (s *reportRepoStub) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	return s.getByIDFn(ctx, id)
}
func (s *reportRepoStub) ChangeStatus(ctx context.Context, id uint, decide repository.StatusDecider) (*models.Report, models.ReportStatus, error) {
	return s.changeStatusFn(ctx, id, decide)
}
func (s *reportRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *reportRepoStub) List(ctx context.Context, q repository.ReportQuery) ([]models.Report, int64, error) {
	return s.listFn(ctx, q)
}

// reportsInMemory applies decisions to a single stored report the way the
// repository does.
func reportsInMemory(report *models.Report) *reportRepoStub {
	return &reportRepoStub{
		createFn: func(_ context.Context, r *models.Report) error { r.ID = 300; return nil },
		existsFn: func(_ context.Context, _ uint, _ models.Target) (bool, error) { return false, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Report, error) {
			if report == nil || report.ID != id {
				return nil, models.NewNotFoundError("Report", id)
			}
			return report, nil
		},
		changeStatusFn: func(_ context.Context, id uint, decide repository.StatusDecider) (*models.Report, models.ReportStatus, error) {
			if report == nil || report.ID != id {
				return nil, "", models.NewNotFoundError("Report", id)
			}
			prev := report.Status
			next, err := decide(report)
			if err != nil {
				return nil, "", err
			}
			if next == prev {
				return report, prev, nil
			}
			report.Status = next
			hidden := models.HidesContent(next)
			if report.Question != nil {
				report.Question.IsDisabled = hidden
			}
			if report.Answer != nil {
				report.Answer.IsDisabled = hidden
			}
			return report, prev, nil
		},
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		listFn: func(_ context.Context, _ repository.ReportQuery) ([]models.Report, int64, error) {
			return nil, 0, nil
		},
	}
}
