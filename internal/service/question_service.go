package service

import (
	"context"
	"fmt"
	"strings"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/observability"
	"qaforum/internal/repository"
)

const maxTitleLen = 200

type QuestionService struct {
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	votes     repository.VoteRepository
	users     repository.UserRepository
	images    *ImageService
	pub       notifications.Publisher
}

type CreateQuestionInput struct {
	UserID  uint
	Title   string
	Content string
	Tags    string
	Image   *UploadImageInput
}

type UpdateQuestionInput struct {
	UserID     uint
	QuestionID uint
	Title      string
	Content    string
	Tags       string
	Image      *UploadImageInput
}

// QuestionFilter drives the public question listing. ViewerID is 0 for
// anonymous visitors.
type QuestionFilter struct {
	Keyword  string
	Tag      string
	Username string
	SortAsc  bool
	Page     int
	ViewerID uint
}

// QuestionSummary is a listing row.
type QuestionSummary struct {
	models.Question
	Score         int             `json:"score"`
	RecentAnswers []models.Answer `json:"recent_answers"`
}

type QuestionPage struct {
	Items    []QuestionSummary `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type QuestionDetails struct {
	Question     *models.Question `json:"question"`
	Score        int              `json:"score"`
	Answers      []models.Answer  `json:"answers"`
	AnswerScores map[uint]int     `json:"answer_scores"`
	AnswerTotal  int64            `json:"answer_total"`
	AnswerPage   int              `json:"answer_page"`
	PageSize     int              `json:"page_size"`
}

type questionDeleted struct {
	QuestionID uint `json:"question_id"`
}

func NewQuestionService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	votes repository.VoteRepository,
	users repository.UserRepository,
	images *ImageService,
	pub notifications.Publisher,
) *QuestionService {
	return &QuestionService{
		questions: questions,
		answers:   answers,
		votes:     votes,
		users:     users,
		images:    images,
		pub:       pub,
	}
}

func validateQuestion(title, content string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewValidationError("Title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return "", models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	if CleanText(content) == "" {
		return "", models.NewValidationError("Content is required")
	}
	return title, nil
}

// storeImage uploads img when present and returns its public URL.
func storeImage(ctx context.Context, images *ImageService, userID uint, purpose string, img *UploadImageInput) (string, error) {
	if img == nil || len(img.Content) == 0 {
		return "", nil
	}
	if images == nil {
		return "", models.NewValidationError("Image uploads are not available")
	}
	in := *img
	in.UserID = userID
	in.Purpose = purpose
	stored, err := images.Upload(ctx, in)
	if err != nil {
		return "", err
	}
	return stored.URL, nil
}

func (s *QuestionService) Create(ctx context.Context, in CreateQuestionInput) (_ *models.Question, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "question.create")
	defer span.End(&err)

	title, err := validateQuestion(in.Title, in.Content)
	if err != nil {
		return nil, err
	}
	imageURL, err := storeImage(ctx, s.images, in.UserID, ImagePurposeQuestion, in.Image)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		UserID:   in.UserID,
		Title:    title,
		Content:  in.Content,
		ImageURL: imageURL,
	}
	if err := s.questions.Create(ctx, q, ParseTags(in.Tags)); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) ownedQuestion(ctx context.Context, userID, id uint) (*models.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		return nil, models.NewForbiddenError("You can only change your own questions")
	}
	return q, nil
}

func (s *QuestionService) Update(ctx context.Context, in UpdateQuestionInput) (*models.Question, error) {
	q, err := s.ownedQuestion(ctx, in.UserID, in.QuestionID)
	if err != nil {
		return nil, err
	}
	title, err := validateQuestion(in.Title, in.Content)
	if err != nil {
		return nil, err
	}
	imageURL, err := storeImage(ctx, s.images, in.UserID, ImagePurposeQuestion, in.Image)
	if err != nil {
		return nil, err
	}

	q.Title = title
	q.Content = in.Content
	if imageURL != "" {
		q.ImageURL = imageURL
	}
	if err := s.questions.Update(ctx, q, ParseTags(in.Tags)); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes the question and everything hanging off it.
func (s *QuestionService) Delete(ctx context.Context, actorID, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "service", "question.delete")
	defer span.End(&err)

	if _, err := s.ownedQuestion(ctx, actorID, id); err != nil {
		return err
	}
	if err := s.questions.DeleteCascade(ctx, id); err != nil {
		return err
	}
	payload := questionDeleted{QuestionID: id}
	publish(ctx, s.pub, notifications.QuestionGroup(id), notifications.EventQuestionDelete, payload)
	publish(ctx, s.pub, notifications.AllGroup, notifications.EventQuestionDelete, payload)
	return nil
}

// canSeeHidden reports whether viewerID may see disabled content.
func (s *QuestionService) canSeeHidden(ctx context.Context, viewerID uint) bool {
	return viewerCanModerate(ctx, s.users, viewerID)
}

func viewerCanModerate(ctx context.Context, users repository.UserRepository, viewerID uint) bool {
	if viewerID == 0 || users == nil {
		return false
	}
	u, err := users.GetByID(ctx, viewerID)
	if err != nil {
		return false
	}
	return u.CanModerate()
}

func (s *QuestionService) List(ctx context.Context, f QuestionFilter) (*QuestionPage, error) {
	page := pageOrFirst(f.Page)
	hidden := s.canSeeHidden(ctx, f.ViewerID)

	questions, total, err := s.questions.List(ctx, repository.QuestionQuery{
		Keyword:         f.Keyword,
		Tag:             f.Tag,
		Username:        f.Username,
		IncludeDisabled: hidden,
		SortAsc:         f.SortAsc,
		Page:            repository.NewPage(page, QuestionPageSize),
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	scores, err := s.votes.QuestionScores(ctx, ids)
	if err != nil {
		return nil, err
	}
	recent, err := s.answers.RecentByQuestions(ctx, ids, RecentAnswersPerQuestion, hidden)
	if err != nil {
		return nil, err
	}

	items := make([]QuestionSummary, 0, len(questions))
	for _, q := range questions {
		answers := recent[q.ID]
		if answers == nil {
			answers = []models.Answer{}
		}
		items = append(items, QuestionSummary{Question: q, Score: scores[q.ID], RecentAnswers: answers})
	}
	return &QuestionPage{Items: items, Total: total, Page: page, PageSize: QuestionPageSize}, nil
}

// Details returns one question with a page of its answers. A disabled
// question stays addressable by id.
func (s *QuestionService) Details(ctx context.Context, id, viewerID uint, answerPage int) (*QuestionDetails, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	answerPage = pageOrFirst(answerPage)
	hidden := s.canSeeHidden(ctx, viewerID)

	answers, total, err := s.answers.ListByQuestion(ctx, id, hidden, repository.NewPage(answerPage, AnswerPageSize))
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []models.Answer{}
	}
	score, err := s.votes.Score(ctx, models.QuestionTarget(id))
	if err != nil {
		return nil, err
	}
	answerIDs := make([]uint, 0, len(answers))
	for _, a := range answers {
		answerIDs = append(answerIDs, a.ID)
	}
	answerScores, err := s.votes.AnswerScores(ctx, answerIDs)
	if err != nil {
		return nil, err
	}

	return &QuestionDetails{
		Question:     q,
		Score:        score,
		Answers:      answers,
		AnswerScores: answerScores,
		AnswerTotal:  total,
		AnswerPage:   answerPage,
		PageSize:     AnswerPageSize,
	}, nil
}

func (s *QuestionService) Tags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.questions.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}
