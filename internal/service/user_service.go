package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/repository"
	"qaforum/internal/validation"
)

// Activity kinds shown on a profile.
const (
	ActivityQuestion = "Question"
	ActivityAnswer   = "Answer"
	ActivityVote     = "Vote"
)

const activityExcerptLen = 50

type UserService struct {
	users     repository.UserRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	votes     repository.VoteRepository
	materials repository.MaterialRepository
	images    *ImageService
}

type UpdateProfileInput struct {
	UserID uint
	Email  string
	Avatar *UploadImageInput
}

// Activity is one entry of a user's recent activity feed. QuestionID is
// where the entry links to.
type Activity struct {
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	QuestionID uint      `json:"question_id"`
}

type Profile struct {
	User      *models.User      `json:"user"`
	Questions []models.Question `json:"questions"`
	Activity  []Activity        `json:"activity"`
}

type PublicProfile struct {
	User           models.UserSummary `json:"user"`
	Questions      []models.Question  `json:"questions"`
	Materials      []models.Material  `json:"materials"`
	MaterialCount  int64              `json:"material_count"`
	TotalDownloads int64              `json:"total_downloads"`
}

func NewUserService(
	users repository.UserRepository,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	votes repository.VoteRepository,
	materials repository.MaterialRepository,
	images *ImageService,
) *UserService {
	return &UserService{
		users:     users,
		questions: questions,
		answers:   answers,
		votes:     votes,
		materials: materials,
		images:    images,
	}
}

func excerpt(s string) string {
	s = CleanText(s)
	r := []rune(s)
	if len(r) <= activityExcerptLen {
		return s
	}
	return string(r[:activityExcerptLen]) + "..."
}

// Me returns the caller's profile: their latest visible questions and a
// merged feed of recent questions, answers and votes.
func (s *UserService) Me(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByUser(ctx, userID, false, ProfileQuestionLimit)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []models.Question{}
	}
	activity, err := s.recentActivity(ctx, userID, questions)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Questions: questions, Activity: activity}, nil
}

func (s *UserService) recentActivity(ctx context.Context, userID uint, questions []models.Question) ([]Activity, error) {
	feed := make([]Activity, 0, ProfileActivityLimit*3)
	for _, q := range questions {
		feed = append(feed, Activity{Type: ActivityQuestion, Content: q.Title, CreatedAt: q.CreatedAt, QuestionID: q.ID})
	}

	answers, err := s.answers.ListByUser(ctx, userID, ProfileActivityLimit)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if a.IsDisabled {
			continue
		}
		feed = append(feed, Activity{Type: ActivityAnswer, Content: excerpt(a.Content), CreatedAt: a.CreatedAt, QuestionID: a.QuestionID})
	}

	votes, err := s.votes.ListByUser(ctx, userID, ProfileActivityLimit)
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		entry, ok := s.voteActivity(ctx, v)
		if ok {
			feed = append(feed, entry)
		}
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].CreatedAt.After(feed[j].CreatedAt) })
	if len(feed) > ProfileActivityLimit {
		feed = feed[:ProfileActivityLimit]
	}
	return feed, nil
}

func (s *UserService) voteActivity(ctx context.Context, v models.Vote) (Activity, bool) {
	entry := Activity{Type: ActivityVote, CreatedAt: v.UpdatedAt}
	switch t := v.Target(); {
	case t.IsQuestion():
		q, err := s.questions.GetByID(ctx, t.ID())
		if err != nil {
			return entry, false
		}
		entry.Content = "Voted on question: " + q.Title
		entry.QuestionID = q.ID
	default:
		a, err := s.answers.GetByID(ctx, t.ID())
		if err != nil {
			return entry, false
		}
		entry.Content = "Voted on answer: " + excerpt(a.Content)
		entry.QuestionID = a.QuestionID
	}
	return entry, true
}

// UpdateProfile changes the email address and optionally the avatar.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	address := strings.TrimSpace(in.Email)
	if address == "" {
		return nil, models.NewValidationError("Email is required.")
	}
	if err := validation.ValidateEmail(address); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(address, user.Email) {
		other, err := s.users.GetByEmail(ctx, address)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != user.ID {
			return nil, models.NewConflictError("Email is already in use.")
		}
	}
	avatarURL, err := storeImage(ctx, s.images, user.ID, ImagePurposeAvatar, in.Avatar)
	if err != nil {
		return nil, err
	}

	user.Email = address
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Public returns the profile anyone may view.
func (s *UserService) Public(ctx context.Context, userID uint) (*PublicProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByUser(ctx, userID, false, ProfileQuestionLimit)
	if err != nil {
		return nil, err
	}
	materials, err := s.materials.ListByUser(ctx, userID, ProfileMaterialLimit)
	if err != nil {
		return nil, err
	}
	totals, err := s.materials.TotalsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []models.Question{}
	}
	if materials == nil {
		materials = []models.Material{}
	}
	return &PublicProfile{
		User:           user.Summary(),
		Questions:      questions,
		Materials:      materials,
		MaterialCount:  totals.Count,
		TotalDownloads: totals.Downloads,
	}, nil
}
