package service

import (
	"context"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/observability"
	"qaforum/internal/repository"
)

type AnswerService struct {
	answers   repository.AnswerRepository
	questions repository.QuestionRepository
	users     repository.UserRepository
	notes     *NotificationService
	images    *ImageService
	pub       notifications.Publisher
}

type PostAnswerInput struct {
	UserID     uint
	QuestionID uint
	Content    string
	Image      *UploadImageInput
}

type UpdateAnswerInput struct {
	UserID   uint
	AnswerID uint
	Content  string
	Image    *UploadImageInput
}

type answerPosted struct {
	AnswerID   uint   `json:"answer_id"`
	QuestionID uint   `json:"question_id"`
	Username   string `json:"username"`
	Content    string `json:"content"`
}

type answerDeleted struct {
	AnswerID uint `json:"answer_id"`
}

func NewAnswerService(
	answers repository.AnswerRepository,
	questions repository.QuestionRepository,
	users repository.UserRepository,
	notes *NotificationService,
	images *ImageService,
	pub notifications.Publisher,
) *AnswerService {
	return &AnswerService{
		answers:   answers,
		questions: questions,
		users:     users,
		notes:     notes,
		images:    images,
		pub:       pub,
	}
}

// Post stores an answer, notifies the question owner and pushes the answer
// to everyone watching the question.
func (s *AnswerService) Post(ctx context.Context, in PostAnswerInput) (_ *models.Answer, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "answer.post")
	defer span.End(&err)

	clean := CleanText(in.Content)
	if clean == "" {
		return nil, models.NewValidationError("Answer content is required")
	}
	author, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	question, err := s.questions.GetByID(ctx, in.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.IsDisabled {
		return nil, models.NewForbiddenError("This question is disabled")
	}
	imageURL, err := storeImage(ctx, s.images, in.UserID, ImagePurposeAnswer, in.Image)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		QuestionID: question.ID,
		UserID:     author.ID,
		Content:    in.Content,
		ImageURL:   imageURL,
	}
	if err := s.answers.Create(ctx, answer); err != nil {
		return nil, err
	}
	answer.User = author

	if s.notes != nil {
		if _, err := s.notes.NotifyOnAnswer(ctx, question, author, answer, clean); err != nil {
			observability.LogAsyncOperationError(ctx, "notification.answer", err)
		}
	}
	publish(ctx, s.pub, notifications.QuestionGroup(question.ID), notifications.EventAnswer, answerPosted{
		AnswerID:   answer.ID,
		QuestionID: question.ID,
		Username:   author.Username,
		Content:    answer.Content,
	})
	return answer, nil
}

func (s *AnswerService) ownedAnswer(ctx context.Context, userID, id uint) (*models.Answer, error) {
	a, err := s.answers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, models.NewForbiddenError("You can only change your own answers")
	}
	return a, nil
}

func (s *AnswerService) Update(ctx context.Context, in UpdateAnswerInput) (*models.Answer, error) {
	if CleanText(in.Content) == "" {
		return nil, models.NewValidationError("Answer content is required")
	}
	a, err := s.ownedAnswer(ctx, in.UserID, in.AnswerID)
	if err != nil {
		return nil, err
	}
	imageURL, err := storeImage(ctx, s.images, in.UserID, ImagePurposeAnswer, in.Image)
	if err != nil {
		return nil, err
	}
	a.Content = in.Content
	if imageURL != "" {
		a.ImageURL = imageURL
	}
	if err := s.answers.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnswerService) Delete(ctx context.Context, actorID, id uint) error {
	a, err := s.ownedAnswer(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.answers.DeleteCascade(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.pub, notifications.QuestionGroup(a.QuestionID), notifications.EventAnswerDeleted, answerDeleted{AnswerID: id})
	return nil
}
