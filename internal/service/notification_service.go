package service

import (
	"context"
	"fmt"
	"strings"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/repository"
)

// Bulk mark modes.
const (
	MarkModeRead   = "read"
	MarkModeUnread = "unread"
)

// NotificationService persists notifications and pushes NewNotification
// events to the recipient's personal group.
type NotificationService struct {
	repo repository.NotificationRepository
	pub  notifications.Publisher
}

// NotificationPage is a listing plus the unread badge count.
type NotificationPage struct {
	Items       []models.Notification `json:"items"`
	Total       int64                 `json:"total"`
	UnreadCount int64                 `json:"unread_count"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
}

type notificationEvent struct {
	Notification *models.Notification `json:"notification,omitempty"`
	UnreadCount  int64                `json:"unread_count"`
}

func NewNotificationService(repo repository.NotificationRepository, pub notifications.Publisher) *NotificationService {
	return &NotificationService{repo: repo, pub: pub}
}

// FormatAnswerMessage builds the text shown to a question owner.
func FormatAnswerMessage(username, clean string) string {
	return fmt.Sprintf("%s commented \"%s\".", username, clean)
}

// NotifyOnAnswer tells the question owner about a new answer. Answering your
// own question creates nothing and returns nil.
func (s *NotificationService) NotifyOnAnswer(ctx context.Context, question *models.Question, answerer *models.User, answer *models.Answer, clean string) (*models.Notification, error) {
	if question == nil || answerer == nil || answer == nil {
		return nil, models.NewValidationError("Missing question, answer or author.")
	}
	if question.UserID == answerer.ID {
		return nil, nil
	}

	qid, aid := question.ID, answer.ID
	n := &models.Notification{
		UserID:     question.UserID,
		Type:       models.NotificationCommentOnQuestion,
		QuestionID: &qid,
		AnswerID:   &aid,
		Message:    FormatAnswerMessage(answerer.Username, clean),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.pushCreated(ctx, n)
	return n, nil
}

// NotifyStatusChanged records a moderation outcome for the content owner.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, ownerID uint, target models.Target, questionID uint, message string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  ownerID,
		Type:    models.NotificationReportStatusChanged,
		Message: message,
	}
	if questionID != 0 {
		n.QuestionID = &questionID
	}
	if !target.IsQuestion() {
		aid := target.ID()
		n.AnswerID = &aid
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.pushCreated(ctx, n)
	return n, nil
}

func (s *NotificationService) pushCreated(ctx context.Context, n *models.Notification) {
	unread, err := s.repo.UnreadCount(ctx, n.UserID)
	if err != nil {
		unread = -1
	}
	publish(ctx, s.pub, notifications.UserGroup(n.UserID), notifications.EventNotification, notificationEvent{
		Notification: n,
		UnreadCount:  unread,
	})
}

// pushCount refreshes the recipient's badge after a mutation.
func (s *NotificationService) pushCount(ctx context.Context, userID uint) {
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return
	}
	publish(ctx, s.pub, notifications.UserGroup(userID), notifications.EventNotification, notificationEvent{UnreadCount: unread})
}

func (s *NotificationService) list(ctx context.Context, userID uint, page, size int) (*NotificationPage, error) {
	page = pageOrFirst(page)
	items, total, err := s.repo.List(ctx, userID, repository.NewPage(page, size))
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{Items: items, Total: total, UnreadCount: unread, Page: page, PageSize: size}, nil
}

// List returns the user's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, page int) (*NotificationPage, error) {
	return s.list(ctx, userID, page, NotificationPageSize)
}

// Summary returns the latest notifications for the header widget.
func (s *NotificationService) Summary(ctx context.Context, userID uint) (*NotificationPage, error) {
	return s.list(ctx, userID, 1, NotificationSummarySize)
}

func (s *NotificationService) owned(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, models.NewForbiddenError("You can only manage your own notifications.")
	}
	return n, nil
}

// MarkRead marks one notification read and returns the answers page of
// the linked question on which the triggering answer appears (1 when the
// notification has no question).
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (int, error) {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if !n.IsRead {
		if err := s.repo.SetRead(ctx, id, true); err != nil {
			return 0, err
		}
	}
	s.pushCount(ctx, userID)
	if n.QuestionID == nil {
		return 1, nil
	}
	newer, err := s.repo.CountNewerOnQuestion(ctx, userID, *n.QuestionID, n.CreatedAt)
	if err != nil {
		return 0, err
	}
	return int(newer)/AnswerPageSize + 1, nil
}

func (s *NotificationService) MarkUnread(ctx context.Context, userID, id uint) error {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		if err := s.repo.SetRead(ctx, id, false); err != nil {
			return err
		}
	}
	s.pushCount(ctx, userID)
	return nil
}

// BulkMark updates the rows among ids that belong to userID and returns how
// many changed.
func (s *NotificationService) BulkMark(ctx context.Context, userID uint, ids []uint, mode string) (int64, error) {
	var read bool
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case MarkModeRead:
		read = true
	case MarkModeUnread:
		read = false
	default:
		return 0, models.NewValidationError("Mode must be \"read\" or \"unread\".")
	}
	if len(ids) == 0 {
		return 0, models.NewValidationError("No notifications selected.")
	}
	n, err := s.repo.SetReadOwned(ctx, userID, ids, read)
	if err != nil {
		return 0, err
	}
	s.pushCount(ctx, userID)
	return n, nil
}

// Delete removes the rows among ids that belong to userID.
func (s *NotificationService) Delete(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, models.NewValidationError("No notifications selected.")
	}
	n, err := s.repo.DeleteOwned(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	s.pushCount(ctx, userID)
	return n, nil
}
