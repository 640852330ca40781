package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"qaforum/internal/email"
	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/observability"
	"qaforum/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const maxReasonLen = 500

// ModerationConfig selects the moderation build variant.
type ModerationConfig struct {
	AllowReopen         bool
	ModeratorsCanReview bool
}

// ModerationService runs the report lifecycle: submission, review and
// cancellation.
type ModerationService struct {
	reports   repository.ReportRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	users     repository.UserRepository
	notes     *NotificationService
	mail      email.Sender
	pub       notifications.Publisher
	cfg       ModerationConfig
	now       func() time.Time
}

type SubmitReportInput struct {
	UserID     uint
	QuestionID *uint
	AnswerID   *uint
	Reason     string
}

// SubmitReportResult carries the stored report. EmailError is set when the
// owner could not be emailed; the report is kept regardless.
type SubmitReportResult struct {
	Report     *models.Report
	EmailError error
}

type ChangeStatusInput struct {
	ActorID  uint
	ReportID uint
	Status   string
}

type ChangeStatusResult struct {
	Report     *models.Report
	Previous   models.ReportStatus
	Changed    bool
	EmailError error
}

// ReportFilter drives the moderation queue listing.
type ReportFilter struct {
	Status  string
	Search  string
	SortAsc bool
	Page    int
}

type ReportPage struct {
	Items    []models.Report `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type reportEvent struct {
	ReportID   uint                `json:"report_id"`
	QuestionID *uint               `json:"question_id,omitempty"`
	AnswerID   *uint               `json:"answer_id,omitempty"`
	Status     models.ReportStatus `json:"status"`
	Previous   models.ReportStatus `json:"previous,omitempty"`
}

func NewModerationService(
	reports repository.ReportRepository,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	users repository.UserRepository,
	notes *NotificationService,
	mail email.Sender,
	pub notifications.Publisher,
	cfg ModerationConfig,
) *ModerationService {
	return &ModerationService{
		reports:   reports,
		questions: questions,
		answers:   answers,
		users:     users,
		notes:     notes,
		mail:      mail,
		pub:       pub,
		cfg:       cfg,
		now:       time.Now,
	}
}

// reportedContent is the owner and display title of a report target.
type reportedContent struct {
	owner      *models.User
	kind       string
	title      string
	questionID uint
}

func (s *ModerationService) loadTarget(ctx context.Context, target models.Target) (*reportedContent, error) {
	if target.IsQuestion() {
		q, err := s.questions.GetByID(ctx, target.ID())
		if err != nil {
			return nil, err
		}
		return &reportedContent{owner: q.User, kind: "question", title: q.Title, questionID: q.ID}, nil
	}
	a, err := s.answers.GetByID(ctx, target.ID())
	if err != nil {
		return nil, err
	}
	c := &reportedContent{owner: a.User, kind: "answer", questionID: a.QuestionID}
	if a.Question != nil {
		c.title = a.Question.Title
	}
	return c, nil
}

func (s *ModerationService) SubmitReport(ctx context.Context, in SubmitReportInput) (_ *SubmitReportResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "moderation.submit")
	defer span.End(&err)

	target := models.Target{QuestionID: in.QuestionID, AnswerID: in.AnswerID}
	if !target.Valid() {
		return nil, models.NewValidationError("Must provide either questionId or answerId.")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, models.NewValidationError("Reason for reporting is required.")
	}
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return nil, models.NewValidationError("Reason is too long (max 500 characters).")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	content, err := s.loadTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	exists, err := s.reports.Exists(ctx, in.UserID, target)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("You have already reported this content.")
	}

	report := &models.Report{
		UserID:     in.UserID,
		QuestionID: target.QuestionID,
		AnswerID:   target.AnswerID,
		Reason:     reason,
		Status:     models.ReportPending,
		ReportedAt: s.now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicateReport) {
			return nil, models.NewValidationError("You have already reported this content.")
		}
		return nil, err
	}

	result := &SubmitReportResult{Report: report}
	if content.owner != nil {
		msg, renderErr := email.ReportFiled(content.owner, content.kind, content.title, reason)
		result.EmailError = s.deliver(ctx, msg, renderErr, "Report saved, but the owner could not be emailed.")
	}

	publish(ctx, s.pub, notifications.AllGroup, notifications.EventReport, reportEvent{
		ReportID:   report.ID,
		QuestionID: report.QuestionID,
		AnswerID:   report.AnswerID,
		Status:     report.Status,
	})
	return result, nil
}

// deliver sends msg and converts failures into a DependencyFailure.
func (s *ModerationService) deliver(ctx context.Context, msg email.Message, renderErr error, banner string) error {
	if s.mail == nil {
		return nil
	}
	err := renderErr
	if err == nil {
		err = s.mail.Send(ctx, msg)
	}
	if err == nil {
		return nil
	}
	observability.LogAsyncOperationError(ctx, "email.send", err, slog.String("subject", msg.Subject))
	return models.NewDependencyError(banner, err)
}

func (s *ModerationService) canReview(ctx context.Context, actorID uint) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if models.IsNotFound(err) {
			return models.NewForbiddenError("Admin access required.")
		}
		return err
	}
	if actor.IsAdmin || (s.cfg.ModeratorsCanReview && actor.IsModerator) {
		return nil
	}
	return models.NewForbiddenError("Admin access required.")
}

func (s *ModerationService) requireAdmin(ctx context.Context, actorID uint) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if models.IsNotFound(err) {
			return models.NewForbiddenError("Admin access required.")
		}
		return err
	}
	if !actor.IsAdmin {
		return models.NewForbiddenError("Admin access required.")
	}
	return nil
}

func statusSentence(kind, title string, status models.ReportStatus) string {
	subject := "Your answer"
	if kind == "question" {
		subject = fmt.Sprintf("Your question \"%s\"", title)
	}
	switch status {
	case models.ReportAccepted:
		return subject + " has been disabled."
	case models.ReportPending:
		return subject + " is under review again."
	default:
		return subject + " has been restored."
	}
}

// ChangeStatus moves a report to a new status and sets the target's
// visibility to match, atomically. The owner is emailed and notified only
// when the status actually changed.
func (s *ModerationService) ChangeStatus(ctx context.Context, in ChangeStatusInput) (_ *ChangeStatusResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "moderation.change_status",
		attribute.Int64("report.id", int64(in.ReportID)))
	defer span.End(&err)

	if err := s.canReview(ctx, in.ActorID); err != nil {
		return nil, err
	}
	next, ok := models.ParseReportStatus(in.Status)
	if !ok {
		return nil, models.NewValidationError("Status must be one of Pending, Accepted or Disabled.")
	}

	report, previous, err := s.reports.ChangeStatus(ctx, in.ReportID, func(r *models.Report) (models.ReportStatus, error) {
		switch {
		case r.QuestionID != nil && r.Question == nil:
			return "", models.NewNotFoundError("Question", *r.QuestionID)
		case r.AnswerID != nil && r.Answer == nil:
			return "", models.NewNotFoundError("Answer", *r.AnswerID)
		}
		if !models.CanTransition(r.Status, next, s.cfg.AllowReopen) {
			return "", models.NewValidationError(fmt.Sprintf("Cannot change a report from %s to %s.", r.Status, next))
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	result := &ChangeStatusResult{Report: report, Previous: previous, Changed: previous != report.Status}
	if result.Changed {
		observability.ModerationTransitionsTotal.WithLabelValues(string(previous), string(report.Status)).Inc()
		s.notifyOwner(ctx, report, result)
	}

	publish(ctx, s.pub, notifications.AllGroup, notifications.EventReportAccept, reportEvent{
		ReportID:   report.ID,
		QuestionID: report.QuestionID,
		AnswerID:   report.AnswerID,
		Status:     report.Status,
		Previous:   previous,
	})
	return result, nil
}

func (s *ModerationService) notifyOwner(ctx context.Context, report *models.Report, result *ChangeStatusResult) {
	var owner *models.User
	var kind, title string
	var questionID uint
	switch {
	case report.Question != nil:
		owner, kind, title, questionID = report.Question.User, "question", report.Question.Title, report.Question.ID
	case report.Answer != nil:
		owner, kind, questionID = report.Answer.User, "answer", report.Answer.QuestionID
		if report.Answer.Question != nil {
			title = report.Answer.Question.Title
		}
	}
	if owner == nil {
		return
	}

	msg, renderErr := email.StatusChanged(owner, kind, title, report.Status)
	result.EmailError = s.deliver(ctx, msg, renderErr, "Status updated, but the owner could not be emailed.")

	if s.notes != nil {
		if _, err := s.notes.NotifyStatusChanged(ctx, owner.ID, report.Target(), questionID, statusSentence(kind, title, report.Status)); err != nil {
			observability.LogAsyncOperationError(ctx, "notification.status_changed", err)
		}
	}
}

// CancelReport deletes a report without touching the target's visibility.
func (s *ModerationService) CancelReport(ctx context.Context, actorID, reportID uint) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, reportID); err != nil {
		return err
	}
	publish(ctx, s.pub, notifications.AllGroup, notifications.EventReportAccept, reportEvent{
		ReportID:   report.ID,
		QuestionID: report.QuestionID,
		AnswerID:   report.AnswerID,
		Status:     report.Status,
	})
	return nil
}

func (s *ModerationService) ListReports(ctx context.Context, actorID uint, f ReportFilter) (*ReportPage, error) {
	if err := s.canReview(ctx, actorID); err != nil {
		return nil, err
	}
	query := repository.ReportQuery{Search: f.Search, SortAsc: f.SortAsc}
	if strings.TrimSpace(f.Status) != "" {
		status, ok := models.ParseReportStatus(f.Status)
		if !ok {
			return nil, models.NewValidationError("Status must be one of Pending, Accepted or Disabled.")
		}
		query.Status = status
	}
	page := pageOrFirst(f.Page)
	query.Page = repository.NewPage(page, ReportPageSize)

	items, total, err := s.reports.List(ctx, query)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Report{}
	}
	return &ReportPage{Items: items, Total: total, Page: page, PageSize: ReportPageSize}, nil
}
