package server

import (
	"log/slog"
	"strings"

	"qaforum/internal/middleware"
	"qaforum/internal/service"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	VoteType int `json:"vote_type"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

// emailWarning is attached to moderation responses when the owner could
// not be emailed. The state change itself has been committed.
const emailWarning = "The change was saved but the owner could not be emailed."

func (s *Server) castVote(c *fiber.Ctx, in service.CastVoteInput) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	in.UserID = currentUserID(c)
	in.VoteType = req.VoteType

	res, err := s.voteService.CastVote(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// VoteQuestion handles POST /api/questions/:id/vote
// @Summary Vote on a question
// @Description vote_type is -1, 0 or 1; resubmitting the current value clears it under the toggle policy
// @Tags votes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} service.VoteResult
// @Router /questions/{id}/vote [post]
func (s *Server) VoteQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.castVote(c, service.CastVoteInput{QuestionID: &id})
}

// VoteAnswer handles POST /api/answers/:id/vote
func (s *Server) VoteAnswer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.castVote(c, service.CastVoteInput{AnswerID: &id})
}

func (s *Server) submitReport(c *fiber.Ctx, in service.SubmitReportInput) error {
	var req reportRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	in.UserID = currentUserID(c)
	in.Reason = req.Reason

	res, err := s.moderationService.SubmitReport(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}

	body := fiber.Map{"report": res.Report}
	if res.EmailError != nil {
		middleware.Logger.WarnContext(c.UserContext(), "report email failed",
			slog.Uint64("report_id", uint64(res.Report.ID)), slog.String("error", res.EmailError.Error()))
		body["warning"] = emailWarning
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// ReportQuestion handles POST /api/questions/:id/report
// @Summary Report a question
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Success 201 {object} object{report=models.Report,warning=string}
// @Failure 409 {object} models.ErrorResponse
// @Router /questions/{id}/report [post]
func (s *Server) ReportQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.submitReport(c, service.SubmitReportInput{QuestionID: &id})
}

// ReportAnswer handles POST /api/answers/:id/report
func (s *Server) ReportAnswer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.submitReport(c, service.SubmitReportInput{AnswerID: &id})
}

// ListReports handles GET /api/admin/reports
// @Summary Moderation queue
// @Tags moderation
// @Security BearerAuth
// @Produce json
// @Param status query string false "Pending, Accepted or Disabled"
// @Param search query string false "Reason or reporter"
// @Param sort query string false "asc or desc"
// @Param page query int false "Page (1-based)"
// @Success 200 {object} service.ReportPage
// @Router /admin/reports [get]
func (s *Server) ListReports(c *fiber.Ctx) error {
	page, err := s.moderationService.ListReports(c.UserContext(), currentUserID(c), service.ReportFilter{
		Status:  c.Query("status"),
		Search:  c.Query("search"),
		SortAsc: strings.EqualFold(c.Query("sort"), "asc"),
		Page:    queryPage(c),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// ChangeReportStatus handles PUT /api/admin/reports/:id/status
// @Summary Review a report
// @Description Moves a report between Pending, Accepted and Disabled; Accepted hides the content
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} object{report=models.Report,previous=string,changed=bool,warning=string}
// @Router /admin/reports/{id}/status [put]
func (s *Server) ChangeReportStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	res, err := s.moderationService.ChangeStatus(c.UserContext(), service.ChangeStatusInput{
		ActorID:  currentUserID(c),
		ReportID: id,
		Status:   req.Status,
	})
	if err != nil {
		return respond(c, err)
	}

	body := fiber.Map{
		"report":   res.Report,
		"previous": res.Previous,
		"changed":  res.Changed,
	}
	if res.EmailError != nil {
		middleware.Logger.WarnContext(c.UserContext(), "status email failed",
			slog.Uint64("report_id", uint64(id)), slog.String("error", res.EmailError.Error()))
		body["warning"] = emailWarning
	}
	return c.JSON(body)
}

// CancelReport handles DELETE /api/admin/reports/:id
func (s *Server) CancelReport(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.moderationService.CancelReport(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
