package server

import (
	"strings"

	"qaforum/internal/featureflags"
	"qaforum/internal/models"
	"qaforum/internal/service"

	"github.com/gofiber/fiber/v2"
)

type questionRequest struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
	Tags    string `json:"tags" form:"tags"`
}

type answerRequest struct {
	Content string `json:"content" form:"content"`
}

// imageUpload reads the optional "image" part, refusing it when question
// images are switched off for the caller.
func (s *Server) imageUpload(c *fiber.Ctx) (*service.UploadImageInput, error) {
	img, err := formFile(c, "image", s.config.MaxUploadBytes())
	if err != nil || img == nil {
		return img, err
	}
	if s.featureFlags != nil && !s.featureFlags.Enabled(featureflags.QuestionImages, currentUserID(c)) {
		return nil, models.NewValidationError("Image uploads are disabled")
	}
	return img, nil
}

// ListQuestions handles GET /api/questions
// @Summary List questions
// @Description Newest first; filter by keyword, tag or author
// @Tags questions
// @Produce json
// @Param keyword query string false "Title or content keyword"
// @Param tag query string false "Tag name"
// @Param username query string false "Author username"
// @Param sort query string false "asc or desc"
// @Param page query int false "Page (1-based)"
// @Success 200 {object} service.QuestionPage
// @Router /questions [get]
func (s *Server) ListQuestions(c *fiber.Ctx) error {
	page, err := s.questionService.List(c.UserContext(), service.QuestionFilter{
		Keyword:  c.Query("keyword"),
		Tag:      c.Query("tag"),
		Username: c.Query("username"),
		SortAsc:  strings.EqualFold(c.Query("sort"), "asc"),
		Page:     queryPage(c),
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetQuestion handles GET /api/questions/:id
// @Summary Question details
// @Tags questions
// @Produce json
// @Param id path int true "Question ID"
// @Param page query int false "Answer page"
// @Success 200 {object} service.QuestionDetails
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [get]
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	details, err := s.questionService.Details(c.UserContext(), id, s.optionalUserID(c), queryPage(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(details)
}

// GetTags handles GET /api/tags
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.questionService.Tags(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(tags)
}

// CreateQuestion handles POST /api/questions
// @Summary Ask a question
// @Description JSON or multipart; multipart may carry an "image" file
// @Tags questions
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse
// @Router /questions [post]
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	img, err := s.imageUpload(c)
	if err != nil {
		return respond(c, err)
	}

	q, err := s.questionService.Create(c.UserContext(), service.CreateQuestionInput{
		UserID:  currentUserID(c),
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Image:   img,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// UpdateQuestion handles PUT /api/questions/:id
func (s *Server) UpdateQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	img, err := s.imageUpload(c)
	if err != nil {
		return respond(c, err)
	}

	q, err := s.questionService.Update(c.UserContext(), service.UpdateQuestionInput{
		UserID:     currentUserID(c),
		QuestionID: id,
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		Image:      img,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(q)
}

// DeleteQuestion handles DELETE /api/questions/:id
// @Summary Delete a question
// @Description Removes the question with its answers, votes, reports and notifications
// @Tags questions
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /questions/{id} [delete]
func (s *Server) DeleteQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.questionService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PostAnswer handles POST /api/questions/:id/answers
// @Summary Answer a question
// @Tags answers
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Question ID"
// @Success 201 {object} models.Answer
// @Router /questions/{id}/answers [post]
func (s *Server) PostAnswer(c *fiber.Ctx) error {
	questionID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req answerRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	img, err := s.imageUpload(c)
	if err != nil {
		return respond(c, err)
	}

	answer, err := s.answerService.Post(c.UserContext(), service.PostAnswerInput{
		UserID:     currentUserID(c),
		QuestionID: questionID,
		Content:    req.Content,
		Image:      img,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(answer)
}

// UpdateAnswer handles PUT /api/answers/:id
func (s *Server) UpdateAnswer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req answerRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	img, err := s.imageUpload(c)
	if err != nil {
		return respond(c, err)
	}

	answer, err := s.answerService.Update(c.UserContext(), service.UpdateAnswerInput{
		UserID:   currentUserID(c),
		AnswerID: id,
		Content:  req.Content,
		Image:    img,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(answer)
}

// DeleteAnswer handles DELETE /api/answers/:id
func (s *Server) DeleteAnswer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.answerService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
