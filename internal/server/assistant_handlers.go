package server

import "github.com/gofiber/fiber/v2"

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateAssistant handles POST /api/assistant/generate
// @Summary Ask the study assistant
// @Tags assistant
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body generateRequest true "Prompt"
// @Success 200 {object} object{success=bool,result=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /assistant/generate [post]
func (s *Server) GenerateAssistant(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	out, err := s.assistantService.Generate(c.UserContext(), currentUserID(c), req.Prompt)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": out})
}
