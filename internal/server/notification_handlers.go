package server

import "github.com/gofiber/fiber/v2"

type notificationIDsRequest struct {
	IDs  []uint `json:"ids"`
	Mode string `json:"mode"`
}

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page (1-based)"
// @Success 200 {object} service.NotificationPage
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page, err := s.notificationService.List(c.UserContext(), currentUserID(c), queryPage(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetNotificationSummary handles GET /api/notifications/summary
func (s *Server) GetNotificationSummary(c *fiber.Ctx) error {
	page, err := s.notificationService.Summary(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// MarkNotificationRead handles POST /api/notifications/:id/read. The
// response names the answers page the client should open.
// @Summary Mark a notification read
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{answer_page=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"answer_page": page})
}

// MarkNotificationUnread handles POST /api/notifications/:id/unread
func (s *Server) MarkNotificationUnread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.MarkUnread(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// BulkMarkNotifications handles POST /api/notifications/bulk
// @Summary Mark several notifications
// @Tags notifications
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{ids=[]int,mode=string} true "mode is read or unread"
// @Success 200 {object} object{updated=int}
// @Router /notifications/bulk [post]
func (s *Server) BulkMarkNotifications(c *fiber.Ctx) error {
	var req notificationIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	n, err := s.notificationService.BulkMark(c.UserContext(), currentUserID(c), req.IDs, req.Mode)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// DeleteNotifications handles DELETE /api/notifications. Ids come from the
// JSON body or from ?ids=1,2,3.
func (s *Server) DeleteNotifications(c *fiber.Ctx) error {
	ids := parseIDList(c.Query("ids"))
	if len(ids) == 0 && len(c.Body()) > 0 {
		var req notificationIDsRequest
		if err := c.BodyParser(&req); err != nil {
			return bodyError(c)
		}
		ids = req.IDs
	}
	n, err := s.notificationService.Delete(c.UserContext(), currentUserID(c), ids)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
