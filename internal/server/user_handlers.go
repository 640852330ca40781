package server

import (
	"qaforum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Own profile
// @Description The caller's account, questions and recent activity
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.Profile
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.userService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me. A multipart request may carry
// an "avatar" image.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	avatar, err := formFile(c, "avatar", s.config.MaxUploadBytes())
	if err != nil {
		return respond(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID: currentUserID(c),
		Email:  req.Email,
		Avatar: avatar,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// ChangePassword handles POST /api/users/me/password
// @Summary Change password
// @Tags users
// @Security BearerAuth
// @Accept json
// @Param request body service.ChangePasswordInput true "Passwords"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	if err := s.authService.ChangePassword(c.UserContext(), currentUserID(c), req); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Your password has been changed."})
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.Public(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// ListUsers handles GET /api/admin/users
// @Summary List accounts
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param search query string false "Username or email"
// @Param page query int false "Page (1-based)"
// @Success 200 {object} service.AdminUserPage
// @Router /admin/users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page, err := s.adminService.ListUsers(c.UserContext(), c.Query("search"), queryPage(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// LockUser handles POST /api/admin/users/:id/lock
// Admin check is enforced by AdminRequired middleware on the route.
func (s *Server) LockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.adminService.Lock(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// UnlockUser handles POST /api/admin/users/:id/unlock
func (s *Server) UnlockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.adminService.Unlock(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// SetUserRoles handles PUT /api/admin/users/:id/roles
// @Summary Replace a user's roles
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body object{roles=[]string} true "Roles, e.g. admin and moderator"
// @Success 200 {object} service.AdminUser
// @Router /admin/users/{id}/roles [put]
func (s *Server) SetUserRoles(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Roles []string `json:"roles"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	user, err := s.adminService.SetRoles(c.UserContext(), currentUserID(c), id, req.Roles)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}
