package server

import (
	"qaforum/internal/models"
	"qaforum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListMaterials handles GET /api/materials
// @Summary List study materials
// @Tags materials
// @Produce json
// @Param search query string false "Title or description"
// @Param page query int false "Page (1-based)"
// @Success 200 {object} service.MaterialPage
// @Router /materials [get]
func (s *Server) ListMaterials(c *fiber.Ctx) error {
	page, err := s.materialService.List(c.UserContext(), queryPage(c), c.Query("search"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetMaterial handles GET /api/materials/:id
func (s *Server) GetMaterial(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	m, err := s.materialService.Get(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(m)
}

// AddMaterial handles POST /api/materials
// @Summary Upload a study material
// @Tags materials
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param file formData file true "Material file"
// @Success 201 {object} models.Material
// @Failure 400 {object} models.ErrorResponse
// @Router /materials [post]
func (s *Server) AddMaterial(c *fiber.Ctx) error {
	file, err := formFile(c, "file", 0)
	if err != nil {
		return respond(c, err)
	}
	if file == nil {
		return respond(c, models.NewValidationError("A file is required"))
	}

	m, err := s.materialService.Add(c.UserContext(), service.AddMaterialInput{
		UserID:      currentUserID(c),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Content:     file.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// DownloadMaterial handles GET /api/materials/:id/download. It counts the
// download and redirects to the stored file.
// @Summary Download a study material
// @Tags materials
// @Security BearerAuth
// @Param id path int true "Material ID"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /materials/{id}/download [get]
func (s *Server) DownloadMaterial(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	m, err := s.materialService.RecordDownload(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.Redirect(m.FileLink, fiber.StatusFound)
}

// DeleteMaterial handles DELETE /api/materials/:id
func (s *Server) DeleteMaterial(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.materialService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
