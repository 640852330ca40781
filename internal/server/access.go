package server

import (
	"context"

	"qaforum/internal/middleware"
	"qaforum/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "userID"
	localClaims = "claims"
)

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals(localUserID, userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// currentUserID returns the authenticated user, or 0.
func currentUserID(c *fiber.Ctx) uint {
	uid, _ := c.Locals(localUserID).(uint)
	return uid
}

// AuthRequired rejects requests without a valid, unrevoked bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := middleware.BearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.authService.Authenticate(c.UserContext(), token)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}

		c.Locals(localClaims, claims)
		setUser(c, claims.UserID)
		return c.Next()
	}
}

// optionalUserID returns the caller's id when a valid token is present.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if uid := currentUserID(c); uid != 0 {
		return uid
	}
	token := middleware.BearerToken(c)
	if token == "" {
		return 0
	}
	claims, err := s.authService.Authenticate(c.UserContext(), token)
	if err != nil {
		return 0
	}
	return claims.UserID
}

// AdminRequired rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// FeatureRequired answers 404 while flag is off for the caller.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.featureFlags != nil && !s.featureFlags.Enabled(flag, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "This feature is not available"})
		}
		return c.Next()
	}
}
