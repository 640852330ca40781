package server

import (
	"context"
	"log/slog"

	"qaforum/internal/middleware"
	"qaforum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketUpgrade accepts websocket upgrades on /api/ws. A ?ticket from
// POST /api/ws/ticket identifies the user; without one the connection is an
// anonymous viewer that may only follow question groups.
func (s *Server) WebsocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		if ticket := c.Query("ticket"); ticket != "" {
			uid, err := s.authService.RedeemWSTicket(c.UserContext(), ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired websocket ticket"))
			}
			c.Locals(localUserID, uid)
		}
		return c.Next()
	}
}

type connectedFrame struct {
	Event  string `json:"event"`
	UserID uint   `json:"user_id"`
}

// WebsocketHandler registers the connection with the hub and runs its pumps
// until the peer goes away.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()
		userID, _ := conn.Locals(localUserID).(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "websocket register failed",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteJSON(fiber.Map{"event": "error", "error": err.Error()})
			_ = conn.Close()
			return
		}

		client.SendJSON(ctx, connectedFrame{Event: "connected", UserID: userID})

		go client.WritePump()
		client.ReadPump()
	})
}
