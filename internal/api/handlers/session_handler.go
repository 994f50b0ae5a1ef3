package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/pkg/logger"
)

type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	s := h.sessions.Create()
	metrics.ActiveSessions.Set(float64(h.sessions.Count()))

	logger.Info("Session created", zap.String("session_id", s.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
	})
}

func (h *SessionHandler) ClearSession(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	s, ok := h.sessions.Get(req.SessionID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown session",
		})
	}

	s.Clear()
	logger.Info("Session cleared", zap.String("session_id", req.SessionID))

	return c.JSON(fiber.Map{
		"status":     "cleared",
		"session_id": req.SessionID,
	})
}

func (h *SessionHandler) SessionHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	s, ok := h.sessions.Get(sessionID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id":    sessionID,
		"collection_id": s.Collection(),
		"messages":      s.Messages(),
	})
}
