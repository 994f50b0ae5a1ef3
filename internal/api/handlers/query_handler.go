package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/query"
	"github.com/unimate/backend/internal/storage/sqlite"
	"github.com/unimate/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
	db          *sqlite.Client
}

func NewQueryHandler(queryEngine *query.Engine, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		db:          db,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	response, err := h.queryEngine.ProcessQuery(c.Context(), query.QueryRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
	})
	if err != nil {
		if errors.Is(err, query.ErrMissingSession) || errors.Is(err, query.ErrEmptyQuery) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.db.GetQueryHistory(sessionID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    records,
	})
}
