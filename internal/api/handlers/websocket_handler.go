package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/query"
	"github.com/unimate/backend/pkg/logger"
)

type WebSocketHandler struct {
	queryEngine *query.Engine
}

func NewWebSocketHandler(queryEngine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{queryEngine: queryEngine}
}

// HandleConnection serves one chat connection. The client sends query
// frames; the server answers with a status frame, the answer in word
// chunks, and a complete frame carrying sources.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Content   string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if err := h.streamAnswer(c, msg.SessionID, msg.Content); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, sessionID, content string) error {
	if err := h.send(c, "status", "Searching your documents..."); err != nil {
		return err
	}

	response, err := h.queryEngine.ProcessQuery(context.Background(), query.QueryRequest{
		SessionID: sessionID,
		Query:     content,
	})
	if err != nil {
		if errors.Is(err, query.ErrMissingSession) || errors.Is(err, query.ErrEmptyQuery) {
			h.sendError(c, err.Error())
			return nil
		}
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":           "complete",
		"query_id":       response.QueryID,
		"session_id":     response.SessionID,
		"sources":        response.Sources,
		"used_documents": response.UsedDocuments,
		"confidence":     response.Confidence,
		"latency_ms":     response.LatencyMS,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
