package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/ingestion"
	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	registry  *collection.Registry
	sessions  *session.Manager
}

func NewDocumentHandler(processor *ingestion.Processor, registry *collection.Registry, sessions *session.Manager) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		registry:  registry,
		sessions:  sessions,
	}
}

// UploadDocuments accepts a multipart form with a session_id field and one
// or more files, indexes them into a collection, and binds that collection
// to the session.
func (h *DocumentHandler) UploadDocuments(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Multipart form required",
		})
	}

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one file is required",
		})
	}

	files := make([]ingestion.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read " + fh.Filename,
			})
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read " + fh.Filename,
			})
		}
		files = append(files, ingestion.UploadedFile{Filename: fh.Filename, Data: data})
	}

	result, err := h.processor.ProcessUpload(c.Context(), files)
	if err != nil {
		if errors.Is(err, ingestion.ErrNoFiles) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process upload",
		})
	}

	sess := h.sessions.GetOrCreate(sessionID)
	sess.SetCollection(result.CollectionID)

	return c.JSON(fiber.Map{
		"status":        result.Status,
		"collection_id": result.CollectionID,
		"documents":     result.Documents,
		"total_chunks":  result.TotalChunks,
		"session_id":    sess.ID,
	})
}

func (h *DocumentHandler) ListCollections(c *fiber.Ctx) error {
	infos := h.registry.List()

	collections := make([]fiber.Map, 0, len(infos))
	for _, info := range infos {
		meta, err := collection.ReadMeta(info.Path)
		if err != nil {
			logger.Warn("Skipping collection with unreadable metadata",
				zap.String("collection_id", info.ID),
				zap.Error(err),
			)
			continue
		}

		docs := make([]string, len(meta.Documents))
		for i, d := range meta.Documents {
			docs[i] = d.Filename
		}

		collections = append(collections, fiber.Map{
			"collection_id": info.ID,
			"documents":     docs,
			"chunks":        len(meta.Chunks),
			"created_at":    meta.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"collections": collections,
	})
}
