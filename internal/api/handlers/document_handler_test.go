package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/ingestion"
	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/internal/vector"
)

type unitEmbedder struct {
	dim int
}

func (e unitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dim)
		v[i%e.dim] = 1
		out[i] = v
	}
	return out, nil
}

func newDocumentApp(t *testing.T) (*fiber.App, *session.Manager) {
	t.Helper()

	registry := collection.NewRegistry(t.TempDir())
	processor := ingestion.NewProcessor(nil, registry, vector.NewLocalBackend(), unitEmbedder{dim: 4}, 4, "")
	sessions := session.NewManager()
	h := NewDocumentHandler(processor, registry, sessions)

	app := fiber.New()
	app.Post("/documents", h.UploadDocuments)
	app.Get("/collections", h.ListCollections)

	return app, sessions
}

func TestUploadDocuments(t *testing.T) {
	app, sessions := newDocumentApp(t)

	sessID := sessions.Create().ID

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("session_id", sessID))
	fw, err := w.CreateFormFile("files", "handbook.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Refunds are processed within 14 days. Contact the registrar for enrollment questions."))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, "indexed", body["status"])
	assert.Equal(t, sessID, body["session_id"])

	collectionID, _ := body["collection_id"].(string)
	require.NotEmpty(t, collectionID)

	s, ok := sessions.Get(sessID)
	require.True(t, ok)
	assert.Equal(t, collectionID, s.Collection(), "upload binds the collection to the session")
}

func TestUploadDocumentsRequiresSessionField(t *testing.T) {
	app, _ := newDocumentApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("some text"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadDocumentsRequiresFiles(t *testing.T) {
	app, _ := newDocumentApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("session_id", "sess-1"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListCollectionsAfterUpload(t *testing.T) {
	app, sessions := newDocumentApp(t)

	sessID := sessions.Create().ID

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("session_id", sessID))
	fw, err := w.CreateFormFile("files", "syllabus.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Lectures run Monday and Wednesday. The final exam covers all modules."))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/collections", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	cols, ok := body["collections"].([]interface{})
	require.True(t, ok)
	require.Len(t, cols, 1)

	col, ok := cols[0].(map[string]interface{})
	require.True(t, ok)

	docs, ok := col["documents"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"syllabus.txt"}, docs)
}
