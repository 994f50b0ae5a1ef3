package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/storage/models"
	"github.com/unimate/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		answer TEXT,
		outcome TEXT,
		used_documents INTEGER DEFAULT 0,
		confidence REAL,
		candidate_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_session ON query_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS query_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		collection_id TEXT,
		document TEXT,
		page INTEGER,
		score REAL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_query ON query_sources(query_id);

	CREATE TABLE IF NOT EXISTS uploads (
		collection_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		size_bytes INTEGER,
		pages INTEGER,
		chunks INTEGER,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (collection_id, filename)
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, session_id, query_text, answer, outcome, used_documents,
			confidence, candidate_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	usedDocuments := 0
	if record.UsedDocuments {
		usedDocuments = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.QueryText,
		record.Answer,
		record.Outcome,
		usedDocuments,
		record.Confidence,
		record.CandidateCount,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Debug("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("outcome", record.Outcome),
	)

	return nil
}

func (c *Client) InsertQuerySource(source *models.QuerySource) error {
	query := `INSERT INTO query_sources (query_id, collection_id, document, page, score) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		source.QueryID,
		source.CollectionID,
		source.Document,
		source.Page,
		source.Score,
	)

	if err != nil {
		return fmt.Errorf("failed to insert query source: %w", err)
	}

	return nil
}

func (c *Client) GetQueryHistory(sessionID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, session_id, query_text, answer, outcome, used_documents, confidence,
			candidate_count, latency_ms, created_at
		FROM query_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var usedDocuments int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SessionID, &r.QueryText, &r.Answer, &r.Outcome,
			&usedDocuments, &r.Confidence, &r.CandidateCount, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.UsedDocuments = usedDocuments != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) InsertUpload(record *models.UploadRecord) error {
	query := `
		INSERT INTO uploads (collection_id, filename, size_bytes, pages, chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, filename) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			pages = excluded.pages,
			chunks = excluded.chunks,
			created_at = excluded.created_at
	`

	_, err := c.db.Exec(
		query,
		record.CollectionID,
		record.Filename,
		record.SizeBytes,
		record.Pages,
		record.Chunks,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	return nil
}

func (c *Client) GetUploads(collectionID string) ([]models.UploadRecord, error) {
	query := `
		SELECT collection_id, filename, size_bytes, pages, chunks, created_at
		FROM uploads
		WHERE collection_id = ?
		ORDER BY filename
	`

	rows, err := c.db.Query(query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get uploads: %w", err)
	}
	defer rows.Close()

	var records []models.UploadRecord
	for rows.Next() {
		var r models.UploadRecord
		var createdAt int64

		err := rows.Scan(&r.CollectionID, &r.Filename, &r.SizeBytes, &r.Pages, &r.Chunks, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
