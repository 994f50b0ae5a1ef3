package models

import "time"

// ChunkMeta is the per-chunk record persisted in a collection's meta.json.
// The JSON keys are part of the on-disk artifact format.
type ChunkMeta struct {
	Document string `json:"doc"`
	Page     int    `json:"page"`
	Text     string `json:"text"`
}

// DocumentInfo summarizes one uploaded file inside a collection.
type DocumentInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Pages     int    `json:"pages"`
}

// CollectionMeta is the full meta.json payload for one collection.
type CollectionMeta struct {
	CollectionID string               `json:"collection_id"`
	Dim          int                  `json:"dim"`
	Documents    []DocumentInfo       `json:"documents"`
	Chunks       map[string]ChunkMeta `json:"chunks"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Candidate is one globally ranked retrieval result. ID is the collection id
// joined to the local chunk id with "::".
type Candidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Source is the caller-facing provenance record for a grounded answer.
type Source struct {
	CollectionID string  `json:"collection_id"`
	Document     string  `json:"document"`
	Page         int     `json:"page"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

type QueryRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	QueryText      string    `json:"query_text"`
	Answer         string    `json:"answer"`
	Outcome        string    `json:"outcome"`
	UsedDocuments  bool      `json:"used_documents"`
	Confidence     float64   `json:"confidence"`
	CandidateCount int       `json:"candidate_count"`
	LatencyMS      int       `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

type QuerySource struct {
	ID           int     `json:"id"`
	QueryID      string  `json:"query_id"`
	CollectionID string  `json:"collection_id"`
	Document     string  `json:"document"`
	Page         int     `json:"page"`
	Score        float64 `json:"score"`
}

type UploadRecord struct {
	CollectionID string    `json:"collection_id"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	Pages        int       `json:"pages"`
	Chunks       int       `json:"chunks"`
	CreatedAt    time.Time `json:"created_at"`
}
