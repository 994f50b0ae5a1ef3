package query

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/internal/storage/models"
	"github.com/unimate/backend/pkg/logger"
)

// Terminal outcomes for a processed query.
const (
	OutcomeGrounded = "grounded"
	OutcomeGeneric  = "generic"
	OutcomeFailed   = "failed"
)

// Apology is returned verbatim when generation fails and no retrieved
// chunk can stand in for an answer.
const Apology = "Sorry, I couldn't generate an answer right now."

// A grounded answer shorter than this (in runes, after trimming) is
// considered unusable and triggers the generic retry.
const minAnswerRunes = 4

var (
	ErrMissingSession = errors.New("session id is required")
	ErrEmptyQuery     = errors.New("query text is required")
)

// Generator produces text from a prompt pair. Failures must come back as
// errors wrapping llm.ErrGenerationUnavailable, never as panics.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Retriever aggregates search results across all collections. It never
// fails; degraded retrieval shows up as an empty result.
type Retriever interface {
	SearchAll(ctx context.Context, query string) *AggregateResult
}

// Recorder persists the query audit trail. Recording is best effort and
// never affects the answer.
type Recorder interface {
	InsertQueryRecord(record *models.QueryRecord) error
	InsertQuerySource(source *models.QuerySource) error
}

type Engine struct {
	sessions   *session.Manager
	classifier Classifier
	retriever  Retriever
	generator  Generator
	db         Recorder
	threshold  float64
}

type QueryRequest struct {
	SessionID string
	Query     string
}

type QueryResponse struct {
	QueryID       string          `json:"query_id"`
	SessionID     string          `json:"session_id"`
	Answer        string          `json:"answer"`
	Sources       []models.Source `json:"sources"`
	UsedDocuments bool            `json:"used_documents"`
	Outcome       string          `json:"outcome"`
	Confidence    float64         `json:"confidence"`
	LatencyMS     int             `json:"latency_ms"`
}

// NewEngine wires the orchestrator. db may be nil, in which case no audit
// records are written.
func NewEngine(sessions *session.Manager, classifier Classifier, retriever Retriever, generator Generator, db Recorder, threshold float64) *Engine {
	return &Engine{
		sessions:   sessions,
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		db:         db,
		threshold:  threshold,
	}
}

// ProcessQuery runs one query through classify, retrieve, gate, generate,
// and citation annotation, appending both conversation turns to the session.
// It errors only on malformed input; retrieval and generation problems are
// absorbed into a best-effort answer.
func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingSession
	}
	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}

	queryID := uuid.New().String()
	sess := e.sessions.GetOrCreate(req.SessionID)

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("session_id", sess.ID),
	)

	sess.Append(session.RoleUser, queryText)
	summary := sess.Summary()

	generic := e.classifier.IsGeneric(queryText)

	retrieval := &AggregateResult{Meta: make(map[string]models.ChunkMeta)}
	if !generic {
		retrieval = e.retriever.SearchAll(ctx, queryText)
	}

	mode := Decide(generic, retrieval.Confidence, len(retrieval.Candidates), e.threshold)

	var contextBlock string
	var pages []int
	var sources []models.Source
	if mode == ModeGrounded {
		contextBlock, pages, sources = FormatContext(retrieval.Candidates, retrieval.Meta)
	}

	prompt := BuildPrompt(queryText, summary, contextBlock, mode == ModeGeneric)

	var outcome string
	extractive := false

	answer, genErr := e.generator.Generate(ctx, prompt.System, prompt.User)
	if genErr != nil {
		metrics.GenerationFailures.Inc()
		if mode == ModeGrounded && len(retrieval.Candidates) > 0 {
			answer = ExtractiveFallback(retrieval.Candidates, retrieval.Meta)
			extractive = true
			outcome = OutcomeGrounded
			logger.Warn("Generation failed, falling back to top chunk text",
				zap.String("query_id", queryID),
				zap.Error(genErr),
			)
		} else {
			answer = Apology
			outcome = OutcomeFailed
			logger.Warn("Generation failed with no evidence to fall back on",
				zap.String("query_id", queryID),
				zap.Error(genErr),
			)
		}
	} else {
		answer = strings.TrimSpace(answer)
		if mode == ModeGrounded {
			outcome = OutcomeGrounded
		} else {
			outcome = OutcomeGeneric
		}

		if mode == ModeGrounded && unusableAnswer(answer) {
			metrics.GenerationRetries.Inc()
			logger.Info("Grounded answer unusable, retrying generically",
				zap.String("query_id", queryID),
			)

			retryPrompt := BuildPrompt(queryText, summary, "", true)
			retryAnswer, retryErr := e.generator.Generate(ctx, retryPrompt.System, retryPrompt.User)
			if retryErr == nil {
				answer = strings.TrimSpace(retryAnswer)
				outcome = OutcomeGeneric
			} else {
				logger.Warn("Generic retry failed, keeping grounded answer",
					zap.String("query_id", queryID),
					zap.Error(retryErr),
				)
			}
		}
	}

	if outcome == OutcomeGrounded && !extractive && len(pages) > 0 {
		answer = AddInlineCitations(answer, pages)
	}

	sess.Append(session.RoleAssistant, answer)

	usedDocuments := outcome == OutcomeGrounded
	if !usedDocuments {
		sources = nil
	}
	if sources == nil {
		sources = []models.Source{}
	}

	latency := int(time.Since(startTime).Milliseconds())

	e.recordQuery(queryID, sess.ID, queryText, answer, outcome, usedDocuments, retrieval, latency, sources)

	metrics.QueryTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(outcome).Observe(time.Since(startTime).Seconds())
	metrics.ConfidenceScore.Observe(retrieval.Confidence)
	metrics.RetrievalCandidates.Observe(float64(len(retrieval.Candidates)))

	logger.Info("Query processed",
		zap.String("query_id", queryID),
		zap.String("outcome", outcome),
		zap.Float64("confidence", retrieval.Confidence),
		zap.Int("latency_ms", latency),
	)

	return &QueryResponse{
		QueryID:       queryID,
		SessionID:     sess.ID,
		Answer:        answer,
		Sources:       sources,
		UsedDocuments: usedDocuments,
		Outcome:       outcome,
		Confidence:    retrieval.Confidence,
		LatencyMS:     latency,
	}, nil
}

// unusableAnswer reports whether a grounded answer should be replaced by a
// generic retry: the model declined with the not-found marker, or produced
// next to nothing.
func unusableAnswer(answer string) bool {
	return strings.Contains(answer, NotFoundMarker) || utf8.RuneCountInString(answer) < minAnswerRunes
}

func (e *Engine) recordQuery(queryID, sessionID, queryText, answer, outcome string, usedDocuments bool, retrieval *AggregateResult, latency int, sources []models.Source) {
	if e.db == nil {
		return
	}

	record := &models.QueryRecord{
		ID:             queryID,
		SessionID:      sessionID,
		QueryText:      queryText,
		Answer:         answer,
		Outcome:        outcome,
		UsedDocuments:  usedDocuments,
		Confidence:     retrieval.Confidence,
		CandidateCount: len(retrieval.Candidates),
		LatencyMS:      latency,
		CreatedAt:      time.Now(),
	}

	if err := e.db.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query", zap.String("query_id", queryID), zap.Error(err))
		return
	}

	for i := range sources {
		src := &models.QuerySource{
			QueryID:      queryID,
			CollectionID: sources[i].CollectionID,
			Document:     sources[i].Document,
			Page:         sources[i].Page,
			Score:        sources[i].Score,
		}
		if err := e.db.InsertQuerySource(src); err != nil {
			logger.Warn("Failed to record query source", zap.String("query_id", queryID), zap.Error(err))
		}
	}
}
