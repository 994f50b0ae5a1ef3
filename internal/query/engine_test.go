package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/internal/storage/models"
)

type genResponse struct {
	text string
	err  error
}

type fakeGenerator struct {
	responses []genResponse
	calls     []Prompt
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls = append(g.calls, Prompt{System: systemPrompt, User: userPrompt})
	if len(g.responses) == 0 {
		return "", errors.New("generator called more times than scripted")
	}
	r := g.responses[0]
	g.responses = g.responses[1:]
	return r.text, r.err
}

type fakeRetriever struct {
	result *AggregateResult
	calls  int
}

func (r *fakeRetriever) SearchAll(ctx context.Context, query string) *AggregateResult {
	r.calls++
	if r.result == nil {
		return &AggregateResult{Meta: make(map[string]models.ChunkMeta)}
	}
	return r.result
}

type fakeRecorder struct {
	records []*models.QueryRecord
	sources []*models.QuerySource
}

func (f *fakeRecorder) InsertQueryRecord(r *models.QueryRecord) error {
	f.records = append(f.records, r)
	return nil
}

func (f *fakeRecorder) InsertQuerySource(s *models.QuerySource) error {
	f.sources = append(f.sources, s)
	return nil
}

func newTestEngine(gen *fakeGenerator, ret *fakeRetriever, rec Recorder) (*Engine, *session.Manager) {
	mgr := session.NewManager()
	return NewEngine(mgr, NewKeywordClassifier(), ret, gen, rec, 0.35), mgr
}

func groundedResult() *AggregateResult {
	return &AggregateResult{
		Candidates: []models.Candidate{
			{ID: "col1::0", Score: 0.82},
			{ID: "col1::1", Score: 0.55},
		},
		Meta: map[string]models.ChunkMeta{
			"col1::0": {Document: "handbook.pdf", Page: 2, Text: "Refunds are processed within 14 days."},
			"col1::1": {Document: "handbook.pdf", Page: 7, Text: "Contact the registrar for enrollment."},
		},
		Confidence: 0.82,
	}
}

func TestProcessQueryValidation(t *testing.T) {
	gen := &fakeGenerator{}
	ret := &fakeRetriever{}
	e, _ := newTestEngine(gen, ret, nil)

	tests := []struct {
		name    string
		req     QueryRequest
		wantErr error
	}{
		{"missing session id", QueryRequest{SessionID: "", Query: "x"}, ErrMissingSession},
		{"blank session id", QueryRequest{SessionID: "   ", Query: "x"}, ErrMissingSession},
		{"empty query", QueryRequest{SessionID: "s", Query: ""}, ErrEmptyQuery},
		{"blank query", QueryRequest{SessionID: "s", Query: "   \n"}, ErrEmptyQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.ProcessQuery(context.Background(), tt.req)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, gen.calls, "no generation on rejected input")
	assert.Zero(t, ret.calls, "no retrieval on rejected input")
}

func TestProcessQueryGenericGreeting(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{text: "Hi! How can I help you today?"}}}
	ret := &fakeRetriever{}
	e, mgr := newTestEngine(gen, ret, nil)
	sessID := mgr.Create().ID

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: sessID, Query: "Hello!"})
	require.NoError(t, err)

	assert.Zero(t, ret.calls, "generic queries skip retrieval")
	assert.Equal(t, OutcomeGeneric, resp.Outcome)
	assert.False(t, resp.UsedDocuments)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "Hi! How can I help you today?", resp.Answer)
	assert.Zero(t, resp.Confidence)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, generalSystemPrompt, gen.calls[0].System)

	sess, ok := mgr.Get(sessID)
	require.True(t, ok)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello!", msgs[0].Content)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.Equal(t, resp.Answer, msgs[1].Content)
}

func TestProcessQueryNoCollectionsGoesGeneric(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{text: "Refund rules vary by university; check your student portal."}}}
	ret := &fakeRetriever{}
	e, mgr := newTestEngine(gen, ret, nil)
	sessID := mgr.Create().ID

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: sessID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Equal(t, 1, ret.calls, "document questions run retrieval")
	assert.Equal(t, OutcomeGeneric, resp.Outcome)
	assert.False(t, resp.UsedDocuments)
	assert.Empty(t, resp.Sources)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, generalSystemPrompt, gen.calls[0].System)
}

func TestProcessQueryGrounded(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{text: "Refunds are processed within 14 days."}}}
	ret := &fakeRetriever{result: groundedResult()}
	rec := &fakeRecorder{}
	e, mgr := newTestEngine(gen, ret, rec)
	sessID := mgr.Create().ID

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: sessID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeGrounded, resp.Outcome)
	assert.True(t, resp.UsedDocuments)
	assert.Equal(t, 0.82, resp.Confidence)
	assert.Equal(t, "Refunds are processed within 14 days.\n\nSources: [p. 2], [p. 7]", resp.Answer)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "col1", resp.Sources[0].CollectionID)
	assert.Equal(t, "handbook.pdf", resp.Sources[0].Document)
	assert.Equal(t, 2, resp.Sources[0].Page)
	assert.Equal(t, 7, resp.Sources[1].Page)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, groundedSystemPrompt, gen.calls[0].System)
	assert.Contains(t, gen.calls[0].User, "[handbook.pdf p.2] Refunds are processed within 14 days.")
	assert.Contains(t, gen.calls[0].User, "Question: What is the refund policy?")
	assert.Contains(t, gen.calls[0].User, "User: What is the refund policy?", "summary includes the current turn")

	sess, _ := mgr.Get(sessID)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, resp.Answer, msgs[1].Content, "assistant turn records the cited answer")

	require.Len(t, rec.records, 1)
	assert.Equal(t, OutcomeGrounded, rec.records[0].Outcome)
	assert.True(t, rec.records[0].UsedDocuments)
	assert.Equal(t, 2, rec.records[0].CandidateCount)
	assert.Len(t, rec.sources, 2)
}

func TestProcessQueryLowConfidenceGoesGeneric(t *testing.T) {
	res := groundedResult()
	res.Confidence = 0.2

	gen := &fakeGenerator{responses: []genResponse{{text: "I can answer generally: policies differ per course."}}}
	ret := &fakeRetriever{result: res}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeGeneric, resp.Outcome)
	assert.False(t, resp.UsedDocuments)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0.2, resp.Confidence)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, generalSystemPrompt, gen.calls[0].System)
}

func TestProcessQueryExtractiveFallback(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{err: errors.New("rate limited")}}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Equal(t, "Refunds are processed within 14 days.", resp.Answer, "falls back to the top chunk's raw text")
	assert.NotContains(t, resp.Answer, "Sources:", "extractive answers carry no citation note")
	assert.Equal(t, OutcomeGrounded, resp.Outcome)
	assert.True(t, resp.UsedDocuments)
	assert.Len(t, resp.Sources, 2)
	assert.Len(t, gen.calls, 1, "generation failure does not trigger the generic retry")
}

func TestProcessQueryApologyWhenGenerationFails(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{err: errors.New("connection refused")}}}
	ret := &fakeRetriever{}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "hi"})
	require.NoError(t, err, "generation failures never surface as errors")

	assert.Equal(t, Apology, resp.Answer)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
	assert.False(t, resp.UsedDocuments)
	assert.Empty(t, resp.Sources)
	assert.Len(t, gen.calls, 1)
}

func TestProcessQueryRetriesOnNotFoundMarker(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{
		{text: "Not found in the document."},
		{text: "Generally, refund timelines depend on the provider."},
	}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	require.Len(t, gen.calls, 2, "exactly one retry")
	assert.Equal(t, groundedSystemPrompt, gen.calls[0].System)
	assert.Equal(t, generalSystemPrompt, gen.calls[1].System)

	assert.Equal(t, "Generally, refund timelines depend on the provider.", resp.Answer)
	assert.Equal(t, OutcomeGeneric, resp.Outcome, "successful retry is treated as ungrounded")
	assert.False(t, resp.UsedDocuments)
	assert.Empty(t, resp.Sources)
	assert.NotContains(t, resp.Answer, "Sources:")
}

func TestProcessQueryRetriesOnTooShortAnswer(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{
		{text: "ok"},
		{text: "Here is a fuller answer from general knowledge."},
	}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Len(t, gen.calls, 2)
	assert.Equal(t, OutcomeGeneric, resp.Outcome)
	assert.Equal(t, "Here is a fuller answer from general knowledge.", resp.Answer)
}

func TestProcessQueryRetryFailureKeepsGroundedAnswer(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{
		{text: "Not found in the document."},
		{err: errors.New("downstream down")},
	}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Len(t, gen.calls, 2)
	assert.Equal(t, "Not found in the document.\n\nSources: [p. 2], [p. 7]", resp.Answer, "failed retry keeps the grounded answer and its citations")
	assert.Equal(t, OutcomeGrounded, resp.Outcome)
	assert.True(t, resp.UsedDocuments)
	assert.Len(t, resp.Sources, 2)
}

func TestProcessQueryRetryHappensOnlyOnce(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{
		{text: "Not found in the document."},
		{text: "Not found in the document."},
	}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)

	assert.Len(t, gen.calls, 2, "an unusable retry result is still final")
	assert.Equal(t, "Not found in the document.", resp.Answer)
	assert.Equal(t, OutcomeGeneric, resp.Outcome)
	assert.Empty(t, resp.Sources)
}

func TestProcessQueryMintsSessionOnUnknownID(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{text: "Welcome! Ask me about your documents."}}}
	e, mgr := newTestEngine(gen, &fakeRetriever{}, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: "stale-session-id", Query: "hello"})
	require.NoError(t, err)

	assert.NotEqual(t, "stale-session-id", resp.SessionID)
	assert.NotEmpty(t, resp.SessionID)

	sess, ok := mgr.Get(resp.SessionID)
	require.True(t, ok)
	assert.Len(t, sess.Messages(), 2)
}

func TestProcessQueryNilRecorder(t *testing.T) {
	gen := &fakeGenerator{responses: []genResponse{{text: "Refunds are processed within 14 days."}}}
	ret := &fakeRetriever{result: groundedResult()}
	e, mgr := newTestEngine(gen, ret, nil)

	resp, err := e.ProcessQuery(context.Background(), QueryRequest{SessionID: mgr.Create().ID, Query: "What is the refund policy?"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeGrounded, resp.Outcome)
}

func TestGlobalIDRoundTrip(t *testing.T) {
	gid := GlobalID("abc123", "17")
	assert.Equal(t, "abc123::17", gid)

	col, chunk := SplitGlobalID(gid)
	assert.Equal(t, "abc123", col)
	assert.Equal(t, "17", chunk)

	col, chunk = SplitGlobalID("no-separator")
	assert.Equal(t, "no-separator", col)
	assert.Equal(t, "", chunk)

	col, chunk = SplitGlobalID("a::b::c")
	assert.Equal(t, "a", col)
	assert.Equal(t, "b::c", chunk, "split is on the first separator only")
}
