package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unimate/backend/internal/storage/models"
)

func TestAddInlineCitations(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		pages  []int
		want   string
	}{
		{
			name:   "no pages is identity",
			answer: "Refunds take 14 days.",
			pages:  nil,
			want:   "Refunds take 14 days.",
		},
		{
			name:   "empty page slice is identity",
			answer: "Refunds take 14 days.",
			pages:  []int{},
			want:   "Refunds take 14 days.",
		},
		{
			name:   "single page",
			answer: "Refunds take 14 days.",
			pages:  []int{3},
			want:   "Refunds take 14 days.\n\nSources: [p. 3]",
		},
		{
			name:   "duplicates collapse in rank order",
			answer: "See the policy.",
			pages:  []int{5, 2, 5, 2, 7},
			want:   "See the policy.\n\nSources: [p. 5], [p. 2], [p. 7]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddInlineCitations(tt.answer, tt.pages))
		})
	}
}

func TestExtractiveFallback(t *testing.T) {
	meta := map[string]models.ChunkMeta{
		"col::0": {Document: "handbook.pdf", Page: 2, Text: "  Refunds are processed within 14 days.  "},
		"col::1": {Document: "handbook.pdf", Page: 9, Text: "Second best chunk."},
	}

	candidates := []models.Candidate{
		{ID: "col::0", Score: 0.9},
		{ID: "col::1", Score: 0.4},
	}

	assert.Equal(t, "Refunds are processed within 14 days.", ExtractiveFallback(candidates, meta))
}

func TestExtractiveFallbackSkipsMissingMeta(t *testing.T) {
	meta := map[string]models.ChunkMeta{
		"col::1": {Document: "handbook.pdf", Page: 9, Text: "Known chunk."},
	}

	candidates := []models.Candidate{
		{ID: "col::0", Score: 0.9},
		{ID: "col::1", Score: 0.4},
	}

	assert.Equal(t, "Known chunk.", ExtractiveFallback(candidates, meta))
	assert.Equal(t, "", ExtractiveFallback(nil, meta))
	assert.Equal(t, "", ExtractiveFallback(candidates, nil))
}
