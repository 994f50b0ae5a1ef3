package query

import (
	"fmt"
	"strings"

	"github.com/unimate/backend/internal/storage/models"
)

// AddInlineCitations appends a page-citation note to a grounded answer.
// Pages are deduplicated in rank order; with no pages the answer is
// returned unchanged.
func AddInlineCitations(answer string, pages []int) string {
	seen := make(map[int]struct{}, len(pages))
	var unique []int
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	if len(unique) == 0 {
		return answer
	}

	refs := make([]string, len(unique))
	for i, p := range unique {
		refs[i] = fmt.Sprintf("[p. %d]", p)
	}

	return answer + "\n\nSources: " + strings.Join(refs, ", ")
}

// ExtractiveFallback substitutes the highest-ranked chunk's raw text when
// generation fails on a grounded query. Returns "" when there is nothing to
// extract.
func ExtractiveFallback(candidates []models.Candidate, meta map[string]models.ChunkMeta) string {
	for _, cand := range candidates {
		if m, ok := meta[cand.ID]; ok {
			return strings.TrimSpace(m.Text)
		}
	}
	return ""
}
