package query

import (
	"fmt"
	"strings"

	"github.com/unimate/backend/internal/storage/models"
)

// NotFoundMarker is the phrase the grounded prompt instructs the model to
// emit when the excerpts do not contain the answer. Its presence in a
// grounded answer triggers the single generic retry.
const NotFoundMarker = "Not found in the document"

const snippetRuneLimit = 200

type Prompt struct {
	System string
	User   string
}

const groundedSystemPrompt = `You are UniMate, a university study assistant. Answer the student's question using ONLY the document excerpts provided.

Rules:
- Base every statement on the excerpts; do not add outside knowledge.
- Be concise and direct.
- If the excerpts do not contain the answer, reply with exactly: "Not found in the document."`

const generalSystemPrompt = `You are UniMate, a friendly university study assistant. Answer from general knowledge, and use the conversation so far to stay consistent. Be concise. If the student seems to be asking about their uploaded documents, suggest uploading them or rephrasing the question.`

// BuildPrompt assembles the system and user prompts. When general is true
// the context block is ignored and the model answers from general
// knowledge.
func BuildPrompt(userQuery, conversationSummary, contextBlock string, general bool) Prompt {
	if general {
		user := fmt.Sprintf("Conversation so far: %s\n\nQuestion: %s", conversationSummary, userQuery)
		return Prompt{System: generalSystemPrompt, User: user}
	}

	user := fmt.Sprintf("Conversation so far: %s\n\nDocument excerpts:\n%s\n\nQuestion: %s",
		conversationSummary, contextBlock, userQuery)
	return Prompt{System: groundedSystemPrompt, User: user}
}

// FormatContext renders the ranked candidates into the excerpt block handed
// to the model, the page list for citations (rank order, duplicates kept),
// and the caller-facing source records.
func FormatContext(candidates []models.Candidate, meta map[string]models.ChunkMeta) (string, []int, []models.Source) {
	if len(candidates) == 0 {
		return "", nil, nil
	}

	var builder strings.Builder
	pages := make([]int, 0, len(candidates))
	sources := make([]models.Source, 0, len(candidates))

	for i, cand := range candidates {
		m, ok := meta[cand.ID]
		if !ok {
			continue
		}

		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("[%s p.%d] %s", m.Document, m.Page, m.Text))

		pages = append(pages, m.Page)

		collectionID, _ := SplitGlobalID(cand.ID)
		sources = append(sources, models.Source{
			CollectionID: collectionID,
			Document:     m.Document,
			Page:         m.Page,
			Snippet:      truncateRunes(m.Text, snippetRuneLimit),
			Score:        cand.Score,
		})
	}

	return builder.String(), pages, sources
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
