package vector

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// lexDoc is one chunk prepared for lexical scoring.
type lexDoc struct {
	chunkID string
	tokens  map[string]struct{}
}

func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// lexicalSearch ranks chunks by token overlap with the query using the
// Ochiai coefficient. Zero-overlap chunks are dropped.
func lexicalSearch(docs []lexDoc, query string, topK int) []Hit {
	qTokens := tokenize(query)
	if len(qTokens) == 0 || topK <= 0 {
		return nil
	}

	var hits []Hit
	for _, d := range docs {
		if len(d.tokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range qTokens {
			if _, ok := d.tokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / math.Sqrt(float64(len(qTokens))*float64(len(d.tokens)))
		hits = append(hits, Hit{ChunkID: d.chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
