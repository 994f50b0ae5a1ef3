package ingestion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// chunkSentences packs a page's sentences into chunks of roughly chunkSize
// characters, carrying the last sentence of each chunk into the next so
// context is not lost at the boundary.
func chunkSentences(text string, chunkSize int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	lastSentence := ""

	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+1+len(s) > chunkSize {
			chunks = append(chunks, cur.String())
			cur.Reset()
			if len(lastSentence) < chunkSize/2 {
				cur.WriteString(lastSentence)
			}
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(s)
		lastSentence = s
	}

	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}

	return chunks
}

// splitSentences segments text with prose. Tagging and entity extraction are
// disabled; only the segmenter runs. If segmentation fails or finds nothing,
// the whole text is one sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	var sentences []string
	for _, s := range doc.Sentences() {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			sentences = append(sentences, t)
		}
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}
