package query

import "strings"

// Classifier decides whether a query is small talk that should skip
// retrieval entirely.
type Classifier interface {
	IsGeneric(query string) bool
}

// KeywordClassifier is the default heuristic: exact greetings and
// meta-questions about the assistant count as generic, everything else is
// treated as a document question.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var genericExact = map[string]struct{}{
	"hi":             {},
	"hello":          {},
	"hey":            {},
	"yo":             {},
	"hiya":           {},
	"howdy":          {},
	"thanks":         {},
	"thank you":      {},
	"ok":             {},
	"okay":           {},
	"cool":           {},
	"bye":            {},
	"goodbye":        {},
	"see you":        {},
	"good morning":   {},
	"good afternoon": {},
	"good evening":   {},
	"good night":     {},
	"how are you":    {},
	"what's up":      {},
	"whats up":       {},
	"sup":            {},
}

var genericPrefixes = []string{
	"who are you",
	"what are you",
	"what can you do",
	"what do you do",
	"how do you work",
	"what is your name",
	"what's your name",
	"whats your name",
	"are you a bot",
	"are you an ai",
	"are you a robot",
	"are you human",
	"tell me about yourself",
	"can you help",
	"help me",
}

func (c *KeywordClassifier) IsGeneric(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, ".!?, ")

	if q == "" {
		return true
	}
	if _, ok := genericExact[q]; ok {
		return true
	}
	for _, prefix := range genericPrefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}
