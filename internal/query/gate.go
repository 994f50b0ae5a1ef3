package query

// Mode is the answering strategy chosen for a query.
type Mode int

const (
	ModeGrounded Mode = iota
	ModeGeneric
)

func (m Mode) String() string {
	if m == ModeGeneric {
		return "generic"
	}
	return "grounded"
}

// Decide picks the mode from the classifier verdict and the retrieval
// outcome. It is a pure function: generic queries, low confidence, and empty
// candidate sets all route to generic answering; everything else is
// grounded.
func Decide(genericQuery bool, confidence float64, candidateCount int, threshold float64) Mode {
	if genericQuery {
		return ModeGeneric
	}
	if confidence < threshold {
		return ModeGeneric
	}
	if candidateCount == 0 {
		return ModeGeneric
	}
	return ModeGrounded
}
