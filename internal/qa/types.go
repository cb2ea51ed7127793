package qa

import "github.com/pageproof/pageproof/internal/models"

// RetrievedChunk is a chunk returned by nearest-neighbour search with its
// cosine distance to the question.
type RetrievedChunk struct {
	Chunk    *models.Chunk
	Distance float64
}

// GeneratedAnswer is a validated model response: the answer text and the
// retrieved chunks it cited.
type GeneratedAnswer struct {
	Answer string
	Cited  []*models.Chunk
}

// Candidate is one line of chunk text considered as evidence.
type Candidate struct {
	Page          int
	LineText      string
	QuestionScore float64
	AnswerScore   float64
	CombinedScore float64
	SourceChunkID string
}
