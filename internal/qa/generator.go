package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/llm"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/pkg/utils"
)

const answerSystemPrompt = `You answer questions about a single document using only the provided chunks.
Respond with exactly one JSON object of the form
{"answer": "...", "citations": [{"chunk_id": "..."}]}
where each chunk_id is one of the CHUNK_ID values you were given and lists every chunk your answer relies on.
If the chunks do not contain the answer, say so in the answer field.`

// uncertaintyMarkers flag answers where the model hedged instead of grounding.
var uncertaintyMarkers = []string{
	"i don't know",
	"i do not know",
	"cannot find",
	"can't find",
	"no information",
	"not mentioned",
	"unable to determine",
	"not enough information",
}

// Generator turns retrieved chunks plus a question into a validated answer.
// Exactly one configured model is used; a failed call is a hard error, never
// retried against another model.
type Generator struct {
	chat             llm.ChatClient
	requireCitations bool
	logger           *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(chat llm.ChatClient, requireCitations bool, logger *zap.Logger) *Generator {
	return &Generator{chat: chat, requireCitations: requireCitations, logger: logger}
}

// modelResponse is the JSON contract the model must produce.
type modelResponse struct {
	Answer    string `json:"answer"`
	Citations []struct {
		ChunkID string `json:"chunk_id"`
	} `json:"citations"`
}

// Generate produces a grounded answer for the question. Contract violations
// (unparseable output, empty or hedged answer, missing citations when they
// are required) return ErrGenerationInvalid; transport failures are returned
// as-is.
func (g *Generator) Generate(ctx context.Context, question string, retrieved []*RetrievedChunk) (*GeneratedAnswer, error) {
	prompt := buildPrompt(question, retrieved)

	raw, err := g.chat.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	parsed, err := parseModelResponse(raw)
	if err != nil {
		g.logger.Warn("unparseable model response",
			zap.String("model", g.chat.ModelName()),
			zap.String("raw", utils.Truncate(raw, 200)))
		return nil, err
	}

	answer := strings.TrimSpace(parsed.Answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrGenerationInvalid)
	}
	lower := strings.ToLower(answer)
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			return nil, fmt.Errorf("%w: uncertain answer", ErrGenerationInvalid)
		}
	}

	cited := resolveCitations(parsed, retrieved)
	if len(cited) == 0 {
		if g.requireCitations {
			return nil, fmt.Errorf("%w: no valid citations", ErrGenerationInvalid)
		}
		// Citation enforcement off: fall back to the best retrieved chunk so
		// evidence building still has a starting point.
		cited = []*models.Chunk{retrieved[0].Chunk}
	}

	return &GeneratedAnswer{Answer: answer, Cited: cited}, nil
}

// buildPrompt tags every chunk with its id and page so the model can cite it.
func buildPrompt(question string, retrieved []*RetrievedChunk) string {
	var b strings.Builder
	for _, rc := range retrieved {
		fmt.Fprintf(&b, "CHUNK_ID=%s | page %d\n%s\n\n", rc.Chunk.ID, rc.Chunk.Page, rc.Chunk.Text)
	}
	fmt.Fprintf(&b, "QUESTION: %s", question)
	return b.String()
}

// parseModelResponse decodes the model output. If the whole payload is not
// valid JSON it retries on the outermost brace-delimited substring before
// giving up.
func parseModelResponse(raw string) (*modelResponse, error) {
	var resp modelResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err == nil {
		return &resp, nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err == nil {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("%w: response is not valid JSON", ErrGenerationInvalid)
}

// resolveCitations keeps citations that name a retrieved chunk, deduplicated,
// in citation order. Unknown ids are dropped rather than failing the answer.
func resolveCitations(resp *modelResponse, retrieved []*RetrievedChunk) []*models.Chunk {
	byID := make(map[string]*models.Chunk, len(retrieved))
	for _, rc := range retrieved {
		byID[rc.Chunk.ID] = rc.Chunk
	}
	seen := make(map[string]bool)
	var cited []*models.Chunk
	for _, c := range resp.Citations {
		chunk, ok := byID[c.ChunkID]
		if !ok || seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		cited = append(cited, chunk)
	}
	return cited
}
