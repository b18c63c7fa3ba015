package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
)

// ChatUseCase answers a question from the k nearest chunks. With nothing
// retrieved it short-circuits to the fallback answer instead of asking the
// model to invent one.
type ChatUseCase struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	generator ports.AnswerGenerator
	scorer    ports.SimilarityScorer
	topK      int
}

func NewChatUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	generator ports.AnswerGenerator,
	scorer ports.SimilarityScorer,
	topK int,
) *ChatUseCase {
	if topK <= 0 {
		topK = 3
	}
	return &ChatUseCase{
		embedder:  embedder,
		vectors:   vectors,
		generator: generator,
		scorer:    scorer,
		topK:      topK,
	}
}

func (uc *ChatUseCase) Answer(ctx context.Context, message string) (*domain.Answer, error) {
	start := time.Now()

	queryVector, err := uc.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.vectors.Query(ctx, queryVector, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}

	if len(chunks) == 0 {
		return &domain.Answer{
			Text:      domain.FallbackAnswer,
			Sources:   []string{},
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil
	}

	contextText := joinContext(chunks)

	answerText, err := uc.generator.GenerateAnswer(ctx, message, contextText)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	var similarity float64
	if uc.scorer != nil {
		similarity = uc.scorer.Score(message, contextText)
	}

	return &domain.Answer{
		Text:       answerText,
		Sources:    distinctSources(chunks),
		Similarity: similarity,
		LatencyMS:  time.Since(start).Milliseconds(),
	}, nil
}

func joinContext(chunks []domain.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func distinctSources(chunks []domain.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		source := c.Source
		if source == "" {
			source = "unknown"
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	return out
}
