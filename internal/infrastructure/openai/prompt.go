package openai

import (
	"fmt"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

func buildAnswerPrompt(question, contextText string) string {
	return fmt.Sprintf(`Answer the question based only on the following context:
%s

Question: %s

If the answer is not in the context, say %q.`, contextText, question, domain.FallbackAnswer)
}
