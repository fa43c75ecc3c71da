package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// systemPrompt pins the model to the retrieved document context. It allows
// inference across related passages before the model may declare the context
// insufficient.
const systemPrompt = `You are an assistant that answers questions about an uploaded document.
Answer using only the provided context. You may combine and reason over related passages from the context to reach an answer. If the context, even combined, does not contain enough information to answer, say that the document does not cover the question. Do not use outside knowledge.`

// QAMessages builds the two-message exchange for one question over the
// retrieved segments.
func QAMessages(segments []string, question string) []*schema.Message {
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(segments, "\n\n"), question)
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	}
}
