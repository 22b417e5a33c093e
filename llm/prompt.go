package llm

import "fmt"

const groundedSystemPrompt = `You are a knowledge base assistant. Answer the user's question using ONLY the provided context. Rules:
1. Base every statement on the numbered context blocks below.
2. Cite the blocks you used with bracketed numbers, e.g. [1] or [2].
3. If the context does not contain the answer, say so plainly instead of guessing.
4. Keep the answer concise and factual.`

const fallbackSystemPrompt = `You are a knowledge base assistant, but no relevant content was found in the knowledge base for this question. Briefly explain that the knowledge base has no matching information, and suggest that the user verify the knowledge base has been populated or try rephrasing the question. Do not invent an answer.`

// GroundedPrompt builds the system and user messages for an answer backed by
// retrieved context. The context string is expected to contain numbered
// blocks so the model's citations line up with the returned sources.
func GroundedPrompt(question, context string) (system, user string) {
	user = fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question)
	return groundedSystemPrompt, user
}

// FallbackPrompt builds the messages used when retrieval produced nothing
// usable.
func FallbackPrompt(question string) (system, user string) {
	return fallbackSystemPrompt, question
}
