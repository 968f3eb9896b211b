package chat

import (
	"fmt"
	"strings"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
)

const (
	// maxHistoryTurns caps how much prior conversation is replayed to the
	// model on each request.
	maxHistoryTurns = 10

	// docPreviewRunes limits how much of each retrieved document is quoted
	// into the prompt.
	docPreviewRunes = 300
)

// composeSystem builds the assistant persona for plain knowledge-augmented
// chat.
func composeSystem(language string) string {
	var b strings.Builder
	b.WriteString("You are a professional customer support assistant. ")
	b.WriteString("Answer the user's question accurately and concisely. ")
	b.WriteString("When reference material is provided, prefer it over your own prior knowledge, ")
	b.WriteString("and say so plainly when the material does not cover the question.")
	if language != "" {
		fmt.Fprintf(&b, " Always answer in %s.", language)
	}
	return b.String()
}

// composeRuleSystem builds the persona for rule-guided chat, where a coding
// rule document replaces knowledge retrieval as the grounding context.
func composeRuleSystem(rule *models.CodingRule, language string) string {
	var b strings.Builder
	b.WriteString("You are a coding standards assistant. ")
	b.WriteString("Answer strictly according to the following rule document.\n\n")
	fmt.Fprintf(&b, "Rule: %s\n", rule.Title)
	if rule.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", rule.Language)
	}
	if rule.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", rule.Description)
	}
	fmt.Fprintf(&b, "\n%s\n", rule.Content)
	if rule.Example != "" {
		fmt.Fprintf(&b, "\nExample:\n%s\n", rule.Example)
	}
	if language != "" {
		fmt.Fprintf(&b, "\nAlways answer in %s.", language)
	}
	return b.String()
}

// composeBotSystem builds the persona for an embeddable bot. The bot's own
// greeting and description shape the voice; retrieval context rides on the
// user message, not here.
func composeBotSystem(bot *models.Bot, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %q, a customer support bot", bot.Name)
	if bot.Description != "" {
		fmt.Fprintf(&b, ": %s", bot.Description)
	}
	b.WriteString(". Be friendly and keep answers short enough for a chat widget. ")
	b.WriteString("Do not show your reasoning process, only the final answer.")
	if language != "" {
		fmt.Fprintf(&b, " Always answer in %s.", language)
	}
	return b.String()
}

// augmentWithDocs appends retrieved reference material to the user's message.
// With no documents the message passes through unchanged, so the model never
// sees an empty context block.
func augmentWithDocs(message string, docs []models.RetrievedDocument) string {
	if len(docs) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\n[Reference material]\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, doc.Title, previewRunes(doc.Content, docPreviewRunes))
	}
	return b.String()
}

// previewRunes truncates s to at most n runes, appending an ellipsis when
// content was cut. Truncation is by rune so multi-byte text is never split.
func previewRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// buildMessages turns capped history plus the (possibly augmented) user
// message into the model's message list. Turns with a missing role or empty
// content are skipped.
func buildMessages(history []models.ChatTurn, userContent string) []ollama.Message {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]ollama.Message, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == "" || turn.Content == "" {
			continue
		}
		msgs = append(msgs, ollama.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(msgs, ollama.Message{Role: "user", Content: userContent})
}
