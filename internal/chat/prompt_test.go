package chat

import (
	"strings"
	"testing"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

func TestAugmentWithDocs(t *testing.T) {
	t.Run("no docs passes message through", func(t *testing.T) {
		if got := augmentWithDocs("how do I reset?", nil); got != "how do I reset?" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("docs are numbered and previewed", func(t *testing.T) {
		docs := []models.RetrievedDocument{
			{Title: "Reset guide", Content: "Hold the button for ten seconds."},
			{Title: "Long doc", Content: strings.Repeat("x", 500)},
		}
		got := augmentWithDocs("how do I reset?", docs)
		if !strings.Contains(got, "1. Reset guide") || !strings.Contains(got, "2. Long doc") {
			t.Fatalf("missing numbered entries:\n%s", got)
		}
		if !strings.Contains(got, strings.Repeat("x", docPreviewRunes)+"...") {
			t.Fatalf("long content not truncated:\n%s", got)
		}
		if strings.Contains(got, strings.Repeat("x", docPreviewRunes+1)) {
			t.Fatalf("preview longer than limit")
		}
	})
}

func TestPreviewRunesMultibyte(t *testing.T) {
	s := strings.Repeat("汉", 10)
	got := previewRunes(s, 4)
	if got != strings.Repeat("汉", 4)+"..." {
		t.Fatalf("got %q", got)
	}
}

func TestBuildMessagesCapsHistory(t *testing.T) {
	var history []models.ChatTurn
	for i := 0; i < 15; i++ {
		history = append(history, models.ChatTurn{Role: "user", Content: "m"})
	}
	msgs := buildMessages(history, "final question")
	if len(msgs) != maxHistoryTurns+1 {
		t.Fatalf("got %d messages, want %d", len(msgs), maxHistoryTurns+1)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "final question" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestBuildMessagesSkipsIncompleteTurns(t *testing.T) {
	history := []models.ChatTurn{
		{Role: "user", Content: "hi"},
		{Role: "", Content: "no role"},
		{Role: "assistant", Content: ""},
	}
	msgs := buildMessages(history, "q")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestComposeRuleSystemEmbedsRule(t *testing.T) {
	rule := &models.CodingRule{
		Title:    "Error wrapping",
		Language: "go",
		Content:  "Wrap errors with %w.",
		Example:  "fmt.Errorf(\"open: %w\", err)",
	}
	sys := composeRuleSystem(rule, "English")
	for _, want := range []string{"Error wrapping", "Wrap errors with %w.", "fmt.Errorf", "English"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
