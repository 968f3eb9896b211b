package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
)

func TestParseMarkdownWithFrontmatter(t *testing.T) {
	data := []byte(`---
title: Error handling
description: How to wrap errors
language: go
category: errors
tags: [errors, style]
---
# Error handling

Always wrap errors with context.
`)
	inputs, err := ParseFile("errors.md", data)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(inputs) != 1 {
		t.Fatalf("got %d inputs", len(inputs))
	}
	in := inputs[0]
	if in.Title != "Error handling" || in.Language != "go" || in.Category != "errors" {
		t.Fatalf("input = %+v", in)
	}
	if len(in.Tags) != 2 {
		t.Fatalf("tags = %v", in.Tags)
	}
	if !strings.Contains(in.Content, "Always wrap errors") {
		t.Fatalf("content = %q", in.Content)
	}
	if strings.Contains(in.Content, "title:") {
		t.Fatal("frontmatter leaked into content")
	}
}

func TestParseMarkdownWithoutFrontmatter(t *testing.T) {
	data := []byte("# Naming\n\nUse MixedCaps.")
	inputs, err := ParseFile("naming.md", data)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if inputs[0].Title != "Naming" {
		t.Fatalf("title = %q", inputs[0].Title)
	}
}

func TestParseMarkdownUnterminatedFrontmatter(t *testing.T) {
	_, err := ParseFile("bad.md", []byte("---\ntitle: x\nno closer"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestParseJSONRules(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		data := []byte(`[{"title":"a","content":"x"},{"title":"b","content":"y"}]`)
		inputs, err := ParseFile("rules.json", data)
		if err != nil {
			t.Fatalf("ParseFile: %v", err)
		}
		if len(inputs) != 2 {
			t.Fatalf("got %d inputs", len(inputs))
		}
	})

	t.Run("single object", func(t *testing.T) {
		inputs, err := ParseFile("rule.json", []byte(`{"title":"a","content":"x"}`))
		if err != nil {
			t.Fatalf("ParseFile: %v", err)
		}
		if len(inputs) != 1 || inputs[0].Title != "a" {
			t.Fatalf("inputs = %+v", inputs)
		}
	})
}

func TestParseSourceFile(t *testing.T) {
	inputs, err := ParseFile("handler.py", []byte("def handle():\n    pass\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	in := inputs[0]
	if in.Language != "python" || in.Category != "examples" {
		t.Fatalf("input = %+v", in)
	}
	if !strings.Contains(in.Example, "def handle()") {
		t.Fatalf("example = %q", in.Example)
	}
}

func TestParseUnsupportedFile(t *testing.T) {
	_, err := ParseFile("rules.xlsx", []byte("x"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
