package rules

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
)

// languageByExtension maps source-file extensions to the language a rule
// parsed from that file is tagged with.
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".rs":    "rust",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".sh":    "shell",
	".sql":   "sql",
}

// frontmatter is the optional YAML header of a markdown rule file.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Language    string   `yaml:"language"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
}

// ParseFile turns an uploaded file into rule inputs. Markdown files may carry
// YAML frontmatter, JSON files carry explicit rule objects, and recognized
// source files become a single example-only rule for their language.
func ParseFile(name string, data []byte) ([]*Input, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".json":
		return parseJSON(data)
	case ext == ".md" || ext == ".markdown":
		in, err := parseMarkdown(name, data)
		if err != nil {
			return nil, err
		}
		return []*Input{in}, nil
	case languageByExtension[ext] != "":
		return []*Input{parseSource(name, ext, data)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrValidation, ext)
	}
}

func parseJSON(data []byte) ([]*Input, error) {
	var items []*Input
	if err := json.Unmarshal(data, &items); err != nil {
		// A single object upload is also accepted.
		var one Input
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("%w: parsing json rules: %v", domain.ErrValidation, err)
		}
		items = []*Input{&one}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no rules in file", domain.ErrValidation)
	}
	return items, nil
}

// parseMarkdown splits an optional "---" delimited YAML header off the body.
func parseMarkdown(name string, data []byte) (*Input, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	in := &Input{FileName: filepath.Base(name)}

	if rest, ok := strings.CutPrefix(text, "---\n"); ok {
		header, body, found := strings.Cut(rest, "\n---")
		if !found {
			return nil, fmt.Errorf("%w: unterminated frontmatter in %s", domain.ErrValidation, name)
		}
		var fm frontmatter
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return nil, fmt.Errorf("%w: parsing frontmatter in %s: %v", domain.ErrValidation, name, err)
		}
		in.Title = fm.Title
		in.Description = fm.Description
		in.Language = fm.Language
		in.Category = fm.Category
		in.Tags = fm.Tags
		text = strings.TrimPrefix(body, "\n")
	}

	in.Content = strings.TrimSpace(text)
	if in.Title == "" {
		in.Title = titleFromMarkdown(in.Content, name)
	}
	if in.Content == "" {
		return nil, fmt.Errorf("%w: %s has no rule content", domain.ErrValidation, name)
	}
	return in, nil
}

// titleFromMarkdown uses the first heading, falling back to the file name.
func titleFromMarkdown(content, name string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

func parseSource(name, ext string, data []byte) *Input {
	base := filepath.Base(name)
	lang := languageByExtension[ext]
	return &Input{
		Title:    fmt.Sprintf("Code example: %s", base),
		Language: lang,
		Category: "examples",
		Content:  fmt.Sprintf("Reference %s code from %s.", lang, base),
		Example:  string(data),
		FileName: base,
		Tags:     []string{"upload", lang},
	}
}
