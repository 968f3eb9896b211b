// Package ollama is the HTTP client for a locally hosted Ollama backend.
// It covers the streaming chat endpoint, batch embeddings (with a fallback to
// the legacy per-text endpoint) and the model inventory endpoints.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds client settings. All fields have working defaults applied by New.
type Config struct {
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	KeepAlive      string
	ChatTimeout    time.Duration
	EmbedTimeout   time.Duration
}

// Client talks to one Ollama server. It is safe for concurrent use; the
// underlying http.Client is shared across requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "deepseek-r1:latest"
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = "5m"
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 60 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		// No client-level timeout: streaming responses stay open for the
		// whole generation. Deadlines come from per-call contexts.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Message is one entry of the chat message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a chat call. Model defaults to the configured chat
// model; System, when non-empty, is prepended as a system message.
type ChatRequest struct {
	Messages []Message
	System   string
	Model    string
}

// Chunk is one streamed fragment. Err is set at most once, as the final
// element before the channel closes.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

type chatWireRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	KeepAlive string    `json:"keep_alive"`
}

type chatWireResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// ChatStream starts a streaming chat call and returns a channel of fragments.
// Fragments arrive in arbitrary byte-level chunks with no alignment to tokens
// or tags. Malformed NDJSON lines are skipped. The channel is closed after the
// backend reports done, the context is cancelled, or an error is delivered.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	body, err := json.Marshal(c.wireRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("call ollama chat: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("ollama chat returned status %d", resp.StatusCode)
	}

	c.logger.Debug("chat stream started",
		"model", c.model(req),
		"messages", len(req.Messages),
	)

	ch := make(chan Chunk, 16)

	go func() {
		defer close(ch)
		defer cancel()
		defer resp.Body.Close()

		// Sends race against consumer cancellation; a plain send would
		// strand this goroutine (and the response body) once the buffer
		// fills. Every send must also watch ctx.
		send := func(c Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				send(Chunk{Done: true, Err: ctx.Err()})
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var wire chatWireResponse
			if err := json.Unmarshal(line, &wire); err != nil {
				// Protocol noise, not an error
				continue
			}

			if wire.Message.Content != "" {
				if !send(Chunk{Content: wire.Message.Content}) {
					return
				}
			}
			if wire.Done {
				send(Chunk{Done: true})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(Chunk{Done: true, Err: fmt.Errorf("read chat stream: %w", err)})
			return
		}
		// Upstream closed without a done marker; still terminate cleanly.
		send(Chunk{Done: true})
	}()

	return ch, nil
}

// Chat performs a non-streaming chat call and returns the full answer text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)
	defer cancel()

	var out chatWireResponse
	if err := c.postJSON(ctx, "/api/chat", c.wireRequest(req, false), &out); err != nil {
		return "", err
	}
	return out.Message.Content, nil
}

func (c *Client) wireRequest(req ChatRequest, stream bool) chatWireRequest {
	messages := req.Messages
	if req.System != "" {
		messages = append([]Message{{Role: "system", Content: req.System}}, messages...)
	}
	return chatWireRequest{
		Model:     c.model(req),
		Messages:  messages,
		Stream:    stream,
		KeepAlive: c.cfg.KeepAlive,
	}
}

func (c *Client) model(req ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.ChatModel
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embedding vectors for the given texts via /api/embed.
// When the batch endpoint fails it falls back to the legacy per-text
// /api/embeddings endpoint, and finally to zero-vector placeholders so that
// callers always get one vector per input.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	defer cancel()

	var out embedResponse
	err := c.postJSON(ctx, "/api/embed", embedRequest{
		Model:     c.cfg.EmbeddingModel,
		Input:     texts,
		Truncate:  true,
		KeepAlive: c.cfg.KeepAlive,
	}, &out)
	if err == nil && len(out.Embeddings) == len(texts) {
		return out.Embeddings, nil
	}
	if err != nil {
		c.logger.Warn("embed endpoint failed, trying legacy endpoint", "error", err)
	}

	return c.embedLegacy(ctx, texts)
}

type legacyEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type legacyEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) embedLegacy(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))

	for _, text := range texts {
		var out legacyEmbedResponse
		err := c.postJSON(ctx, "/api/embeddings", legacyEmbedRequest{
			Model:  c.cfg.EmbeddingModel,
			Prompt: text,
		}, &out)
		if err != nil || len(out.Embedding) == 0 {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("embed: %w", ctx.Err())
			}
			c.logger.Warn("legacy embed failed for text, using zero vector", "error", err)
			embeddings = append(embeddings, make([]float32, c.cfg.EmbeddingDim))
			continue
		}
		embeddings = append(embeddings, out.Embedding)
	}

	return embeddings, nil
}

// ModelInfo describes one model known to or loaded by the server.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type modelListResponse struct {
	Models []ModelInfo `json:"models"`
}

// Health reports whether the Ollama server responds on /api/tags.
func (c *Client) Health(ctx context.Context) bool {
	_, err := c.listModels(ctx, "/api/tags")
	return err == nil
}

// ListModels returns the models available on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return c.listModels(ctx, "/api/tags")
}

// ListRunningModels returns the models currently loaded in memory.
func (c *Client) ListRunningModels(ctx context.Context) ([]ModelInfo, error) {
	return c.listModels(ctx, "/api/ps")
}

func (c *Client) listModels(ctx context.Context, path string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama %s returned status %d", path, resp.StatusCode)
	}

	var out modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return out.Models, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ChatModel exposes the configured chat model name (for health reporting).
func (c *Client) ChatModel() string { return c.cfg.ChatModel }

// EmbeddingModel exposes the configured embedding model name.
func (c *Client) EmbeddingModel() string { return c.cfg.EmbeddingModel }
