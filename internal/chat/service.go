package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
)

// retrievalTopK is how many knowledge documents ride along with each
// knowledge-augmented request.
const retrievalTopK = 3

// fallbackAnswer is returned from the non-streaming bot flow when the model
// is unreachable or produced nothing visible.
const fallbackAnswer = "Sorry, I can't answer that right now. Please try again in a moment."

// Streamer is the slice of the model client the chat pipeline needs.
type Streamer interface {
	ChatStream(ctx context.Context, req ollama.ChatRequest) (<-chan ollama.Chunk, error)
}

// Retriever finds knowledge documents relevant to a query. Implementations
// degrade to an empty result on failure so chat never blocks on retrieval.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]models.RetrievedDocument, error)
}

// Event is one frame of an answer stream. Exactly one terminal event with
// Done set closes every stream; an Err frame, when present, precedes it.
type Event struct {
	Content string
	Err     string
	Done    bool
}

// Request is a plain chat request. Rule, when set, switches the pipeline to
// rule-guided mode and disables knowledge retrieval.
type Request struct {
	Message        string
	ConversationID string
	History        []models.ChatTurn
	Rule           *models.CodingRule
}

// Validate implements request validation for Request.
func (r *Request) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 8000)),
	)
}

// Service orchestrates one model round trip per request: retrieve context,
// compose the prompt, stream the model's tokens through a segmenter, and
// emit visible-content events.
type Service struct {
	llm       Streamer
	retriever Retriever
	language  string
	logger    *slog.Logger
}

func NewService(llm Streamer, retriever Retriever, language string, logger *slog.Logger) *Service {
	return &Service{
		llm:       llm,
		retriever: retriever,
		language:  language,
		logger:    logger,
	}
}

// Stream answers a plain or rule-guided chat request. The returned channel
// carries visible content with reasoning stripped, then a terminal done
// event; it is closed by the service. Upstream failures after the stream
// starts surface as an in-band Err event, never as a broken channel.
func (s *Service) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var system, userContent string
	if req.Rule != nil {
		system = composeRuleSystem(req.Rule, s.language)
		userContent = req.Message
	} else {
		system = composeSystem(s.language)
		userContent = augmentWithDocs(req.Message, s.retrieve(ctx, req.Message))
	}

	upstream, err := s.llm.ChatStream(ctx, ollama.ChatRequest{
		System:   system,
		Messages: buildMessages(req.History, userContent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: starting model stream: %v", domain.ErrUnavailable, err)
	}

	events := make(chan Event, 16)
	go s.pump(ctx, upstream, NewSegmenter(), events)
	return events, nil
}

// Answer runs a request to completion and returns the full visible answer.
// Used where the caller wants one response body instead of a stream.
func (s *Service) Answer(ctx context.Context, req *Request) (string, error) {
	events, err := s.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	var answer string
	for ev := range events {
		if ev.Err != "" {
			return "", fmt.Errorf("%w: %s", domain.ErrUnavailable, ev.Err)
		}
		answer += ev.Content
	}
	return answer, nil
}

// BotStream answers a message for an embeddable bot. Output is passed
// through unfiltered; bots that run without a knowledge base answer from a
// canned response instead of the model.
func (s *Service) BotStream(ctx context.Context, bot *models.Bot, message string) (<-chan Event, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	events := make(chan Event, 16)

	if !bot.KnowledgeBaseEnabled {
		go func() {
			defer close(events)
			events <- Event{Content: cannedBotReply(bot)}
			events <- Event{Done: true}
		}()
		return events, nil
	}

	userContent := augmentWithDocs(message, s.retrieve(ctx, message))
	upstream, err := s.llm.ChatStream(ctx, ollama.ChatRequest{
		System:   composeBotSystem(bot, s.language),
		Messages: []ollama.Message{{Role: "user", Content: userContent}},
	})
	if err != nil {
		go func() {
			defer close(events)
			events <- Event{Content: fallbackAnswer}
			events <- Event{Done: true}
		}()
		return events, nil
	}

	go s.pump(ctx, upstream, NewPassthroughSegmenter(), events)
	return events, nil
}

// BotChat answers a bot message in one shot. Reasoning content is filtered
// out of the accumulated answer; any failure degrades to a polite fallback
// rather than an error, since the caller is an embedded widget.
func (s *Service) BotChat(ctx context.Context, bot *models.Bot, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if !bot.KnowledgeBaseEnabled {
		return cannedBotReply(bot), nil
	}

	userContent := augmentWithDocs(message, s.retrieve(ctx, message))
	upstream, err := s.llm.ChatStream(ctx, ollama.ChatRequest{
		System:   composeBotSystem(bot, s.language),
		Messages: []ollama.Message{{Role: "user", Content: userContent}},
	})
	if err != nil {
		s.logger.Warn("bot chat unavailable", "bot_id", bot.ID, "error", err)
		return fallbackAnswer, nil
	}

	seg := NewSegmenter()
	var answer string
	for chunk := range upstream {
		if chunk.Err != nil {
			s.logger.Warn("bot chat stream failed", "bot_id", bot.ID, "error", chunk.Err)
			return fallbackAnswer, nil
		}
		for _, frag := range seg.Feed(chunk.Content) {
			answer += frag
		}
		if chunk.Done {
			break
		}
	}
	answer += seg.Flush()

	if answer == "" {
		return fallbackAnswer, nil
	}
	return answer, nil
}

// retrieve fetches knowledge context, degrading to none on failure.
func (s *Service) retrieve(ctx context.Context, query string) []models.RetrievedDocument {
	docs, err := s.retriever.Search(ctx, query, retrievalTopK)
	if err != nil {
		s.logger.Warn("knowledge retrieval failed, continuing without context", "error", err)
		return nil
	}
	return docs
}

// pump drains the model stream through a segmenter into events, honoring
// context cancellation. It always closes events and always emits a terminal
// done frame on the non-cancelled paths.
func (s *Service) pump(ctx context.Context, upstream <-chan ollama.Chunk, seg *Segmenter, events chan<- Event) {
	defer close(events)

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for chunk := range upstream {
		if chunk.Err != nil {
			s.logger.Error("model stream failed", "error", chunk.Err)
			if send(Event{Err: fmt.Sprintf("generating response: %v", chunk.Err)}) {
				send(Event{Done: true})
			}
			return
		}
		if chunk.Content != "" {
			for _, frag := range seg.Feed(chunk.Content) {
				if !send(Event{Content: frag}) {
					return
				}
			}
		}
		if chunk.Done {
			break
		}
	}

	if tail := seg.Flush(); tail != "" {
		if !send(Event{Content: tail}) {
			return
		}
	}
	send(Event{Done: true})
}

// cannedBotReply answers for bots that opted out of the knowledge base.
func cannedBotReply(bot *models.Bot) string {
	replies := []string{
		fmt.Sprintf("Hi, I'm %s. Thanks for reaching out, a teammate will follow up shortly.", bot.Name),
		fmt.Sprintf("Thanks for your message! %s has noted it and someone will get back to you.", bot.Name),
		"Got it, thanks! We'll get back to you as soon as we can.",
	}
	return replies[rand.Intn(len(replies))]
}
