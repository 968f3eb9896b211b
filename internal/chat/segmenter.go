// Package chat implements the streaming answer pipeline: prompt composition,
// reasoning-tag segmentation of the model's token stream, and the orchestration
// that ties retrieval, composition and streaming together per request.
package chat

import "strings"

const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

// Segmenter incrementally strips <think>...</think> reasoning annotations from
// a token stream. The upstream transport chunks at arbitrary byte boundaries,
// so a marker may arrive split across chunks; unresolved partial markers are
// buffered until the next chunk disambiguates them.
//
// A Segmenter belongs to exactly one stream. It is not safe for concurrent use
// and must be discarded when the stream terminates.
type Segmenter struct {
	inReasoning bool
	pending     string
	passthrough bool
}

// NewSegmenter returns a segmenter that drops reasoning content (plain chat).
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// NewPassthroughSegmenter returns a segmenter for the embeddable bot-chat
// flow: chunks are forwarded untouched, reasoning markers included.
func NewPassthroughSegmenter() *Segmenter {
	return &Segmenter{passthrough: true}
}

// Feed consumes one raw chunk and returns the visible fragments it releases,
// in input order. Fragments inside a reasoning block are withheld; text that
// might be the start of a marker is buffered until disambiguated.
func (s *Segmenter) Feed(chunk string) []string {
	if s.passthrough {
		if chunk == "" {
			return nil
		}
		return []string{chunk}
	}

	text := s.pending + chunk
	s.pending = ""

	var out []string
	for text != "" {
		if s.inReasoning {
			idx := strings.Index(text, closeMarker)
			if idx < 0 {
				// Still inside the block; everything waits for the closer.
				s.pending = text
				return out
			}
			// Reasoning content is dropped.
			text = text[idx+len(closeMarker):]
			s.inReasoning = false
			continue
		}

		if idx := strings.Index(text, openMarker); idx >= 0 {
			if before := text[:idx]; strings.TrimSpace(before) != "" {
				out = append(out, before)
			}
			s.inReasoning = true
			text = text[idx+len(openMarker):]
			continue
		}

		// No full opening marker. Withhold a trailing partial match, if any,
		// and release the unambiguous prefix.
		if keep := partialSuffixLen(text, openMarker); keep > 0 {
			s.pending = text[len(text)-keep:]
			text = text[:len(text)-keep]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	return out
}

// Flush terminates the stream and returns any final visible fragment.
// A pending partial marker outside a reasoning block is ordinary content and
// is released; content trapped inside an unterminated block is discarded
// rather than leaked.
func (s *Segmenter) Flush() string {
	pending := s.pending
	s.pending = ""
	if s.inReasoning {
		return ""
	}
	return pending
}

// partialSuffixLen returns the length of the longest suffix of text that is a
// proper prefix of marker, or 0 when the tail cannot start a marker.
func partialSuffixLen(text, marker string) int {
	n := len(marker) - 1
	if len(text) < n {
		n = len(text)
	}
	for ; n > 0; n-- {
		if strings.HasPrefix(marker, text[len(text)-n:]) {
			return n
		}
	}
	return 0
}
