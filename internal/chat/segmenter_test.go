package chat

import (
	"strings"
	"testing"
)

func collect(t *testing.T, seg *Segmenter, chunks []string) string {
	t.Helper()
	var b strings.Builder
	for _, c := range chunks {
		for _, frag := range seg.Feed(c) {
			b.WriteString(frag)
		}
	}
	b.WriteString(seg.Flush())
	return b.String()
}

// splitEverywhere returns every two-way split of s plus the whole string.
func splits(s string) [][]string {
	out := [][]string{{s}}
	for i := 1; i < len(s); i++ {
		out = append(out, []string{s[:i], s[i:]})
	}
	return out
}

func TestSegmenterPlainTextIsLossless(t *testing.T) {
	chunks := []string{"Hello", ", ", "world", "! How can I help?"}
	got := collect(t, NewSegmenter(), chunks)
	want := strings.Join(chunks, "")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSegmenterDropsReasoningAtEveryBoundary(t *testing.T) {
	raw := "A<think>step 1\nstep 2</think>C"
	for _, chunks := range splits(raw) {
		if got := collect(t, NewSegmenter(), chunks); got != "AC" {
			t.Fatalf("chunks %q: got %q, want %q", chunks, got, "AC")
		}
	}
}

func TestSegmenterByteAtATime(t *testing.T) {
	raw := "Answer: <think>because</think>42"
	var chunks []string
	for i := 0; i < len(raw); i++ {
		chunks = append(chunks, raw[i:i+1])
	}
	if got := collect(t, NewSegmenter(), chunks); got != "Answer: 42" {
		t.Fatalf("got %q, want %q", got, "Answer: 42")
	}
}

func TestSegmenterMultipleBlocks(t *testing.T) {
	raw := "a<think>x</think>b<think>y</think>c"
	if got := collect(t, NewSegmenter(), []string{raw}); got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
}

func TestSegmenterUnterminatedBlockIsDiscarded(t *testing.T) {
	got := collect(t, NewSegmenter(), []string{"visible<think>never closed"})
	if got != "visible" {
		t.Fatalf("got %q, want %q", got, "visible")
	}
}

func TestSegmenterWhitespaceBeforeMarkerIsDropped(t *testing.T) {
	got := collect(t, NewSegmenter(), []string{"  \n<think>hidden</think>answer"})
	if got != "answer" {
		t.Fatalf("got %q, want %q", got, "answer")
	}
}

func TestSegmenterPartialMarkerReleasedAtEnd(t *testing.T) {
	// "<thin" could still become a marker, so it is withheld mid-stream and
	// released as ordinary text when the stream ends.
	seg := NewSegmenter()
	if frags := seg.Feed("price is a<thin"); strings.Join(frags, "") != "price is a" {
		t.Fatalf("mid-stream fragments = %q", frags)
	}
	if got := seg.Flush(); got != "<thin" {
		t.Fatalf("flush = %q, want %q", got, "<thin")
	}
}

func TestSegmenterBrokenMarkerIsPlainText(t *testing.T) {
	raw := "a<thinker>b"
	if got := collect(t, NewSegmenter(), []string{raw}); got != raw {
		t.Fatalf("got %q, want %q", got, raw)
	}
}

func TestPassthroughSegmenterKeepsEverything(t *testing.T) {
	raw := "a<think>reasoning</think>b"
	seg := NewPassthroughSegmenter()
	var b strings.Builder
	for _, frag := range seg.Feed(raw) {
		b.WriteString(frag)
	}
	b.WriteString(seg.Flush())
	if b.String() != raw {
		t.Fatalf("got %q, want %q", b.String(), raw)
	}
}

func TestPartialSuffixLen(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"<", 1},
		{"abc<th", 3},
		{"<think", 6},
		{"<thinx", 0},
		{"a<a<", 1},
	}
	for _, tt := range tests {
		if got := partialSuffixLen(tt.text, openMarker); got != tt.want {
			t.Errorf("partialSuffixLen(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
