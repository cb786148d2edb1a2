// Package suggest relays streamed question suggestions from Gemini.
//
// The model is prompted to produce one string with questions separated by
// '||'. Chunk boundaries are arbitrary — a delimiter can arrive split across
// two chunks ("...happy?|" then "|What's...") — so the stream is parsed
// incrementally instead of re-splitting an accumulated buffer on every chunk.
package suggest

import "strings"

const delimiter = "||"

// Splitter turns an arbitrarily chunked stream into complete segments. Feed
// it chunks as they arrive; it returns each segment exactly once, no matter
// where the chunk boundaries fall.
type Splitter struct {
	buf strings.Builder
}

// Feed appends one chunk and returns the segments completed by it, trimmed
// of surrounding whitespace. Empty segments (leading delimiter, "||||") are
// dropped. Anything after the last delimiter stays buffered until the next
// Feed or Flush.
func (s *Splitter) Feed(chunk string) []string {
	s.buf.WriteString(chunk)

	text := s.buf.String()
	if !strings.Contains(text, delimiter) {
		return nil
	}

	parts := strings.Split(text, delimiter)

	// The last part is incomplete: it has no closing delimiter yet. Keep
	// it as the new buffer. This also holds a trailing "|" that might be
	// the first half of a delimiter.
	s.buf.Reset()
	s.buf.WriteString(parts[len(parts)-1])

	var segments []string
	for _, part := range parts[:len(parts)-1] {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

// Flush returns the final unterminated segment once the stream has ended.
// The second return is false when the remainder is empty or whitespace.
func (s *Splitter) Flush() (string, bool) {
	trimmed := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
