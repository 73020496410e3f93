// Package blocks classifies streamed assistant text into prose and fenced
// artifact segments as the text grows. The model only ever appends to a
// message, so a Scanner keeps its cursor and fence state across calls and scans
// each suffix once instead of re-walking the whole accumulator per chunk.
package blocks

import (
	"strings"

	"meetflow/internal/model"
)

// fence is the 3-character artifact delimiter.
const fence = "```"

// Scanner is an incremental block parser. Feed it each newly arrived chunk
// and it returns the full part list for the text seen so far. Completed
// parts are only ever appended, so earlier parts never change between calls.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	buf       strings.Builder
	text      string // snapshot of buf, refreshed per Feed
	pos       int    // next byte to examine for a delimiter
	spanStart int    // start of the current un-flushed span
	inFence   bool
	done      []model.MessagePart // parts whose extent is final
}

// NewScanner returns a Scanner with no accumulated text.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Parse classifies text in one shot. It is total and deterministic: any
// input yields a well-formed part list, and a dangling fence yields a final
// artifact part with IsComplete=false.
func Parse(text string) []model.MessagePart {
	return NewScanner().Feed(text)
}

// Feed appends chunk to the accumulated text and returns the parts of the
// whole accumulation. Only the newly arrived bytes are scanned; a delimiter
// split across chunks is picked up because scanning resumes two bytes short
// of the previous end.
func (s *Scanner) Feed(chunk string) []model.MessagePart {
	s.buf.WriteString(chunk)
	s.text = s.buf.String()

	for {
		i := strings.Index(s.text[s.pos:], fence)
		if i < 0 {
			break
		}
		at := s.pos + i
		if s.inFence {
			// Closing fence: the artifact body is kept verbatim, but a
			// whitespace-only block is dropped like any other empty span.
			if body := s.text[s.spanStart:at]; strings.TrimSpace(body) != "" {
				s.done = append(s.done, model.MessagePart{
					Type:       model.PartArtifact,
					Content:    body,
					IsComplete: true,
				})
			}
			s.inFence = false
		} else {
			if prose := strings.TrimSpace(s.text[s.spanStart:at]); prose != "" {
				s.done = append(s.done, model.MessagePart{
					Type:       model.PartText,
					Content:    prose,
					IsComplete: true,
				})
			}
			s.inFence = true
		}
		s.pos = at + len(fence)
		s.spanStart = s.pos
	}

	// The last two bytes may be the head of a delimiter still in flight.
	if tail := len(s.text) - (len(fence) - 1); tail > s.pos {
		s.pos = tail
	}

	return s.snapshot()
}

// Parts returns the part list for the text accumulated so far.
func (s *Scanner) Parts() []model.MessagePart {
	return s.snapshot()
}

// Len returns the number of bytes accumulated so far.
func (s *Scanner) Len() int {
	return s.buf.Len()
}

// Text returns the full accumulated text.
func (s *Scanner) Text() string {
	return s.buf.String()
}

// snapshot copies the finished parts and derives the provisional tail: an
// unclosed artifact, or trailing prose that later chunks may still extend.
func (s *Scanner) snapshot() []model.MessagePart {
	parts := make([]model.MessagePart, len(s.done), len(s.done)+1)
	copy(parts, s.done)

	rest := s.text[s.spanStart:]
	if s.inFence {
		if strings.TrimSpace(rest) != "" {
			parts = append(parts, model.MessagePart{
				Type:       model.PartArtifact,
				Content:    rest,
				IsComplete: false,
			})
		}
	} else if prose := strings.TrimSpace(rest); prose != "" {
		parts = append(parts, model.MessagePart{
			Type:       model.PartText,
			Content:    prose,
			IsComplete: true,
		})
	}
	return parts
}
