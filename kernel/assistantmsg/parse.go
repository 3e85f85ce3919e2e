package assistantmsg

import (
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Parse classifies a complete assistant message with the default vocabulary.
func Parse(text string) []Block {
	return ParseWith(nil, text)
}

// ParseWith classifies a complete assistant message. It applies no size
// guards. A tool or text block still open at end of input is returned with
// Partial set, since stored history may have been cut off mid-stream; an open
// parameter keeps what it captured. Use Seal for a fully closed sequence.
func ParseWith(v *toolvocab.Vocabulary, text string) []Block {
	s := newScanner(v)
	buf := []byte(text)
	s.advance(buf, 0)
	s.closeOpenParam(buf)
	if s.textIdx >= 0 {
		if tb, ok := s.blocks[s.textIdx].(TextBlock); ok && strings.TrimSpace(tb.Content) == "" {
			s.blocks = append(s.blocks[:s.textIdx], s.blocks[s.textIdx+1:]...)
		}
	}
	if s.blocks == nil {
		return []Block{}
	}
	return s.blocks
}

// Seal returns a closed copy of blocks: every block non-partial, text trimmed,
// empty text dropped. The input is not modified.
func Seal(blocks []Block) []Block {
	return seal(CloneAll(blocks))
}
