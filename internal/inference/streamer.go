package inference

import (
	"strings"
	"unicode/utf8"
)

// Decoder is the part of a tokenizer the TextStreamer needs.
type Decoder interface {
	Decode(ids []int) (string, error)
}

// TextStreamer turns a sequence of token ids into text fragments as they
// arrive. Text ending in an incomplete UTF-8 sequence is held back until
// the rest of the character is decoded, so every fragment is valid UTF-8.
// Put returns at most one fragment per token and Flush returns text only
// when the last Put returned none.
type TextStreamer struct {
	dec     Decoder
	ids     []int
	text    string
	printed int
}

func NewTextStreamer(dec Decoder) *TextStreamer {
	return &TextStreamer{dec: dec}
}

// Put appends id and returns the newly printable text, possibly empty.
func (s *TextStreamer) Put(id int) (string, error) {
	s.ids = append(s.ids, id)
	text, err := s.dec.Decode(s.ids)
	if err != nil {
		return "", err
	}
	s.text = text

	// Hold the whole token while its text ends mid-character.
	cut := completePrefix(text)
	if cut < len(text) || cut <= s.printed {
		return "", nil
	}
	out := text[s.printed:cut]
	s.printed = cut

	// Restart the decode window after a finished line.
	if cut == len(text) && strings.HasSuffix(out, "\n") {
		s.reset()
	}
	return strings.ToValidUTF8(out, "�"), nil
}

// Flush returns whatever is still held back and resets the streamer.
func (s *TextStreamer) Flush() string {
	rest := ""
	if s.printed < len(s.text) {
		rest = strings.ToValidUTF8(s.text[s.printed:], "�")
	}
	s.reset()
	return rest
}

func (s *TextStreamer) reset() {
	s.ids = s.ids[:0]
	s.text = ""
	s.printed = 0
}

// completePrefix returns the length of the longest prefix of s that does
// not end inside an incomplete UTF-8 sequence.
func completePrefix(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if !utf8.FullRuneInString(s[i:]) {
			return i
		}
		return len(s)
	}
	return len(s)
}
