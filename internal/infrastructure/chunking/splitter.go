// Package chunking cuts imported page text into item-sized fragments.
package chunking

import (
	"strings"
	"unicode"
)

// Splitter emits one fragment per non-blank line. Lines longer than MaxRunes
// are cut into windows, preferring the last whitespace inside the window.
type Splitter struct {
	MaxRunes int
}

func NewSplitter(maxRunes int) *Splitter {
	if maxRunes <= 0 {
		maxRunes = 500
	}
	return &Splitter{MaxRunes: maxRunes}
}

func (s *Splitter) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, s.window([]rune(line))...)
	}
	return out
}

func (s *Splitter) window(runes []rune) []string {
	out := make([]string, 0, len(runes)/s.MaxRunes+1)
	for len(runes) > s.MaxRunes {
		cut := s.MaxRunes
		for i := s.MaxRunes; i > s.MaxRunes/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			out = append(out, chunk)
		}
		runes = runes[cut:]
	}
	if chunk := strings.TrimSpace(string(runes)); chunk != "" {
		out = append(out, chunk)
	}
	return out
}
