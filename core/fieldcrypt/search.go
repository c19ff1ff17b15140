package fieldcrypt

import (
	"strings"
	"unicode"
)

// minTokenLength drops single-letter words from the search index.
const minTokenLength = 2

// Tokenize splits text into lower-cased unique words.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < minTokenLength {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// SearchTokens returns the blind index of every word of text.
func (c *Codec) SearchTokens(text string) []string {
	words := Tokenize(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, c.BlindIndex(w))
	}
	return out
}
