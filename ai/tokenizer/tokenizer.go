// Package tokenizer counts and trims tokens the way the upstream models
// bill them. Every budget in the service (buffer size, profile size,
// context windows) is measured through this package so the numbers stay
// comparable.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
	encoderMu   sync.Mutex
)

func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			// Offline environments cannot fetch encodings. Counting falls
			// back to a character heuristic.
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return
			}
		}
		encoder = enc
	})
	return encoder
}

// CountTokens returns the token count of text.
func CountTokens(text string) int {
	enc := getEncoder()
	if enc == nil {
		return len(text) / 4
	}
	encoderMu.Lock()
	defer encoderMu.Unlock()
	return len(enc.Encode(text, nil, nil))
}

// CountAll sums the token counts of every text.
func CountAll(texts ...string) int {
	total := 0
	for _, text := range texts {
		total += CountTokens(text)
	}
	return total
}

// Truncate cuts text down to at most maxTokens tokens. Text already within
// the budget is returned unchanged.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	enc := getEncoder()
	if enc == nil {
		runes := []rune(text)
		if len(runes) <= maxTokens*4 {
			return text
		}
		return string(runes[:maxTokens*4])
	}
	encoderMu.Lock()
	defer encoderMu.Unlock()
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
