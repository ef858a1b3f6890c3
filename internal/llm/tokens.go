package llm

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens returns the approximate token count of text for the
// given model, falling back to cl100k_base and then a rune heuristic
// when no encoding is available.
func EstimateTokens(modelID, text string) int {
	if text == "" {
		return 0
	}

	encoder, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		encoder, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err == nil && encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}

	// Rough heuristic: 1 token per 4 characters.
	runes := utf8.RuneCountInString(text)
	return (runes + 3) / 4
}
