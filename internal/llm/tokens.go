package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

type cachedEncoding struct {
	encoder *tiktoken.Tiktoken
	approx  bool
}

var (
	encoderMu sync.Mutex
	encoders  = map[string]cachedEncoding{}
)

// EstimateTokens returns the token count of text and whether it is an
// approximation. Models unknown to tiktoken are counted with cl100k_base; if
// no encoding can be loaded a four-characters-per-token heuristic is used.
func EstimateTokens(modelID, text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	encoder, approx := encodingForModel(modelID)
	return tokenCount(encoder, text), approx
}

func encodingForModel(modelID string) (*tiktoken.Tiktoken, bool) {
	encoderMu.Lock()
	defer encoderMu.Unlock()

	if cached, ok := encoders[modelID]; ok {
		return cached.encoder, cached.approx
	}

	entry := cachedEncoding{approx: true}
	if encoder, err := tiktoken.EncodingForModel(modelID); err == nil {
		entry = cachedEncoding{encoder: encoder}
	} else if fallback, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		entry.encoder = fallback
	}
	encoders[modelID] = entry
	return entry.encoder, entry.approx
}

func tokenCount(encoder *tiktoken.Tiktoken, text string) int {
	if text == "" {
		return 0
	}

	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}

	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}

	// Rough heuristic: 1 token per 4 characters
	return (runes + 3) / 4
}
