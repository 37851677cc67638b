// Package tokens estimates token counts for prompts and completions using a
// real BPE tokenizer instead of a character-count heuristic.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

var (
	mu    sync.Mutex
	cache = map[string]*tiktoken.Tiktoken{}
)

// Estimate returns the token count of text under the encoding associated
// with modelName, falling back to cl100k_base (the encoding shared by
// gpt-3.5/gpt-4-era models) for models tiktoken-go doesn't recognize, which
// covers locally-hosted models like Ollama's Llama family.
func Estimate(modelName, text string) int {
	enc := encoderFor(modelName)
	if enc == nil {
		// Last-resort heuristic if even the fallback encoding failed to load.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func encoderFor(modelName string) *tiktoken.Tiktoken {
	mu.Lock()
	defer mu.Unlock()

	if enc, ok := cache[modelName]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			cache[modelName] = nil
			return nil
		}
	}

	cache[modelName] = enc
	return enc
}
